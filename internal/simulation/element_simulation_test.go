package simulation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tpitkanen/potku/internal/recoil"
)

func testTarget(t *testing.T) (*ElementSimulation, *EchoSimulator) {
	t.Helper()
	echo := &EchoSimulator{}
	main := testRecoil()
	es := NewElementSimulation("16O", main, 0.025, t.TempDir(), echo)
	return es, echo
}

func TestCalculateSpectrumForwardsToSimulator(t *testing.T) {
	es, echo := testTarget(t)

	s, err := es.CalculateSpectrum(context.Background(), es.MainRecoil, 1.0, IonDivisionBoth, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) == 0 {
		t.Fatal("empty spectrum")
	}
	if echo.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", echo.Calls())
	}
}

func TestOptimizationRecoilLifecycle(t *testing.T) {
	es, _ := testTarget(t)

	first := recoil.NewRecoilElement(recoil.Element{Symbol: "O", Isotope: 16},
		es.MainRecoil.Points, "red", "optfirst")
	es.SetOptimizationRecoils([]*recoil.RecoilElement{first})

	got := es.OptimizationRecoils()
	if len(got) != 1 || got[0].Name != "optfirst" {
		t.Fatalf("got %d recoils, want [optfirst]", len(got))
	}

	es.ResetOptimization()
	if len(es.OptimizationRecoils()) != 0 {
		t.Fatal("reset did not discard optimization recoils")
	}
}

func TestCleanUpForwardsToSimulator(t *testing.T) {
	es, echo := testTarget(t)

	if err := es.CleanUp(context.Background()); err != nil {
		t.Fatal(err)
	}
	if echo.CleanUps() != 1 {
		t.Fatalf("clean-ups = %d, want 1", echo.CleanUps())
	}
}

func TestOptimizationResultsToFile(t *testing.T) {
	es, _ := testTarget(t)

	element := recoil.Element{Symbol: "O", Isotope: 16}
	es.SetOptimizationRecoils([]*recoil.RecoilElement{
		recoil.NewRecoilElement(element, es.MainRecoil.Points, "red", "optfirst"),
		recoil.NewRecoilElement(element, es.MainRecoil.Points, "red", "optlast"),
	})

	if err := es.OptimizationResultsToFile("sample.O.cut"); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"16O.optfirst.rec", "16O.optlast.rec"} {
		path := filepath.Join(es.Directory, name)
		points, err := recoil.ReadProfileFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(points) != len(es.MainRecoil.Points) {
			t.Fatalf("%s: got %d points, want %d",
				name, len(points), len(es.MainRecoil.Points))
		}
	}

	summary, err := os.ReadFile(filepath.Join(es.Directory, "16O.optimization"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(summary)
	if !strings.Contains(text, "measured: sample.O.cut") {
		t.Fatalf("summary missing measured reference:\n%s", text)
	}
	if !strings.Contains(text, "optfirst: 6 points") {
		t.Fatalf("summary missing recoil line:\n%s", text)
	}
}
