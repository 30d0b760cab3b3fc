package recoil

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Element identifies the element a recoil distribution belongs to.
type Element struct {
	Symbol  string
	Isotope int
}

// String formats the element as e.g. "16O" or "H".
func (e Element) String() string {
	if e.Isotope > 0 {
		return fmt.Sprintf("%d%s", e.Isotope, e.Symbol)
	}
	return e.Symbol
}

// RecoilElement binds an element to a solution's point sequence. It is the
// unit a simulator consumes and the unit written to the on-disk profile
// format. Instances are created transiently per simulator call and owned by
// the optimizer invocation that created them.
type RecoilElement struct {
	Element Element
	Points  []Point
	Color   string
	Name    string
}

// NewRecoilElement copies the given points into a new recoil element.
func NewRecoilElement(element Element, points []Point, color, name string) *RecoilElement {
	return &RecoilElement{
		Element: element,
		Points:  clonePoints(points),
		Color:   color,
		Name:    name,
	}
}

// Profile returns the ordered (depth, concentration) pairs.
func (r *RecoilElement) Profile() []Point {
	return clonePoints(r.Points)
}

// WriteFile writes the point sequence to path in the two-column profile
// format, one "depth concentration" pair per line.
func (r *RecoilElement) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing recoil file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range r.Points {
		if _, err := fmt.Fprintln(w, p.String()); err != nil {
			return fmt.Errorf("writing recoil file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing recoil file: %w", err)
	}
	return nil
}

// ReadProfileFile reads an ordered (depth, concentration) point list from a
// two-column profile file. Blank lines are skipped.
func ReadProfileFile(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading recoil file: %w", err)
	}
	defer f.Close()

	var points []Point
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p Point
		if _, err := fmt.Sscanf(line, "%f %f", &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("reading recoil file %s: bad line %q: %w",
				path, line, err)
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading recoil file: %w", err)
	}
	return points, nil
}
