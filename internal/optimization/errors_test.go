package optimization

import (
	"errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  NewError("something went wrong"),
			want: "something went wrong",
		},
		{
			name: "with operation",
			err:  NewError("something went wrong").WithOperation("prepare"),
			want: "prepare: something went wrong",
		},
		{
			name: "with component and operation",
			err:  NewError("something went wrong").WithOperation("prepare").WithComponent("linear"),
			want: "linear: prepare: something went wrong",
		},
		{
			name: "wrapped",
			err:  WrapError(ErrNoMeasurement, "optimization could not be prepared"),
			want: "optimization could not be prepared: no measurement defined",
		},
		{
			name: "formatted",
			err:  NewErrorf("sol_size %d not supported", 5),
			want: "sol_size 5 not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := WrapError(ErrUnsupported, "fluence optimization").WithComponent("linear")

	if !errors.Is(err, ErrUnsupported) {
		t.Fatal("wrapped sentinel not reachable through errors.Is")
	}

	var oerr *Error
	if !errors.As(err, &oerr) {
		t.Fatal("errors.As failed for *Error")
	}
	if oerr.Component != "linear" {
		t.Fatalf("component = %q, want linear", oerr.Component)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if WrapError(nil, "context") != nil {
		t.Fatal("wrapping nil must return nil")
	}
	if WrapErrorf(nil, "context %d", 1) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}
