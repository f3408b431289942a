package statedict

import (
	"fmt"
	"strings"

	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

// Sentinel errors matched with errors.Is against a *MismatchError.
var (
	ErrKeyMismatch   = errors.New("state dict key mismatch")
	ErrShapeMismatch = errors.New("state dict shape mismatch")
)

// ShapeMismatch describes one name whose stored tensor does not fit the model.
type ShapeMismatch struct {
	Name      string
	WantShape tensor.Shape
	GotShape  tensor.Shape
	WantDType tensor.DataType
	GotDType  tensor.DataType
}

func (m ShapeMismatch) String() string {
	return fmt.Sprintf("%s: model has %s%s, state has %s%s",
		m.Name, m.WantDType, m.WantShape, m.GotDType, m.GotShape)
}

// MismatchError lists every offending name found by Apply.
//
// errors.Is(err, ErrKeyMismatch) holds when Missing or Unexpected is non-empty,
// errors.Is(err, ErrShapeMismatch) when Shapes is non-empty.
type MismatchError struct {
	Missing    []string // expected by the model, absent from the state
	Unexpected []string // present in the state, unknown to the model
	Shapes     []ShapeMismatch
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing keys %q", e.Missing))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected keys %q", e.Unexpected))
	}
	if len(e.Shapes) > 0 {
		shapes := make([]string, len(e.Shapes))
		for i, m := range e.Shapes {
			shapes[i] = m.String()
		}
		parts = append(parts, "size mismatch for "+strings.Join(shapes, "; "))
	}
	return "error loading state dict: " + strings.Join(parts, ", ")
}

// Is makes the error match ErrKeyMismatch and/or ErrShapeMismatch.
func (e *MismatchError) Is(target error) bool {
	switch target {
	case ErrKeyMismatch:
		return len(e.Missing) > 0 || len(e.Unexpected) > 0
	case ErrShapeMismatch:
		return len(e.Shapes) > 0
	}
	return false
}

// ShapeNames returns the names listed in Shapes.
func (e *MismatchError) ShapeNames() []string {
	out := make([]string, len(e.Shapes))
	for i, m := range e.Shapes {
		out[i] = m.Name
	}
	return out
}
