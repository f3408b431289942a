package checkpoint

import (
	"fmt"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/pkg/errors"
)

var (
	// ErrMissingSection is returned when a file lacks a section the caller needs,
	// e.g. LoadOptimizer on a parameters-only file.
	ErrMissingSection = errors.New("checkpoint section missing")

	// ErrClassResolution is matched by *ClassResolutionError.
	ErrClassResolution = errors.New("cannot resolve model architecture")
)

// ClassResolutionError is returned by LoadModel when the stored architecture
// names a module type the registry does not know.
type ClassResolutionError struct {
	Type  string   // unresolved type name
	Known []string // registered type names
	err   *nn.UnknownTypeError
}

// Error implements the error interface.
func (e *ClassResolutionError) Error() string {
	return fmt.Sprintf("cannot rebuild model: module type %q is not registered (known: %v)", e.Type, e.Known)
}

// Is makes the error match ErrClassResolution.
func (e *ClassResolutionError) Is(target error) bool {
	return target == ErrClassResolution
}

// Unwrap returns the underlying *nn.UnknownTypeError.
func (e *ClassResolutionError) Unwrap() error {
	return e.err
}
