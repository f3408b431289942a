package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned by the reader. Use errors.Is to match them: every
// corruption error, including *ValidationError, matches ErrCorruptData.
var (
	ErrNotFound        = errors.New("checkpoint not found")
	ErrCorruptData     = errors.New("corrupt checkpoint data")
	ErrVersionMismatch = errors.New("unsupported checkpoint format version")

	ErrChecksumMismatch = errors.WithMessage(ErrCorruptData, "checksum mismatch")
	ErrInvalidMagic     = errors.WithMessage(ErrCorruptData, "invalid magic bytes")
	ErrTruncated        = errors.WithMessage(ErrCorruptData, "file truncated")
)

// ErrReservedKey is returned when bundle metadata uses a reserved key.
var ErrReservedKey = errors.New("metadata key is reserved")

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_overlap", "out_of_bounds")
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap makes every validation failure match ErrCorruptData.
func (e *ValidationError) Unwrap() error {
	return ErrCorruptData
}
