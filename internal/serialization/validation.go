package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default, recommended for production).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names, dtypes and sizes but not offset overlap or cross references.
	ValidationNormal
	// ValidationNone skips header validation. Tensor bounds are still checked when reading.
	ValidationNone
)

var validationLevelNames = map[ValidationLevel]string{
	ValidationStrict: "strict",
	ValidationNormal: "normal",
	ValidationNone:   "none",
}

func (l ValidationLevel) String() string {
	if s, ok := validationLevelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("ValidationLevel(%d)", int(l))
}

// ParseValidationLevel parses "strict", "normal" or "none".
func ParseValidationLevel(s string) (ValidationLevel, error) {
	for l, name := range validationLevelNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return 0, errors.Errorf("unknown validation level %q, want strict, normal or none", s)
}

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
// Malformed files could otherwise make tensors alias each other or read past the data region.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if err := checkBounds(t, dataSize); err != nil {
			return err
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// checkBounds rejects negative or out-of-range regions.
func checkBounds(t TensorMeta, dataSize int64) error {
	if t.Offset < 0 || t.Size < 0 {
		return &ValidationError{
			Type:    "negative_offset",
			Tensor:  t.Name,
			Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
		}
	}
	if t.Offset > dataSize || t.Size > dataSize-t.Offset {
		return &ValidationError{
			Type:    "out_of_bounds",
			Tensor:  t.Name,
			Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
		}
	}
	return nil
}

// ValidateTensorName checks tensor names for path traversal and malicious patterns.
// Names may end up as file names when a store is exported.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains '..' (path traversal attempt)",
		}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator (/ or \\)",
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains null byte",
		}
	}
	return nil
}

// validateTensorMeta checks that dtype, shape and size agree.
func validateTensorMeta(t TensorMeta) error {
	dtype, err := tensor.ParseDataType(t.DType)
	if err != nil {
		return &ValidationError{Type: "invalid_dtype", Tensor: t.Name, Details: err.Error()}
	}
	shape := tensor.Shape(t.Shape)
	if err := shape.Validate(); err != nil {
		return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: err.Error()}
	}
	if want := int64(shape.NumElements()) * int64(dtype.Size()); want != t.Size {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  t.Name,
			Details: fmt.Sprintf("%s%s needs %d bytes, header says %d", dtype, shape, want, t.Size),
		}
	}
	return nil
}

// ValidateHeader performs comprehensive header validation.
//
// ValidationNormal checks tensor names, dtypes, shapes and sizes.
// ValidationStrict additionally checks offsets for overlap, duplicate names,
// flag consistency and the optimizer section's cross references.
//
//nolint:gocognit,gocyclo,cyclop // one pass over every section
func ValidateHeader(h *Header, flags uint32, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	all := h.AllTensors()
	if len(all) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(all), MaxTensorCount),
		}
	}
	for _, t := range all {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if err := validateTensorMeta(t); err != nil {
			return err
		}
	}

	if level != ValidationStrict {
		return nil
	}

	if got := h.Flags(); got != flags {
		return &ValidationError{
			Type:    "flags_mismatch",
			Details: fmt.Sprintf("flags 0x%x do not match sections present (0x%x)", flags, got),
		}
	}
	if err := ValidateTensorOffsets(all, dataSize); err != nil {
		return err
	}

	if h.Params != nil {
		seen := make(map[string]bool, len(h.Params.Tensors))
		for _, t := range h.Params.Tensors {
			if seen[t.Name] {
				return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "name appears twice"}
			}
			seen[t.Name] = true
		}
	}

	if o := h.OptimizerState; o != nil {
		listed := make(map[int]bool)
		for gi, g := range o.ParamGroups {
			for _, idx := range g.Params {
				if listed[idx] {
					return &ValidationError{
						Type:    "invalid_optimizer_state",
						Details: fmt.Sprintf("param_groups[%d] lists position %d twice", gi, idx),
					}
				}
				listed[idx] = true
			}
		}
		if len(o.ParamNames) > 0 && len(o.ParamNames) != len(listed) {
			return &ValidationError{
				Type:    "invalid_optimizer_state",
				Details: fmt.Sprintf("%d param names for %d positions", len(o.ParamNames), len(listed)),
			}
		}
		seen := make(map[int]bool, len(o.State))
		for _, s := range o.State {
			if !listed[s.Index] || seen[s.Index] {
				return &ValidationError{
					Type:    "invalid_optimizer_state",
					Details: fmt.Sprintf("state entry for position %d is unlisted or repeated", s.Index),
				}
			}
			seen[s.Index] = true
		}
	}

	return nil
}
