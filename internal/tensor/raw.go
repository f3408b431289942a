package tensor

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// RawTensor is the low-level tensor representation: a shape, a data type and a
// contiguous row-major buffer in little-endian byte order.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zeroed.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}
	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// MustNewRaw is NewRaw that panics on an invalid shape.
func MustNewRaw(shape Shape, dtype DataType) *RawTensor {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		panic(err)
	}
	return raw
}

// FromBytes creates a RawTensor from an encoded buffer. The buffer is copied.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	if len(data) != len(raw.data) {
		return nil, errors.Errorf("buffer holds %d bytes, shape %s of %s needs %d",
			len(data), shape, dtype, len(raw.data))
	}
	copy(raw.data, data)
	return raw, nil
}

// FromFloat32 creates a Float32 tensor holding a copy of values.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, errors.Errorf("got %d values for shape %s", len(values), shape)
	}
	copy(raw.AsFloat32(), values)
	return raw, nil
}

// FromFloat64 creates a Float64 tensor holding a copy of values.
func FromFloat64(shape Shape, values []float64) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float64)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, errors.Errorf("got %d values for shape %s", len(values), shape)
	}
	copy(raw.AsFloat64(), values)
	return raw, nil
}

// FromInt64 creates an Int64 tensor holding a copy of values.
func FromInt64(shape Shape, values []int64) (*RawTensor, error) {
	raw, err := NewRaw(shape, Int64)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, errors.Errorf("got %d values for shape %s", len(values), shape)
	}
	copy(raw.AsInt64(), values)
	return raw, nil
}

// FromFloat16 creates a Float16 tensor by rounding float32 values to half precision.
func FromFloat16(shape Shape, values []float32) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float16)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, errors.Errorf("got %d values for shape %s", len(values), shape)
	}
	halves := raw.AsFloat16()
	for i, v := range values {
		halves[i] = float16.Fromfloat32(v)
	}
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat16 interprets the data as []float16.Float16.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []float16.Float16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Float32s returns the values widened or narrowed to float32, in a new slice.
// Int64 values are converted numerically.
func (r *RawTensor) Float32s() []float32 {
	out := make([]float32, r.NumElements())
	switch r.dtype {
	case Float32:
		copy(out, r.AsFloat32())
	case Float64:
		for i, v := range r.AsFloat64() {
			out[i] = float32(v)
		}
	case Float16:
		for i, v := range r.AsFloat16() {
			out[i] = v.Float32()
		}
	case Int64:
		for i, v := range r.AsInt64() {
			out[i] = float32(v)
		}
	}
	return out
}

// Clone returns a deep copy: the clone owns its buffer and is unaffected by later
// in-place updates of r.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		data:  bytes.Clone(r.data),
		shape: r.shape.Clone(),
		dtype: r.dtype,
	}
}

// CopyFrom overwrites r's values with src's. Shape and dtype must match.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if r.dtype != src.dtype {
		return errors.Errorf("dtype mismatch: %s vs %s", r.dtype, src.dtype)
	}
	if !r.shape.Equal(src.shape) {
		return errors.Errorf("shape mismatch: %s vs %s", r.shape, src.shape)
	}
	copy(r.data, src.data)
	return nil
}

// Equal reports whether both tensors have the same shape, dtype and bit-identical data.
func (r *RawTensor) Equal(other *RawTensor) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.dtype == other.dtype && r.shape.Equal(other.shape) && bytes.Equal(r.data, other.data)
}

// String summarizes the tensor without printing its values.
func (r *RawTensor) String() string {
	return fmt.Sprintf("%s%s", r.dtype, r.shape)
}
