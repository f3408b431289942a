// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/ckpt/internal/tensor"
)

// RawTensor is a shape, a data type and a contiguous little-endian buffer.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType()
//   - Typed views via AsFloat32(), AsFloat64(), AsInt64(), AsFloat16()
//   - Deep copies via Clone() and bit-exact comparison via Equal()
//
// Example:
//
//	raw, _ := tensor.FromFloat32(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
//	data := raw.AsFloat32() // aliases the buffer
//	clone := raw.Clone()    // owns its own buffer
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType identifies the element type of a tensor.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Float16 = tensor.Float16
	Int64   = tensor.Int64
)

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromBytes creates a tensor from a little-endian buffer. The buffer is copied.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	return tensor.FromBytes(shape, dtype, data)
}

// FromFloat32 creates a Float32 tensor holding a copy of values.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	return tensor.FromFloat32(shape, values)
}

// FromFloat64 creates a Float64 tensor holding a copy of values.
func FromFloat64(shape Shape, values []float64) (*RawTensor, error) {
	return tensor.FromFloat64(shape, values)
}

// FromInt64 creates an Int64 tensor holding a copy of values.
func FromInt64(shape Shape, values []int64) (*RawTensor, error) {
	return tensor.FromInt64(shape, values)
}

// FromFloat16 creates a Float16 tensor, rounding values to half precision.
func FromFloat16(shape Shape, values []float32) (*RawTensor, error) {
	return tensor.FromFloat16(shape, values)
}

// ParseDataType parses a data type name such as "float32".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}
