// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the value type stored in Born checkpoints.
//
// # Overview
//
// A RawTensor is a shape, a data type and a flat row-major buffer. Parameter
// stores map hierarchical names to RawTensors, and optimizer state keeps its
// auxiliary buffers as RawTensors.
//
// # Supported Data Types
//
//   - Float32 (the type of every trainable parameter)
//   - Float64
//   - Float16 (IEEE 754 half precision)
//   - Int64 (counters such as BatchNorm's num_batches_tracked)
//
// # Basic Usage
//
//	import "github.com/born-ml/ckpt/tensor"
//
//	func main() {
//	    w, err := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 0, 0, 1})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(w)              // float32(2, 2)
//	    fmt.Println(w.AsFloat32())  // [1 0 0 1]
//	}
//
// Tensors are stored in little-endian byte order on every platform, so the
// bytes of a tensor are exactly the bytes written to a checkpoint file.
package tensor
