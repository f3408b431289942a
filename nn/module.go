// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/ckpt/internal/nn"
)

// Module is the base interface for all neural network components.
//
// Every module must implement:
//   - Forward: Compute output from input
//   - LocalParameters: Its own trainable parameters, in declaration order
//   - LocalBuffers: Its own persistent non-trainable state
//   - Children: Its named sub-modules, in declaration order
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10),
//	)
type Module = nn.Module

// Child is a named sub-module.
type Child = nn.Child

// Trainer is implemented by modules whose behavior depends on training mode.
type Trainer = nn.Trainer

// NamedTensor is one entry of a module's state.
type NamedTensor = nn.NamedTensor

// Parameter is a trainable tensor with its gradient.
type Parameter = nn.Parameter

// Buffer is persistent non-trainable module state.
type Buffer = nn.Buffer

// NewParameter creates a parameter owning t.
func NewParameter(name string, t *RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}

// NewBuffer creates a buffer owning t.
func NewBuffer(name string, t *RawTensor) *Buffer {
	return nn.NewBuffer(name, t)
}

// StateEntries returns the parameters and buffers of m with dotted names such
// as "linear1.weight", in declaration order.
func StateEntries(m Module) []NamedTensor {
	return nn.StateEntries(m)
}

// NamedParameters returns the trainable parameters of m with dotted names.
func NamedParameters(m Module) []NamedTensor {
	return nn.NamedParameters(m)
}

// NamedBuffers returns the persistent buffers of m with dotted names.
func NamedBuffers(m Module) []NamedTensor {
	return nn.NamedBuffers(m)
}

// Parameters returns every trainable parameter of m in declaration order.
// This is the sequence an optimizer binds to.
func Parameters(m Module) []*Parameter {
	return nn.Parameters(m)
}

// SetTraining switches every Trainer in the tree of m.
func SetTraining(m Module, training bool) {
	nn.SetTraining(m, training)
}
