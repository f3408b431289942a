// Package nn implements the model side of Born checkpoints.
//
// A Module exposes its own trainable parameters and persistent buffers plus its
// named children. The package-level walkers (NamedParameters, NamedBuffers,
// StateEntries) flatten a module tree into dotted hierarchical names such as
// "linear1.weight" in a deterministic declaration order. That order is what
// optimizers bind to, so rebuilding a model must reproduce it exactly.
//
// The layers in this package (Linear, ReLU, BatchNorm1d, Sequential, TwoLayerNet)
// are small float32 reference implementations used to exercise save/restore.
package nn

import (
	"github.com/born-ml/ckpt/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.RawTensor) (*tensor.RawTensor, error)

	// LocalParameters returns the trainable parameters owned directly by this
	// module, in declaration order. Children's parameters are not included.
	LocalParameters() []*Parameter

	// LocalBuffers returns the persistent non-trainable state owned directly by
	// this module (running statistics, counters).
	LocalBuffers() []*Buffer

	// Children returns the named sub-modules in declaration order.
	Children() []Child
}

// Child is a named sub-module.
type Child struct {
	Name   string
	Module Module
}

// Trainer is implemented by modules whose behavior depends on training mode.
type Trainer interface {
	SetTraining(training bool)
	Training() bool
}

// NamedTensor is one entry of a module's state: a dotted name and the live
// tensor behind it.
type NamedTensor struct {
	Name   string
	Tensor *tensor.RawTensor
	Buffer bool       // true for persistent buffers, false for trainable parameters
	Param  *Parameter // the owning parameter, nil for buffers
}

// StateEntries walks m and returns its parameters and buffers with dotted names.
//
// For every module the order is: own parameters, own buffers, then each child
// recursively. The returned tensors are the live ones, not copies.
func StateEntries(m Module) []NamedTensor {
	var entries []NamedTensor
	walk(m, "", func(prefix string, mod Module) {
		for _, p := range mod.LocalParameters() {
			entries = append(entries, NamedTensor{Name: prefix + p.Name(), Tensor: p.Tensor(), Param: p})
		}
		for _, b := range mod.LocalBuffers() {
			entries = append(entries, NamedTensor{Name: prefix + b.Name(), Tensor: b.Tensor(), Buffer: true})
		}
	})
	return entries
}

// NamedParameters returns every trainable parameter of m keyed by dotted name.
func NamedParameters(m Module) []NamedTensor {
	var entries []NamedTensor
	walk(m, "", func(prefix string, mod Module) {
		for _, p := range mod.LocalParameters() {
			entries = append(entries, NamedTensor{Name: prefix + p.Name(), Tensor: p.Tensor(), Param: p})
		}
	})
	return entries
}

// NamedBuffers returns every persistent buffer of m keyed by dotted name.
func NamedBuffers(m Module) []NamedTensor {
	var entries []NamedTensor
	walk(m, "", func(prefix string, mod Module) {
		for _, b := range mod.LocalBuffers() {
			entries = append(entries, NamedTensor{Name: prefix + b.Name(), Tensor: b.Tensor(), Buffer: true})
		}
	})
	return entries
}

// Parameters returns every trainable parameter of m in declaration order.
//
// This is the sequence optimizers are bound to.
func Parameters(m Module) []*Parameter {
	var params []*Parameter
	walk(m, "", func(_ string, mod Module) {
		params = append(params, mod.LocalParameters()...)
	})
	return params
}

// SetTraining switches every Trainer in the tree of m.
func SetTraining(m Module, training bool) {
	walk(m, "", func(_ string, mod Module) {
		if t, ok := mod.(Trainer); ok {
			t.SetTraining(training)
		}
	})
}

func walk(m Module, prefix string, visit func(prefix string, mod Module)) {
	visit(prefix, m)
	for _, child := range m.Children() {
		walk(child.Module, prefix+child.Name+".", visit)
	}
}
