package nn

import (
	"github.com/born-ml/ckpt/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors updated by an optimizer. They typically represent
// weights and biases of layers.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad()
type Parameter struct {
	name   string            // Local name (e.g., "weight", "bias")
	tensor *tensor.RawTensor // The parameter values
	grad   *tensor.RawTensor // Gradient, nil until set
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter's local name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been set since the last ZeroGrad.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// Buffer is persistent module state that is saved with the model but never
// updated by an optimizer, e.g. BatchNorm running statistics.
type Buffer struct {
	name   string
	tensor *tensor.RawTensor
}

// NewBuffer creates a new named buffer.
func NewBuffer(name string, t *tensor.RawTensor) *Buffer {
	return &Buffer{name: name, tensor: t}
}

// Name returns the buffer's local name.
func (b *Buffer) Name() string {
	return b.name
}

// Tensor returns the buffer tensor.
func (b *Buffer) Tensor() *tensor.RawTensor {
	return b.tensor
}
