package nn

import (
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

// ReLU is a Rectified Linear Unit activation module: f(x) = max(0, x).
//
// It has no parameters or buffers, so it never appears in a state dictionary,
// but it still occupies an index inside a Sequential.
type ReLU struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies max(0, x) element-wise to a float32 input.
func (r *ReLU) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if input.DType() != tensor.Float32 {
		return nil, errors.Errorf("ReLU.Forward: expected float32 input, got %s", input.DType())
	}
	out := input.Clone()
	data := out.AsFloat32()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return out, nil
}

// LocalParameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) LocalParameters() []*Parameter { return nil }

// LocalBuffers returns nil.
func (r *ReLU) LocalBuffers() []*Buffer { return nil }

// Children returns nil.
func (r *ReLU) Children() []Child { return nil }

// Architecture implements Describable.
func (r *ReLU) Architecture() (Architecture, error) {
	return Architecture{Type: TypeReLU}, nil
}
