package nn

import (
	"math"

	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights use Xavier/Glorot initialization, biases U(-1/sqrt(in), 1/sqrt(in)).
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features], nil with WithoutBias
}

// LinearConfig is the architecture descriptor of a Linear layer.
type LinearConfig struct {
	InFeatures  int  `json:"in_features"`
	OutFeatures int  `json:"out_features"`
	Bias        bool `json:"bias"`
}

// NewLinear creates a new Linear layer.
func NewLinear(inFeatures, outFeatures int, opts ...Option) *Linear {
	o := buildOptions(opts)

	weightShape := tensor.Shape{outFeatures, inFeatures}
	l := &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, o.rng)),
	}
	if o.useBias {
		bound := 1 / math.Sqrt(float64(inFeatures))
		l.bias = NewParameter("bias", Uniform(tensor.Shape{outFeatures}, bound, o.rng))
	}
	return l
}

// Forward computes y = x @ W.T + b for a float32 input of shape [batch, in_features].
func (l *Linear) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != l.inFeatures {
		return nil, errors.Errorf("Linear.Forward: expected input [batch, %d], got %s", l.inFeatures, shape)
	}
	if input.DType() != tensor.Float32 {
		return nil, errors.Errorf("Linear.Forward: expected float32 input, got %s", input.DType())
	}

	batch := shape[0]
	x := input.AsFloat32()
	w := l.weight.Tensor().AsFloat32()
	out := tensor.MustNewRaw(tensor.Shape{batch, l.outFeatures}, tensor.Float32)
	y := out.AsFloat32()

	var b []float32
	if l.bias != nil {
		b = l.bias.Tensor().AsFloat32()
	}
	for i := 0; i < batch; i++ {
		row := x[i*l.inFeatures : (i+1)*l.inFeatures]
		for j := 0; j < l.outFeatures; j++ {
			wRow := w[j*l.inFeatures : (j+1)*l.inFeatures]
			var sum float32
			for k, xv := range row {
				sum += xv * wRow[k]
			}
			if b != nil {
				sum += b[j]
			}
			y[i*l.outFeatures+j] = sum
		}
	}
	return out, nil
}

// LocalParameters returns [weight, bias], or [weight] without bias.
func (l *Linear) LocalParameters() []*Parameter {
	if l.bias != nil {
		return []*Parameter{l.weight, l.bias}
	}
	return []*Parameter{l.weight}
}

// LocalBuffers returns nil: Linear has no buffers.
func (l *Linear) LocalBuffers() []*Buffer { return nil }

// Children returns nil: Linear is a leaf.
func (l *Linear) Children() []Child { return nil }

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter, nil if the layer has none.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// Architecture implements Describable.
func (l *Linear) Architecture() (Architecture, error) {
	return NewArchitecture(TypeLinear, LinearConfig{
		InFeatures:  l.inFeatures,
		OutFeatures: l.outFeatures,
		Bias:        l.bias != nil,
	})
}
