package nn

import (
	"github.com/born-ml/ckpt/internal/tensor"
)

// TwoLayerNet is the feed-forward network y = linear2(relu(linear1(x))).
//
// Its state names are "linear1.weight", "linear1.bias", "linear2.weight" and
// "linear2.bias", in that order.
type TwoLayerNet struct {
	linear1 *Linear
	relu    *ReLU
	linear2 *Linear
}

// TwoLayerNetConfig is the architecture descriptor of a TwoLayerNet.
type TwoLayerNetConfig struct {
	In     int `json:"in"`
	Hidden int `json:"hidden"`
	Out    int `json:"out"`
}

// NewTwoLayerNet creates a TwoLayerNet. Options apply to both linear layers and
// a seeded rng is shared, so one seed reproduces the whole model.
func NewTwoLayerNet(in, hidden, out int, opts ...Option) *TwoLayerNet {
	o := buildOptions(opts)
	shared := append(append([]Option(nil), opts...), WithRand(o.rng))
	return &TwoLayerNet{
		linear1: NewLinear(in, hidden, shared...),
		relu:    NewReLU(),
		linear2: NewLinear(hidden, out, shared...),
	}
}

// Forward computes linear2(relu(linear1(x))).
func (n *TwoLayerNet) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	h, err := n.linear1.Forward(input)
	if err != nil {
		return nil, err
	}
	h, err = n.relu.Forward(h)
	if err != nil {
		return nil, err
	}
	return n.linear2.Forward(h)
}

// LocalParameters returns nil.
func (n *TwoLayerNet) LocalParameters() []*Parameter { return nil }

// LocalBuffers returns nil.
func (n *TwoLayerNet) LocalBuffers() []*Buffer { return nil }

// Children returns linear1 and linear2.
func (n *TwoLayerNet) Children() []Child {
	return []Child{
		{Name: "linear1", Module: n.linear1},
		{Name: "linear2", Module: n.linear2},
	}
}

// Linear1 returns the first layer.
func (n *TwoLayerNet) Linear1() *Linear { return n.linear1 }

// Linear2 returns the second layer.
func (n *TwoLayerNet) Linear2() *Linear { return n.linear2 }

// Architecture implements Describable.
func (n *TwoLayerNet) Architecture() (Architecture, error) {
	return NewArchitecture(TypeTwoLayerNet, TwoLayerNetConfig{
		In:     n.linear1.InFeatures(),
		Hidden: n.linear1.OutFeatures(),
		Out:    n.linear2.OutFeatures(),
	})
}
