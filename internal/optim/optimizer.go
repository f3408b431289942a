// Package optim implements the reference optimizers and the optimizer state
// store used by checkpoints.
//
// This package provides:
//   - Optimizer interface: Step, ZeroGrad and learning rate access
//   - SGD: Stochastic Gradient Descent with momentum, dampening, weight decay and Nesterov
//   - Adam: Adaptive Moment Estimation with bias correction
//   - State: a serializable snapshot of hyperparameters and per-parameter buffers
//
// Parameters are identified by position: index i refers to the i-th parameter
// of the optimizer's flattened parameter sequence (group order, then order
// within the group). A resumed optimizer must be built over parameters created
// in the same declared order.
//
// Example usage:
//
//	opt := optim.NewAdam(nn.Parameters(model), optim.AdamConfig{LR: 1e-3})
//
//	for step := range steps {
//	    computeGradients(model, batch) // sets Parameter.SetGrad
//	    if err := opt.Step(); err != nil {
//	        return err
//	    }
//	    opt.ZeroGrad()
//	}
//
//	state := optim.Snapshot(opt) // saved next to the model parameters
package optim

import (
	"maps"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

// Optimizer kinds stored in State.Kind.
const (
	KindSGD  = "sgd"
	KindAdam = "adam"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	Stateful

	// Step applies one update to every parameter that has a gradient.
	// Parameters without a gradient are skipped and their state is untouched.
	Step() error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the learning rate of the first parameter group.
	GetLR() float64

	// SetLR sets the learning rate of every parameter group.
	SetLR(lr float64)
}

// Stateful is implemented by optimizers whose state can be captured with
// Snapshot and restored with Apply.
type Stateful interface {
	// Kind names the algorithm, e.g. KindSGD.
	Kind() string

	// Params returns the flattened parameter sequence.
	Params() []*nn.Parameter

	// ParamGroups returns a copy of the hyperparameter groups.
	ParamGroups() []ParamGroup

	// PerParamState returns the live per-parameter state keyed by position.
	// Callers must not modify it; Snapshot deep-copies it.
	PerParamState() map[int]ParamState

	// Replace installs groups and per-parameter state. Implementations reject
	// a layout that differs from the current one and leave the optimizer
	// unchanged in that case.
	Replace(groups []ParamGroup, perParam map[int]ParamState) error
}

// ParamGroup holds the hyperparameters shared by a group of parameters.
// Fields that do not apply to an algorithm stay zero.
type ParamGroup struct {
	LR          float64    `json:"lr"`
	Momentum    float64    `json:"momentum,omitempty"`
	Dampening   float64    `json:"dampening,omitempty"`
	WeightDecay float64    `json:"weight_decay,omitempty"`
	Nesterov    bool       `json:"nesterov,omitempty"`
	Betas       [2]float64 `json:"betas"`
	Eps         float64    `json:"eps,omitempty"`
	Params      []int      `json:"params"` // positions in the flattened parameter sequence
}

// Clone returns a copy that does not share the Params slice.
func (g ParamGroup) Clone() ParamGroup {
	g.Params = append([]int(nil), g.Params...)
	return g
}

// ParamState is the auxiliary state of one parameter.
type ParamState struct {
	Scalars map[string]float64
	Buffers map[string]*tensor.RawTensor
}

// Clone returns a deep copy.
func (s ParamState) Clone() ParamState {
	out := ParamState{
		Scalars: maps.Clone(s.Scalars),
		Buffers: make(map[string]*tensor.RawTensor, len(s.Buffers)),
	}
	for k, v := range s.Buffers {
		out.Buffers[k] = v.Clone()
	}
	return out
}

// base keeps the parameter groups and per-parameter state common to all optimizers.
type base struct {
	kind   string
	params []*nn.Parameter
	groups []ParamGroup
	state  map[int]ParamState
}

func newBase(kind string, groups []ParamGroup, groupParams [][]*nn.Parameter) base {
	b := base{kind: kind, state: make(map[int]ParamState)}
	for gi, ps := range groupParams {
		g := groups[gi].Clone()
		g.Params = make([]int, len(ps))
		for j, p := range ps {
			g.Params[j] = len(b.params)
			b.params = append(b.params, p)
		}
		b.groups = append(b.groups, g)
	}
	return b
}

// Kind implements Stateful.
func (b *base) Kind() string { return b.kind }

// Params implements Stateful.
func (b *base) Params() []*nn.Parameter {
	return append([]*nn.Parameter(nil), b.params...)
}

// ParamGroups implements Stateful.
func (b *base) ParamGroups() []ParamGroup {
	out := make([]ParamGroup, len(b.groups))
	for i, g := range b.groups {
		out[i] = g.Clone()
	}
	return out
}

// PerParamState implements Stateful.
func (b *base) PerParamState() map[int]ParamState {
	return b.state
}

// Replace implements Stateful.
func (b *base) Replace(groups []ParamGroup, perParam map[int]ParamState) error {
	if len(groups) != len(b.groups) {
		return mismatch("param_groups", len(b.groups), len(groups))
	}
	for i, g := range groups {
		if len(g.Params) != len(b.groups[i].Params) {
			return mismatchf(len(b.groups[i].Params), len(g.Params), "param_groups[%d].params", i)
		}
		for j, idx := range g.Params {
			if idx != b.groups[i].Params[j] {
				return mismatchf(b.groups[i].Params[j], idx, "param_groups[%d].params[%d]", i, j)
			}
		}
	}
	for idx := range perParam {
		if idx < 0 || idx >= len(b.params) {
			return mismatchf(len(b.params), idx, "state[%d]", idx)
		}
	}

	b.groups = make([]ParamGroup, len(groups))
	for i, g := range groups {
		b.groups[i] = g.Clone()
	}
	b.state = make(map[int]ParamState, len(perParam))
	for idx, s := range perParam {
		b.state[idx] = s.Clone()
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (b *base) ZeroGrad() {
	for _, p := range b.params {
		p.ZeroGrad()
	}
}

// GetLR returns the learning rate of the first group.
func (b *base) GetLR() float64 {
	if len(b.groups) == 0 {
		return 0
	}
	return b.groups[0].LR
}

// SetLR updates the learning rate of every group.
//
// Useful for learning rate scheduling during training.
func (b *base) SetLR(lr float64) {
	for i := range b.groups {
		b.groups[i].LR = lr
	}
}

// paramState returns the state of parameter idx, creating it on first use.
func (b *base) paramState(idx int) ParamState {
	s := b.state[idx]
	if s.Scalars == nil {
		s.Scalars = map[string]float64{}
	}
	if s.Buffers == nil {
		s.Buffers = map[string]*tensor.RawTensor{}
	}
	b.state[idx] = s
	return s
}

// float32Views returns the parameter and gradient data of p, or ok=false if p
// has no gradient.
func float32Views(p *nn.Parameter) (param, grad []float32, ok bool, err error) {
	g := p.Grad()
	if g == nil {
		return nil, nil, false, nil
	}
	t := p.Tensor()
	if t.DType() != tensor.Float32 || g.DType() != tensor.Float32 {
		return nil, nil, false, errors.Errorf("parameter %q: only float32 parameters and gradients are supported, got %s/%s",
			p.Name(), t.DType(), g.DType())
	}
	if !g.Shape().Equal(t.Shape()) {
		return nil, nil, false, errors.Errorf("parameter %q: gradient shape %s does not match %s",
			p.Name(), g.Shape(), t.Shape())
	}
	return t.AsFloat32(), g.AsFloat32(), true, nil
}
