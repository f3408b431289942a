package optim

import (
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

const bufMomentum = "momentum_buffer"

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule, per parameter p with gradient g:
//
//	d = g + weight_decay * p
//	buf = d                                   (first step)
//	buf = momentum * buf + (1 - dampening) * d  (later steps)
//	d = d + momentum * buf                    (Nesterov)
//	d = buf                                   (otherwise)
//	p = p - lr * d
//
// The momentum buffer is created on the first step a parameter receives a
// gradient and is part of the optimizer state.
//
// Example:
//
//	opt := optim.NewSGD(nn.Parameters(model), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	base
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0)
	Dampening   float64 // Dampening for momentum (default: 0)
	WeightDecay float64 // L2 penalty (default: 0)
	Nesterov    bool    // Nesterov momentum, requires Momentum > 0 and Dampening == 0
}

// SGDGroup is a parameter group with its own configuration.
type SGDGroup struct {
	Params []*nn.Parameter
	SGDConfig
}

// NewSGD creates a new SGD optimizer with a single parameter group.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return NewSGDGroups(SGDGroup{Params: params, SGDConfig: config})
}

// NewSGDGroups creates a new SGD optimizer with one parameter group per
// argument. Group order defines parameter positions.
func NewSGDGroups(groups ...SGDGroup) *SGD {
	hp := make([]ParamGroup, len(groups))
	ps := make([][]*nn.Parameter, len(groups))
	for i, g := range groups {
		if g.LR == 0 {
			g.LR = 0.01
		}
		hp[i] = ParamGroup{
			LR:          g.LR,
			Momentum:    g.Momentum,
			Dampening:   g.Dampening,
			WeightDecay: g.WeightDecay,
			Nesterov:    g.Nesterov,
		}
		ps[i] = g.Params
	}
	return &SGD{base: newBase(KindSGD, hp, ps)}
}

// Step performs a single optimization step.
func (s *SGD) Step() error {
	for gi, g := range s.groups {
		if g.Nesterov && (g.Momentum <= 0 || g.Dampening != 0) {
			return errors.Errorf("param_groups[%d]: Nesterov momentum requires a momentum and zero dampening", gi)
		}
		lr := float32(g.LR)
		momentum := float32(g.Momentum)
		dampening := float32(g.Dampening)
		wd := float32(g.WeightDecay)

		for _, idx := range g.Params {
			param, grad, ok, err := float32Views(s.params[idx])
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			d := make([]float32, len(param))
			for i := range d {
				d[i] = grad[i] + wd*param[i]
			}

			if momentum != 0 {
				st := s.paramState(idx)
				buf, exists := st.Buffers[bufMomentum]
				if !exists {
					buf, err = tensor.FromFloat32(s.params[idx].Tensor().Shape(), d)
					if err != nil {
						return errors.WithMessagef(err, "parameter %d", idx)
					}
					st.Buffers[bufMomentum] = buf
				} else {
					b := buf.AsFloat32()
					for i := range b {
						b[i] = momentum*b[i] + (1-dampening)*d[i]
					}
				}
				b := buf.AsFloat32()
				for i := range d {
					if g.Nesterov {
						d[i] += momentum * b[i]
					} else {
						d[i] = b[i]
					}
				}
			}

			for i := range param {
				param[i] -= lr * d[i]
			}
		}
	}
	return nil
}
