package optim

import (
	"math"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

const (
	bufExpAvg   = "exp_avg"
	bufExpAvgSq = "exp_avg_sq"
	scalarStep  = "step"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule, with t the number of steps this parameter has taken:
//
//	g = gradient + weight_decay * param
//	m_t = beta1 * m_{t-1} + (1-beta1) * g
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Each parameter keeps its own step count, so parameters that skip a step
// (no gradient) get the correct bias correction when they resume.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	base
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR          float64    // Learning rate (default: 0.001)
	Betas       [2]float64 // Coefficients for running averages (default: [0.9, 0.999])
	Eps         float64    // Term for numerical stability (default: 1e-8)
	WeightDecay float64    // L2 penalty (default: 0)
}

// AdamGroup is a parameter group with its own configuration.
type AdamGroup struct {
	Params []*nn.Parameter
	AdamConfig
}

// NewAdam creates a new Adam optimizer with a single parameter group.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return NewAdamGroups(AdamGroup{Params: params, AdamConfig: config})
}

// NewAdamGroups creates a new Adam optimizer with one parameter group per argument.
func NewAdamGroups(groups ...AdamGroup) *Adam {
	hp := make([]ParamGroup, len(groups))
	ps := make([][]*nn.Parameter, len(groups))
	for i, g := range groups {
		if g.LR == 0 {
			g.LR = 0.001
		}
		if g.Betas[0] == 0 {
			g.Betas[0] = 0.9
		}
		if g.Betas[1] == 0 {
			g.Betas[1] = 0.999
		}
		if g.Eps == 0 {
			g.Eps = 1e-8
		}
		hp[i] = ParamGroup{
			LR:          g.LR,
			Betas:       g.Betas,
			Eps:         g.Eps,
			WeightDecay: g.WeightDecay,
		}
		ps[i] = g.Params
	}
	return &Adam{base: newBase(KindAdam, hp, ps)}
}

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step() error {
	for _, g := range a.groups {
		lr := float32(g.LR)
		beta1 := float32(g.Betas[0])
		beta2 := float32(g.Betas[1])
		eps := float32(g.Eps)
		wd := float32(g.WeightDecay)

		for _, idx := range g.Params {
			param, grad, ok, err := float32Views(a.params[idx])
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			st := a.paramState(idx)
			m, err := a.moment(st, bufExpAvg, idx)
			if err != nil {
				return err
			}
			v, err := a.moment(st, bufExpAvgSq, idx)
			if err != nil {
				return err
			}
			st.Scalars[scalarStep]++
			t := st.Scalars[scalarStep]

			biasCorrection1 := float32(1 - math.Pow(g.Betas[0], t))
			biasCorrection2 := float32(1 - math.Pow(g.Betas[1], t))

			for i := range param {
				gi := grad[i] + wd*param[i]
				m[i] = beta1*m[i] + (1-beta1)*gi
				v[i] = beta2*v[i] + (1-beta2)*gi*gi
				mHat := m[i] / biasCorrection1
				vHat := v[i] / biasCorrection2
				param[i] -= lr * mHat / (float32(math.Sqrt(float64(vHat))) + eps)
			}
		}
	}
	return nil
}

// moment returns the named moment buffer of parameter idx, zero-initialized on first use.
func (a *Adam) moment(st ParamState, name string, idx int) ([]float32, error) {
	buf, ok := st.Buffers[name]
	if !ok {
		var err error
		buf, err = tensor.NewRaw(a.params[idx].Tensor().Shape(), tensor.Float32)
		if err != nil {
			return nil, errors.WithMessagef(err, "parameter %d: %s", idx, name)
		}
		st.Buffers[name] = buf
	}
	return buf.AsFloat32(), nil
}

// GetTimestep returns the largest per-parameter step count.
func (a *Adam) GetTimestep() int {
	var t float64
	for _, s := range a.state {
		t = max(t, s.Scalars[scalarStep])
	}
	return int(t)
}
