// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Stateful is implemented by optimizers whose state can be saved and restored.
type Stateful = optim.Stateful

// ParamGroup holds the hyperparameters shared by a group of parameters.
type ParamGroup = optim.ParamGroup

// ParamState is the auxiliary state of one parameter.
type ParamState = optim.ParamState

// State is the serializable state of an optimizer.
type State = optim.State

// StructuralMismatchError describes why a State does not fit an optimizer.
type StructuralMismatchError = optim.StructuralMismatchError

// ErrStructuralMismatch is matched by *StructuralMismatchError.
var ErrStructuralMismatch = optim.ErrStructuralMismatch

// Optimizer kinds.
const (
	KindSGD  = optim.KindSGD
	KindAdam = optim.KindAdam
)

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// SGDGroup is a parameter group with its own SGD configuration.
type SGDGroup = optim.SGDGroup

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	model := nn.NewLinear(784, 10)
//	optimizer := optim.NewSGD(
//	    nn.Parameters(model),
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	)
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// NewSGDGroups creates an SGD optimizer with one parameter group per argument.
func NewSGDGroups(groups ...SGDGroup) *SGD {
	return optim.NewSGDGroups(groups...)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// AdamGroup is a parameter group with its own Adam configuration.
type AdamGroup = optim.AdamGroup

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	model := nn.NewLinear(784, 10)
//	optimizer := optim.NewAdam(
//	    nn.Parameters(model),
//	    optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float64{0.9, 0.999},
//	    },
//	)
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}

// NewAdamGroups creates an Adam optimizer with one parameter group per argument.
func NewAdamGroups(groups ...AdamGroup) *Adam {
	return optim.NewAdamGroups(groups...)
}

// Snapshot copies the state of opt.
func Snapshot(opt Stateful) *State {
	return optim.Snapshot(opt)
}

// Apply restores state into opt, or returns a *StructuralMismatchError and
// leaves opt unchanged.
func Apply(state *State, opt Stateful) error {
	return optim.Apply(state, opt)
}
