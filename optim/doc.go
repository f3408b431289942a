// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers whose state can be checkpointed.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum, dampening, weight decay and Nesterov
//   - Adam: Adaptive Moment Estimation with bias correction
//   - State, Snapshot and Apply for saving and restoring optimizer state
//
// # Basic Usage
//
//	model := nn.NewTwoLayerNet(784, 128, 10)
//	optimizer := optim.NewAdam(nn.Parameters(model), optim.AdamConfig{LR: 0.001})
//
//	for step := range numSteps {
//	    optimizer.ZeroGrad()
//	    // ... compute gradients into each nn.Parameter ...
//	    if err := optimizer.Step(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Parameter Groups
//
// Each group has its own hyperparameters:
//
//	optimizer := optim.NewSGDGroups(
//	    optim.SGDGroup{Params: nn.Parameters(backbone), SGDConfig: optim.SGDConfig{LR: 0.001}},
//	    optim.SGDGroup{Params: nn.Parameters(head), SGDConfig: optim.SGDConfig{LR: 0.01, Momentum: 0.9}},
//	)
//
// # State
//
// Optimizer state refers to parameters by position in the flattened sequence of
// all groups, never by name or identity. Apply requires the same kind, the
// same number of groups and the same number of parameters in each group.
package optim
