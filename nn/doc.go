// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the model side of Born checkpoints.
//
// # Overview
//
// This package contains:
//   - Module interface and the tree walkers that name its state
//   - Layers: Linear, ReLU, BatchNorm1d
//   - Containers: Sequential, TwoLayerNet
//   - Architecture descriptors and the Registry that rebuilds modules from them
//
// # State Names
//
// Parameters and buffers are named by their path in the module tree:
//
//	model := nn.NewTwoLayerNet(1000, 100, 10)
//	for _, e := range nn.StateEntries(model) {
//	    fmt.Println(e.Name, e.Tensor.Shape())
//	}
//	// linear1.weight (100, 1000)
//	// linear1.bias (100)
//	// linear2.weight (10, 100)
//	// linear2.bias (10)
//
// The order is deterministic: for every module, its own parameters, then its
// own buffers, then each child in declaration order. Optimizers bind to
// Parameters(m) in this order, so a model rebuilt for resuming must declare
// its layers the same way.
//
// # Architectures
//
// Built-in modules implement Describable. Saving a model together with its
// Architecture lets checkpoint.LoadModel rebuild it by looking up the type name
// in a Registry; custom modules register their own factory.
package nn
