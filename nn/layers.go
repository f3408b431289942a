// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/tensor"
)

// RawTensor is the tensor type held by parameters and buffers.
type RawTensor = tensor.RawTensor

// Option configures layer construction.
type Option = nn.Option

// WithSeed makes weight initialization deterministic.
func WithSeed(seed uint64) Option {
	return nn.WithSeed(seed)
}

// WithRand draws initial weights from rng.
func WithRand(rng *rand.Rand) Option {
	return nn.WithRand(rng)
}

// WithoutBias omits the bias parameter of Linear layers.
func WithoutBias() Option {
	return nn.WithoutBias()
}

// Linear is a fully connected layer y = x·Wᵀ + b.
type Linear = nn.Linear

// LinearConfig is the architecture descriptor of a Linear layer.
type LinearConfig = nn.LinearConfig

// NewLinear creates a Linear layer with Xavier-initialized weights.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, nn.WithSeed(42))
func NewLinear(inFeatures, outFeatures int, opts ...Option) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, opts...)
}

// ReLU is the rectified linear activation.
type ReLU = nn.ReLU

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// BatchNorm1d normalizes [batch, features] inputs and keeps running statistics
// as buffers.
type BatchNorm1d = nn.BatchNorm1d

// BatchNorm1dConfig is the architecture descriptor of a BatchNorm1d layer.
type BatchNorm1dConfig = nn.BatchNorm1dConfig

// NewBatchNorm1d creates a BatchNorm1d layer.
func NewBatchNorm1d(features int) *BatchNorm1d {
	return nn.NewBatchNorm1d(features)
}

// Sequential chains modules; children are named "0", "1", ...
type Sequential = nn.Sequential

// SequentialConfig is the architecture descriptor of a Sequential container.
type SequentialConfig = nn.SequentialConfig

// NewSequential creates a Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// TwoLayerNet is the network linear2(relu(linear1(x))).
type TwoLayerNet = nn.TwoLayerNet

// TwoLayerNetConfig is the architecture descriptor of a TwoLayerNet.
type TwoLayerNetConfig = nn.TwoLayerNetConfig

// NewTwoLayerNet creates a TwoLayerNet.
func NewTwoLayerNet(in, hidden, out int, opts ...Option) *TwoLayerNet {
	return nn.NewTwoLayerNet(in, hidden, out, opts...)
}
