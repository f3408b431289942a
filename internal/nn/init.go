package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/ckpt/internal/tensor"
)

// Option configures layer construction.
type Option func(*options)

type options struct {
	rng     *rand.Rand
	useBias bool
}

func buildOptions(opts []Option) options {
	o := options{useBias: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		//nolint:gosec // weight initialization is not security-critical
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

// WithSeed makes initialization deterministic.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		//nolint:gosec // weight initialization is not security-critical
		o.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand draws initial values from rng. Sharing one rng across layers keeps a
// whole model reproducible from a single seed.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithoutBias disables the bias parameter of layers that have one.
func WithoutBias() Option {
	return func(o *options) {
		o.useBias = false
	}
}

// Uniform fills a new float32 tensor with values from U(-bound, bound).
func Uniform(shape tensor.Shape, bound float64, rng *rand.Rand) *tensor.RawTensor {
	t := tensor.MustNewRaw(shape, tensor.Float32)
	data := t.AsFloat32()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Xavier (Glorot) initialization: U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	return Uniform(shape, math.Sqrt(6.0/float64(fanIn+fanOut)), rng)
}

// Filled creates a float32 tensor with every element set to v.
func Filled(shape tensor.Shape, v float32) *tensor.RawTensor {
	t := tensor.MustNewRaw(shape, tensor.Float32)
	data := t.AsFloat32()
	for i := range data {
		data[i] = v
	}
	return t
}
