package nn

import (
	"math"

	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

// BatchNorm1d normalizes [batch, features] inputs per feature.
//
// Trainable parameters: weight (gamma, ones) and bias (beta, zeros).
// Buffers: running_mean, running_var and the int64 scalar num_batches_tracked.
//
// In training mode the batch statistics are used and the running buffers are
// updated with exponential averaging; in eval mode the running buffers are used.
type BatchNorm1d struct {
	features int
	eps      float64
	momentum float64
	training bool

	weight      *Parameter
	bias        *Parameter
	runningMean *Buffer
	runningVar  *Buffer
	numBatches  *Buffer
}

// BatchNorm1dConfig is the architecture descriptor of a BatchNorm1d layer.
type BatchNorm1dConfig struct {
	Features int     `json:"features"`
	Eps      float64 `json:"eps"`
	Momentum float64 `json:"momentum"`
}

// NewBatchNorm1d creates a BatchNorm1d layer with eps=1e-5 and momentum=0.1.
// The layer starts in training mode.
func NewBatchNorm1d(features int) *BatchNorm1d {
	return newBatchNorm1d(BatchNorm1dConfig{Features: features, Eps: 1e-5, Momentum: 0.1})
}

func newBatchNorm1d(cfg BatchNorm1dConfig) *BatchNorm1d {
	shape := tensor.Shape{cfg.Features}
	return &BatchNorm1d{
		features:    cfg.Features,
		eps:         cfg.Eps,
		momentum:    cfg.Momentum,
		training:    true,
		weight:      NewParameter("weight", Filled(shape, 1)),
		bias:        NewParameter("bias", Filled(shape, 0)),
		runningMean: NewBuffer("running_mean", Filled(shape, 0)),
		runningVar:  NewBuffer("running_var", Filled(shape, 1)),
		numBatches:  NewBuffer("num_batches_tracked", tensor.MustNewRaw(tensor.Shape{}, tensor.Int64)),
	}
}

// Forward normalizes a float32 input of shape [batch, features].
func (bn *BatchNorm1d) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != bn.features {
		return nil, errors.Errorf("BatchNorm1d.Forward: expected input [batch, %d], got %s", bn.features, shape)
	}
	if input.DType() != tensor.Float32 {
		return nil, errors.Errorf("BatchNorm1d.Forward: expected float32 input, got %s", input.DType())
	}
	batch := shape[0]
	if bn.training && batch < 2 {
		return nil, errors.New("BatchNorm1d.Forward: training mode needs more than one sample per batch")
	}

	x := input.AsFloat32()
	mean := make([]float64, bn.features)
	variance := make([]float64, bn.features)
	runMean := bn.runningMean.Tensor().AsFloat32()
	runVar := bn.runningVar.Tensor().AsFloat32()

	if bn.training {
		for i := 0; i < batch; i++ {
			for f := 0; f < bn.features; f++ {
				mean[f] += float64(x[i*bn.features+f])
			}
		}
		for f := range mean {
			mean[f] /= float64(batch)
		}
		for i := 0; i < batch; i++ {
			for f := 0; f < bn.features; f++ {
				d := float64(x[i*bn.features+f]) - mean[f]
				variance[f] += d * d
			}
		}
		for f := range variance {
			unbiased := variance[f] / float64(batch-1)
			variance[f] /= float64(batch)
			runMean[f] = float32((1-bn.momentum)*float64(runMean[f]) + bn.momentum*mean[f])
			runVar[f] = float32((1-bn.momentum)*float64(runVar[f]) + bn.momentum*unbiased)
		}
		bn.numBatches.Tensor().AsInt64()[0]++
	} else {
		for f := 0; f < bn.features; f++ {
			mean[f] = float64(runMean[f])
			variance[f] = float64(runVar[f])
		}
	}

	gamma := bn.weight.Tensor().AsFloat32()
	beta := bn.bias.Tensor().AsFloat32()
	out := tensor.MustNewRaw(shape, tensor.Float32)
	y := out.AsFloat32()
	for i := 0; i < batch; i++ {
		for f := 0; f < bn.features; f++ {
			idx := i*bn.features + f
			norm := (float64(x[idx]) - mean[f]) / math.Sqrt(variance[f]+bn.eps)
			y[idx] = float32(norm)*gamma[f] + beta[f]
		}
	}
	return out, nil
}

// LocalParameters returns [weight, bias].
func (bn *BatchNorm1d) LocalParameters() []*Parameter {
	return []*Parameter{bn.weight, bn.bias}
}

// LocalBuffers returns [running_mean, running_var, num_batches_tracked].
func (bn *BatchNorm1d) LocalBuffers() []*Buffer {
	return []*Buffer{bn.runningMean, bn.runningVar, bn.numBatches}
}

// Children returns nil.
func (bn *BatchNorm1d) Children() []Child { return nil }

// SetTraining implements Trainer.
func (bn *BatchNorm1d) SetTraining(training bool) { bn.training = training }

// Training implements Trainer.
func (bn *BatchNorm1d) Training() bool { return bn.training }

// Architecture implements Describable.
func (bn *BatchNorm1d) Architecture() (Architecture, error) {
	return NewArchitecture(TypeBatchNorm1d, BatchNorm1dConfig{
		Features: bn.features,
		Eps:      bn.eps,
		Momentum: bn.momentum,
	})
}
