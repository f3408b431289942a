package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/ckpt/internal/checkpoint"
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGrads sets a gradient that depends only on the parameter values and the
// step, so two models in the same state receive the same gradients.
func fakeGrads(t *testing.T, model nn.Module, step int) {
	t.Helper()
	for _, p := range nn.Parameters(model) {
		values := p.Tensor().AsFloat32()
		grad := make([]float32, len(values))
		for i, v := range values {
			grad[i] = 0.2*v + 0.003*float32(step) - 0.001*float32(i%3)
		}
		g, err := tensor.FromFloat32(p.Tensor().Shape(), grad)
		require.NoError(t, err)
		p.SetGrad(g)
	}
}

func train(t *testing.T, model nn.Module, opt optim.Optimizer, from, to int) {
	t.Helper()
	for step := from; step < to; step++ {
		fakeGrads(t, model, step)
		require.NoError(t, opt.Step())
	}
}

func assertSameState(t *testing.T, want, got nn.Module) {
	t.Helper()
	w, g := nn.StateEntries(want), nn.StateEntries(got)
	require.Len(t, g, len(w))
	for i := range w {
		assert.Equal(t, w[i].Name, g[i].Name)
		assert.True(t, w[i].Tensor.Equal(g[i].Tensor), "%s differs", w[i].Name)
	}
}

func TestStateDictRoundTrip(t *testing.T) {
	model := nn.NewTwoLayerNet(1000, 100, 10, nn.WithSeed(1))
	path := filepath.Join(t.TempDir(), "weights.born")
	require.NoError(t, checkpoint.SaveStateDict(path, model))

	fresh := nn.NewTwoLayerNet(1000, 100, 10, nn.WithSeed(2))
	report, err := checkpoint.LoadStateDict(path, fresh, true)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assertSameState(t, model, fresh)
}

func TestLoadStateDictStrictAndLenient(t *testing.T) {
	small := nn.NewSequential(nn.NewLinear(4, 3, nn.WithSeed(1)))
	path := filepath.Join(t.TempDir(), "small.born")
	require.NoError(t, checkpoint.SaveStateDict(path, small))

	bigger := nn.NewSequential(nn.NewLinear(4, 3, nn.WithSeed(2)), nn.NewReLU(), nn.NewLinear(3, 2, nn.WithSeed(3)))
	before := statedict.Snapshot(bigger)

	_, err := checkpoint.LoadStateDict(path, bigger, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, statedict.ErrKeyMismatch))
	var mismatch *statedict.MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"2.weight", "2.bias"}, mismatch.Missing)
	assertUnchanged(t, before, bigger)

	report, err := checkpoint.LoadStateDict(path, bigger, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2.weight", "2.bias"}, report.Missing)
	w, _ := statedict.Snapshot(bigger).Get("0.weight")
	assert.True(t, small.Module(0).(*nn.Linear).Weight().Tensor().Equal(w))
}

// assertUnchanged checks that model still holds the values captured in before.
func assertUnchanged(t *testing.T, before *statedict.StateDict, model nn.Module) {
	t.Helper()
	after := statedict.Snapshot(model)
	require.Equal(t, before.Keys(), after.Keys())
	before.Range(func(name string, want *tensor.RawTensor) bool {
		got, _ := after.Get(name)
		assert.True(t, want.Equal(got), "%s was modified", name)
		return true
	})
}

func TestOptimizerOnlyFile(t *testing.T) {
	model := nn.NewTwoLayerNet(5, 4, 3, nn.WithSeed(7))
	opt := optim.NewAdam(nn.Parameters(model), optim.AdamConfig{LR: 0.01})
	train(t, model, opt, 0, 2)

	dir := t.TempDir()
	optPath := filepath.Join(dir, "adam.born")
	require.NoError(t, checkpoint.SaveOptimizer(optPath, opt))

	other := optim.NewAdam(nn.Parameters(model), optim.AdamConfig{LR: 0.5})
	require.NoError(t, checkpoint.LoadOptimizer(optPath, other))
	assert.InDelta(t, 0.01, other.GetLR(), 0)
	assert.Equal(t, 2, other.GetTimestep())

	_, err := checkpoint.LoadStateDict(optPath, model, true)
	assert.True(t, errors.Is(err, checkpoint.ErrMissingSection), "got %v", err)

	weightsPath := filepath.Join(dir, "weights.born")
	require.NoError(t, checkpoint.SaveStateDict(weightsPath, model))
	err = checkpoint.LoadOptimizer(weightsPath, other)
	assert.True(t, errors.Is(err, checkpoint.ErrMissingSection), "got %v", err)
}

func TestResumeIsBitIdentical(t *testing.T) {
	builders := map[string]func(params []*nn.Parameter) optim.Optimizer{
		"sgd-momentum": func(params []*nn.Parameter) optim.Optimizer {
			return optim.NewSGD(params, optim.SGDConfig{LR: 0.05, Momentum: 0.9})
		},
		"adam": func(params []*nn.Parameter) optim.Optimizer {
			return optim.NewAdam(params, optim.AdamConfig{LR: 0.01})
		},
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ckpt.born")
			model := nn.NewSequential(nn.NewLinear(6, 5, nn.WithSeed(4)), nn.NewBatchNorm1d(5), nn.NewReLU(), nn.NewLinear(5, 2, nn.WithSeed(5)))
			opt := build(nn.Parameters(model))
			train(t, model, opt, 0, 3)
			require.NoError(t, checkpoint.Save(path, model, opt, checkpoint.Metadata{"epoch": 3, "loss": 0.5}))
			train(t, model, opt, 3, 5)

			resumed := nn.NewSequential(nn.NewLinear(6, 5, nn.WithSeed(40)), nn.NewBatchNorm1d(5), nn.NewReLU(), nn.NewLinear(5, 2, nn.WithSeed(50)))
			resumedOpt := build(nn.Parameters(resumed))
			b, err := checkpoint.Resume(path, resumed, resumedOpt)
			require.NoError(t, err)
			epoch, ok := b.Epoch()
			require.True(t, ok)
			assert.Equal(t, 3, epoch)
			loss, _ := b.Loss()
			assert.InDelta(t, 0.5, loss, 0)

			train(t, resumed, resumedOpt, epoch, 5)
			assertSameState(t, model, resumed)
		})
	}
}

func TestResumeStructuralMismatchLeavesModelUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.born")
	model := nn.NewTwoLayerNet(4, 3, 2, nn.WithSeed(1))
	opt := optim.NewSGD(nn.Parameters(model), optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	train(t, model, opt, 0, 1)
	require.NoError(t, checkpoint.Save(path, model, opt, nil))

	target := nn.NewTwoLayerNet(4, 3, 2, nn.WithSeed(2))
	before := statedict.Snapshot(target)
	twoGroups := optim.NewSGDGroups(
		optim.SGDGroup{Params: nn.Parameters(target.Linear1()), SGDConfig: optim.SGDConfig{LR: 0.1, Momentum: 0.9}},
		optim.SGDGroup{Params: nn.Parameters(target.Linear2()), SGDConfig: optim.SGDConfig{LR: 0.01, Momentum: 0.9}},
	)

	_, err := checkpoint.Resume(path, target, twoGroups)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optim.ErrStructuralMismatch), "got %v", err)
	var sme *optim.StructuralMismatchError
	require.True(t, errors.As(err, &sme))
	assert.Equal(t, "param_groups", sme.Field)

	assertUnchanged(t, before, target)
	assert.InDelta(t, 0.1, twoGroups.ParamGroups()[0].LR, 0)
	assert.Empty(t, twoGroups.PerParamState())
}

func TestResumeDetectsReorderedParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.born")
	model := nn.NewSequential(nn.NewLinear(3, 3, nn.WithSeed(1)), nn.NewLinear(3, 3, nn.WithSeed(2)))
	opt := optim.NewSGD(nn.Parameters(model), optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	train(t, model, opt, 0, 1)
	require.NoError(t, checkpoint.Save(path, model, opt, nil))

	target := nn.NewSequential(nn.NewLinear(3, 3, nn.WithSeed(3)), nn.NewLinear(3, 3, nn.WithSeed(4)))
	params := nn.Parameters(target)
	reversed := []*nn.Parameter{params[2], params[3], params[0], params[1]}
	targetOpt := optim.NewSGD(reversed, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	before := statedict.Snapshot(target)

	_, err := checkpoint.Resume(path, target, targetOpt)
	var sme *optim.StructuralMismatchError
	require.True(t, errors.As(err, &sme), "got %v", err)
	assert.Equal(t, "param_names[0]", sme.Field)
	assert.Equal(t, "1.weight", sme.Want)
	assert.Equal(t, "0.weight", sme.Got)
	assertUnchanged(t, before, target)
}

func TestResumeErrors(t *testing.T) {
	dir := t.TempDir()
	model := nn.NewTwoLayerNet(4, 3, 2)
	opt := optim.NewSGD(nn.Parameters(model), optim.SGDConfig{})

	_, err := checkpoint.Resume(filepath.Join(dir, "missing.born"), model, opt)
	assert.True(t, errors.Is(err, serialization.ErrNotFound), "got %v", err)

	weights := filepath.Join(dir, "weights.born")
	require.NoError(t, checkpoint.SaveStateDict(weights, model))
	_, err = checkpoint.Resume(weights, model, opt)
	assert.True(t, errors.Is(err, checkpoint.ErrMissingSection), "got %v", err)

	b, err := checkpoint.Resume(weights, model, nil)
	require.NoError(t, err)
	assert.Nil(t, b.Optimizer)
}
