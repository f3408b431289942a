package nn

import (
	"testing"

	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(entries []NamedTensor) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestTwoLayerNetStateNames(t *testing.T) {
	model := NewTwoLayerNet(1000, 100, 10, WithSeed(1))

	entries := StateEntries(model)
	assert.Equal(t, []string{"linear1.weight", "linear1.bias", "linear2.weight", "linear2.bias"}, names(entries))
	assert.Equal(t, tensor.Shape{100, 1000}, entries[0].Tensor.Shape())
	assert.Equal(t, tensor.Shape{100}, entries[1].Tensor.Shape())
	assert.Equal(t, tensor.Shape{10, 100}, entries[2].Tensor.Shape())
	assert.Equal(t, tensor.Shape{10}, entries[3].Tensor.Shape())
}

func TestSequentialStateNamesSkipParameterlessModules(t *testing.T) {
	model := NewSequential(
		NewLinear(4, 3, WithSeed(1)),
		NewReLU(),
		NewBatchNorm1d(3),
		NewLinear(3, 2, WithSeed(2), WithoutBias()),
	)

	assert.Equal(t, []string{
		"0.weight", "0.bias",
		"2.weight", "2.bias", "2.running_mean", "2.running_var", "2.num_batches_tracked",
		"3.weight",
	}, names(StateEntries(model)))
	assert.Equal(t, []string{"0.weight", "0.bias", "2.weight", "2.bias", "3.weight"}, names(NamedParameters(model)))
	assert.Equal(t, []string{"2.running_mean", "2.running_var", "2.num_batches_tracked"}, names(NamedBuffers(model)))
	assert.Len(t, Parameters(model), 5)
}

func TestSeedReproducesModel(t *testing.T) {
	a := StateEntries(NewTwoLayerNet(8, 4, 2, WithSeed(42)))
	b := StateEntries(NewTwoLayerNet(8, 4, 2, WithSeed(42)))
	c := StateEntries(NewTwoLayerNet(8, 4, 2, WithSeed(43)))
	for i := range a {
		assert.True(t, a[i].Tensor.Equal(b[i].Tensor), a[i].Name)
	}
	assert.False(t, a[0].Tensor.Equal(c[0].Tensor))
}

func TestLinearForward(t *testing.T) {
	l := NewLinear(2, 2, WithSeed(1))
	copy(l.Weight().Tensor().AsFloat32(), []float32{1, 2, 3, 4})
	copy(l.Bias().Tensor().AsFloat32(), []float32{0.5, -0.5})

	x, err := tensor.FromFloat32(tensor.Shape{1, 2}, []float32{1, 1})
	require.NoError(t, err)
	y, err := l.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{3.5, 6.5}, y.AsFloat32())

	_, err = l.Forward(tensor.MustNewRaw(tensor.Shape{1, 3}, tensor.Float32))
	assert.Error(t, err)
}

func TestBatchNormTrainingUpdatesBuffers(t *testing.T) {
	bn := NewBatchNorm1d(2)
	x, err := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 6})
	require.NoError(t, err)

	_, err = bn.Forward(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, bn.runningMean.Tensor().AsFloat32(), 1e-6)
	// unbiased var = {2, 8}; 0.9*1 + 0.1*v
	assert.InDeltaSlice(t, []float32{1.1, 1.7}, bn.runningVar.Tensor().AsFloat32(), 1e-6)
	assert.Equal(t, int64(1), bn.numBatches.Tensor().AsInt64()[0])

	SetTraining(NewSequential(bn), false)
	assert.False(t, bn.Training())
	_, err = bn.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bn.numBatches.Tensor().AsInt64()[0])
}

func TestRegistryBuildsDescribedModules(t *testing.T) {
	model := NewSequential(NewLinear(4, 3), NewReLU(), NewBatchNorm1d(3), NewTwoLayerNet(3, 5, 2))
	arch, err := model.Architecture()
	require.NoError(t, err)
	assert.Equal(t, TypeSequential, arch.Type)

	rebuilt, err := DefaultRegistry.Build(arch)
	require.NoError(t, err)

	want := StateEntries(model)
	got := StateEntries(rebuilt)
	require.Equal(t, names(want), names(got))
	for i := range want {
		assert.Equal(t, want[i].Tensor.Shape(), got[i].Tensor.Shape(), want[i].Name)
		assert.Equal(t, want[i].Tensor.DType(), got[i].Tensor.DType(), want[i].Name)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	arch, err := NewArchitecture(TypeSequential, SequentialConfig{Modules: []Architecture{{Type: "Conv2D"}}})
	require.NoError(t, err)

	_, err = DefaultRegistry.Build(arch)
	var unknown *UnknownTypeError
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, "Conv2D", unknown.Type)
	assert.Contains(t, unknown.Known, TypeLinear)
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	_, err := DefaultRegistry.Build(Architecture{Type: TypeLinear, Config: []byte(`{"in_features":0}`)})
	assert.Error(t, err)

	_, err = DefaultRegistry.Build(Architecture{Type: TypeLinear})
	assert.Error(t, err)
}
