// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/ckpt/checkpoint"
	"github.com/born-ml/ckpt/nn"
	"github.com/born-ml/ckpt/optim"
	"github.com/born-ml/ckpt/statedict"
	"github.com/born-ml/ckpt/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(t *testing.T, model nn.Module, opt optim.Optimizer) {
	t.Helper()
	for _, p := range nn.Parameters(model) {
		grad := make([]float32, p.Tensor().NumElements())
		for i := range grad {
			grad[i] = 0.1 * float32(i%7-3)
		}
		g, err := tensor.FromFloat32(p.Tensor().Shape(), grad)
		require.NoError(t, err)
		p.SetGrad(g)
	}
	require.NoError(t, opt.Step())
}

func TestSaveResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epoch_3.born")

	model := nn.NewTwoLayerNet(5, 4, 2, nn.WithSeed(7))
	opt := optim.NewAdam(nn.Parameters(model), optim.AdamConfig{LR: 0.01})
	step(t, model, opt)
	require.NoError(t, checkpoint.Save(path, model, opt, checkpoint.Metadata{"epoch": 3, "loss": 0.5}))

	fresh := nn.NewTwoLayerNet(5, 4, 2, nn.WithSeed(8))
	freshOpt := optim.NewAdam(nn.Parameters(fresh), optim.AdamConfig{LR: 0.01})
	b, err := checkpoint.Resume(path, fresh, freshOpt)
	require.NoError(t, err)

	epoch, ok := b.Epoch()
	require.True(t, ok)
	assert.Equal(t, 3, epoch)

	// Both copies must evolve identically after resuming.
	step(t, model, opt)
	step(t, fresh, freshOpt)
	want, got := statedict.Snapshot(model), statedict.Snapshot(fresh)
	for _, name := range want.Keys() {
		w, _ := want.Get(name)
		g, _ := got.Get(name)
		assert.True(t, w.Equal(g), name)
	}
}

func TestManagerLoadLatest(t *testing.T) {
	m, err := checkpoint.NewManager(t.TempDir(), checkpoint.WithKeep(2))
	require.NoError(t, err)

	model := nn.NewTwoLayerNet(3, 3, 1, nn.WithSeed(1))
	for _, s := range []int64{1, 2, 3} {
		_, err := m.Save(&checkpoint.Bundle{
			Params:   statedict.Snapshot(model),
			Metadata: checkpoint.Metadata{"step": s},
		}, s)
		require.NoError(t, err)
	}

	entries, err := m.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	b, latest, err := m.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Step)
	s, ok := b.Int("step")
	require.True(t, ok)
	assert.Equal(t, int64(3), s)
}

func TestExportSafeTensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	model := nn.NewSequential(nn.NewLinear(2, 2, nn.WithSeed(4)), nn.NewBatchNorm1d(2))
	require.NoError(t, checkpoint.ExportSafeTensors(path, model, nil))

	_, err := checkpoint.ReadFile(path)
	assert.ErrorIs(t, err, checkpoint.ErrCorruptData)
}
