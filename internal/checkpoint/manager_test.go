package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/ckpt/internal/checkpoint"
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepBundle(step int) *checkpoint.Bundle {
	return &checkpoint.Bundle{
		Params:   statedict.Snapshot(nn.NewLinear(3, 2, nn.WithSeed(uint64(step)))),
		Metadata: checkpoint.Metadata{checkpoint.KeyEpoch: step},
	}
}

func TestManagerRotation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs", "exp1")
	m, err := checkpoint.NewManager(dir, checkpoint.WithKeep(2))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))
	for _, step := range []int{10, 20, 30} {
		path, err := m.Save(stepBundle(step), int64(step))
		require.NoError(t, err)
		assert.Equal(t, m.Path(int64(step)), path)
	}

	entries, err := m.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(20), entries[0].Step)
	assert.Equal(t, int64(30), entries[1].Step)
	assert.Equal(t, filepath.Join(dir, "checkpoint-000000030.born"), entries[1].Path)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.NoFileExists(t, m.Path(10))

	b, latest, err := m.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, int64(30), latest.Step)
	epoch, _ := b.Epoch()
	assert.Equal(t, 30, epoch)
}

func TestManagerKeepAll(t *testing.T) {
	m, err := checkpoint.NewManager(t.TempDir(), checkpoint.WithKeep(-1))
	require.NoError(t, err)
	for step := range 4 {
		_, err := m.Save(stepBundle(step), int64(step))
		require.NoError(t, err)
	}
	entries, err := m.List()
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestManagerDefaultKeepsOne(t *testing.T) {
	m, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)
	for step := range 3 {
		_, err := m.Save(stepBundle(step), int64(step))
		require.NoError(t, err)
	}
	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.Step)
	entries, _ := m.List()
	assert.Len(t, entries, 1)
}

func TestManagerErrors(t *testing.T) {
	dir := t.TempDir()
	m, err := checkpoint.NewManager(dir)
	require.NoError(t, err)

	_, err = m.Latest()
	assert.True(t, errors.Is(err, serialization.ErrNotFound), "got %v", err)
	_, _, err = m.LoadLatest()
	assert.True(t, errors.Is(err, serialization.ErrNotFound), "got %v", err)

	_, err = m.Save(stepBundle(1), -1)
	assert.Error(t, err)

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = checkpoint.NewManager(file)
	assert.Error(t, err)

	_, err = checkpoint.NewManager(dir, checkpoint.WithKeep(0))
	assert.Error(t, err)
}
