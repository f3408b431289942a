package serialization

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeTensorsExport(t *testing.T) {
	model := nn.NewSequential(nn.NewLinear(5, 4, nn.WithSeed(2)), nn.NewBatchNorm1d(4))
	sd := statedict.Snapshot(model)
	path := filepath.Join(t.TempDir(), "model.safetensors")

	require.NoError(t, ExportSafeTensors(path, sd, map[string]string{"format": "pt"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	headerSize := binary.LittleEndian.Uint64(data[:8])
	assert.Zero(t, headerSize%8, "header must be padded to 8 bytes")

	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data[8:8+headerSize], &header))
	assert.Contains(t, header, "__metadata__")
	var running SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["1.running_var"], &running))
	assert.Equal(t, "F32", running.DType)
	assert.Equal(t, []int64{4}, running.Shape)
	var counter SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["1.num_batches_tracked"], &counter))
	assert.Equal(t, "I64", counter.DType)

	got, md, err := ReadSafeTensors(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"format": "pt"}, md)
	assert.ElementsMatch(t, sd.Keys(), got.Keys())
	sd.Range(func(name string, want *tensor.RawTensor) bool {
		g, ok := got.Get(name)
		require.True(t, ok, name)
		assert.True(t, want.Equal(g), name)
		return true
	})
}

func TestSafeTensorsOrderIsAlphabetical(t *testing.T) {
	sd := statedict.New()
	sd.Set("z", tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32))
	sd.Set("a", tensor.MustNewRaw(tensor.Shape{3}, tensor.Float64))
	path := filepath.Join(t.TempDir(), "ordered.safetensors")
	require.NoError(t, ExportSafeTensors(path, sd, nil))

	got, md, err := ReadSafeTensors(path)
	require.NoError(t, err)
	assert.Nil(t, md)
	assert.Equal(t, []string{"a", "z"}, got.Keys())
}

func TestReadSafeTensorsMissing(t *testing.T) {
	_, _, err := ReadSafeTensors(filepath.Join(t.TempDir(), "nope.safetensors"))
	assert.ErrorIs(t, err, ErrNotFound)
}
