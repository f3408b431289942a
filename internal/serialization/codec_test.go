package serialization

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainedBundle returns a small model's parameters and SGD momentum state
// after two steps with synthetic gradients.
func trainedBundle(t *testing.T) *Bundle {
	t.Helper()
	model := nn.NewTwoLayerNet(8, 6, 3, nn.WithSeed(11))
	opt := optim.NewSGD(nn.Parameters(model), optim.SGDConfig{LR: 0.05, Momentum: 0.9})
	for step := range 2 {
		for _, p := range nn.Parameters(model) {
			values := p.Tensor().AsFloat32()
			grad := make([]float32, len(values))
			for i, v := range values {
				grad[i] = 0.5*v + 0.01*float32(step+i%5)
			}
			g, err := tensor.FromFloat32(p.Tensor().Shape(), grad)
			require.NoError(t, err)
			p.SetGrad(g)
		}
		require.NoError(t, opt.Step())
	}

	state := optim.Snapshot(opt)
	state.ParamNames = optim.NameParams(opt, model)
	arch, err := model.Architecture()
	require.NoError(t, err)
	return &Bundle{
		Params:       statedict.Snapshot(model),
		Optimizer:    state,
		Architecture: &arch,
		Metadata: map[string]any{
			KeyEpoch: 5,
			KeyLoss:  0.25,
			"run":    "baseline",
			"sched":  map[string]any{"warmup": 100, "gamma": 0.5},
		},
	}
}

func encodeBundle(t *testing.T, b *Bundle) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, b))
	return buf.Bytes()
}

func assertSameStore(t *testing.T, want, got *statedict.StateDict) {
	t.Helper()
	require.Equal(t, want.Keys(), got.Keys())
	want.Range(func(name string, w *tensor.RawTensor) bool {
		g, _ := got.Get(name)
		assert.Equal(t, w.Shape(), g.Shape(), name)
		assert.True(t, w.Equal(g), "%s differs", name)
		return true
	})
}

func TestParamsOnlyRoundTrip(t *testing.T) {
	model := nn.NewTwoLayerNet(1000, 100, 10, nn.WithSeed(1))
	sd := statedict.Snapshot(model)
	path := filepath.Join(t.TempDir(), "model.born")

	require.NoError(t, WriteFile(path, &Bundle{Params: sd}))

	b, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"linear1.weight", "linear1.bias", "linear2.weight", "linear2.bias"}, b.Params.Keys())
	w, _ := b.Params.Get("linear1.weight")
	assert.Equal(t, tensor.Shape{100, 1000}, w.Shape())
	bias, _ := b.Params.Get("linear2.bias")
	assert.Equal(t, tensor.Shape{10}, bias.Shape())
	assertSameStore(t, sd, b.Params)

	assert.Nil(t, b.Optimizer)
	assert.Nil(t, b.Metadata)
	assert.NotEmpty(t, b.ID)
	assert.False(t, b.CreatedAt.IsZero())
}

func TestFullBundleRoundTrip(t *testing.T) {
	want := trainedBundle(t)
	path := filepath.Join(t.TempDir(), "ckpt.born")
	require.NoError(t, WriteFile(path, want))

	got, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assertSameStore(t, want.Params, got.Params)

	require.NotNil(t, got.Optimizer)
	assert.Equal(t, optim.KindSGD, got.Optimizer.Kind)
	assert.Equal(t, want.Optimizer.ParamGroups, got.Optimizer.ParamGroups)
	assert.Equal(t, want.Optimizer.ParamNames, got.Optimizer.ParamNames)
	require.Equal(t, want.Optimizer.Indices(), got.Optimizer.Indices())
	for idx, ps := range want.Optimizer.PerParam {
		buf := got.Optimizer.PerParam[idx].Buffers["momentum_buffer"]
		require.NotNil(t, buf, "position %d", idx)
		assert.True(t, ps.Buffers["momentum_buffer"].Equal(buf), "position %d", idx)
	}

	epoch, ok := got.Epoch()
	assert.True(t, ok)
	assert.Equal(t, 5, epoch)
	loss, ok := got.Loss()
	assert.True(t, ok)
	assert.InDelta(t, 0.25, loss, 0)
	run, _ := got.Text("run")
	assert.Equal(t, "baseline", run)
	assert.Equal(t, int64(5), got.Metadata[KeyEpoch])
	assert.Equal(t, map[string]any{"warmup": int64(100), "gamma": 0.5}, got.Metadata["sched"])

	require.NotNil(t, got.Architecture)
	assert.Equal(t, nn.TypeTwoLayerNet, got.Architecture.Type)
	assert.JSONEq(t, string(want.Architecture.Config), string(got.Architecture.Config))
}

func TestEncodeLayout(t *testing.T) {
	data := encodeBundle(t, trainedBundle(t))

	assert.Equal(t, MagicBytes, string(data[:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, FlagHasParams|FlagHasOptimizer|FlagHasMetadata|FlagHasArchitecture,
		binary.LittleEndian.Uint32(data[8:12]))

	headerSize := int64(binary.LittleEndian.Uint64(data[16:24]))
	dataSize := int64(binary.LittleEndian.Uint64(data[24:32]))
	start := dataOffset(headerSize)
	assert.Zero(t, start%HeaderAlignment)
	assert.Equal(t, int64(len(data)), start+dataSize)
}

func TestStreamRoundTrip(t *testing.T) {
	want := trainedBundle(t)
	data := encodeBundle(t, want)

	got, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	assertSameStore(t, want.Params, got.Params)
	assert.Equal(t, want.ID, got.ID)
}

func TestReservedMetadataKey(t *testing.T) {
	for _, key := range []string{KeyParams, KeyOptimizerState} {
		b := &Bundle{Params: statedict.New(), Metadata: map[string]any{key: 1}}
		err := Encode(io.Discard, b)
		assert.True(t, errors.Is(err, ErrReservedKey), "key %q: %v", key, err)
	}
}

func TestReadFileNotFound(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.born"))
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestChecksumDetectsCorruption(t *testing.T) {
	data := encodeBundle(t, trainedBundle(t))
	headerSize := int64(binary.LittleEndian.Uint64(data[16:24]))

	tests := []struct {
		name string
		pos  int
	}{
		{"data region", len(data) - 3},
		{"header JSON", FixedHeaderSize + int(headerSize)/2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := bytes.Clone(data)
			corrupt[tt.pos] ^= 0xFF

			_, err := Decode(corrupt)
			assert.True(t, errors.Is(err, ErrChecksumMismatch), "got %v", err)
			assert.True(t, errors.Is(err, ErrCorruptData))
		})
	}

	t.Run("skip checksum", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[len(corrupt)-3] ^= 0xFF
		_, err := Decode(corrupt, WithSkipChecksum())
		assert.NoError(t, err)
	})
}

func TestTruncatedFiles(t *testing.T) {
	data := encodeBundle(t, trainedBundle(t))
	for _, cut := range []int{0, 3, 6, 40, FixedHeaderSize + 10, len(data) / 2, len(data) - 1} {
		_, err := Decode(data[:cut])
		assert.True(t, errors.Is(err, ErrCorruptData), "cut at %d: %v", cut, err)
		assert.False(t, errors.Is(err, ErrVersionMismatch), "cut at %d", cut)
	}
}

func TestInvalidMagic(t *testing.T) {
	data := encodeBundle(t, trainedBundle(t))
	copy(data, "GGUF")

	_, err := Decode(data)
	assert.True(t, errors.Is(err, ErrInvalidMagic), "got %v", err)
	assert.True(t, errors.Is(err, ErrCorruptData))
}

func TestVersionMismatch(t *testing.T) {
	data := encodeBundle(t, trainedBundle(t))
	binary.LittleEndian.PutUint32(data[4:8], FormatVersion+1)

	_, err := Decode(data)
	assert.True(t, errors.Is(err, ErrVersionMismatch), "got %v", err)
	assert.False(t, errors.Is(err, ErrCorruptData))
}

func TestTrailingData(t *testing.T) {
	data := append(encodeBundle(t, trainedBundle(t)), 0, 0, 0, 0)

	_, err := Decode(data)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "trailing_data", verr.Type)
	assert.True(t, errors.Is(err, ErrCorruptData))
}

// failingWriter accepts limit bytes and then fails.
type failingWriter struct {
	w     io.Writer
	limit int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if len(p) > f.limit {
		n, _ := f.w.Write(p[:f.limit])
		f.limit = 0
		return n, errors.New("disk full")
	}
	f.limit -= len(p)
	return f.w.Write(p)
}

func failWritesAfter(t *testing.T, limit int) {
	t.Helper()
	orig := newFileWriter
	newFileWriter = func(f *os.File) io.Writer { return &failingWriter{w: f, limit: limit} }
	t.Cleanup(func() { newFileWriter = orig })
}

func TestWriteFileIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt.born")

	first := trainedBundle(t)
	require.NoError(t, WriteFile(path, first))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	failWritesAfter(t, 100)
	second := trainedBundle(t)
	second.Metadata[KeyEpoch] = 6
	err = WriteFile(path, second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "previous checkpoint must be untouched")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")
	assert.Equal(t, "ckpt.born", entries[0].Name())

	b, err := ReadFile(path)
	require.NoError(t, err)
	epoch, _ := b.Epoch()
	assert.Equal(t, 5, epoch)
}

func TestWriteFileFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.born")

	failWritesAfter(t, 0)
	require.Error(t, WriteFile(path, trainedBundle(t)))

	_, err := ReadFile(path)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
