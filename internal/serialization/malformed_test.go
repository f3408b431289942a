package serialization

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assemble builds a well-formed container around headerJSON and data, with a
// matching checksum, so that only the header contents are under test.
func assemble(t *testing.T, headerJSON []byte, flags uint32, data []byte) []byte {
	t.Helper()
	checksum := ComputeChecksum(headerJSON, data)
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	out := append(fixed, headerJSON...)
	pad := dataOffset(int64(len(headerJSON))) - int64(len(out))
	out = append(out, make([]byte, pad)...)
	return append(out, data...)
}

func TestOverflowingShapeIsCorrupt(t *testing.T) {
	h := Header{
		FormatVersion: FormatVersion,
		ID:            "overflow",
		Params: &ParamsSection{Tensors: []TensorMeta{
			// The element count wraps to zero in 64-bit arithmetic.
			{Name: "w", DType: "float32", Shape: []int{math.MaxInt/2 + 1, 4}, Offset: 0, Size: 0},
		}},
	}
	headerJSON, err := json.Marshal(&h)
	require.NoError(t, err)
	data := assemble(t, headerJSON, h.Flags(), nil)

	for _, level := range []ValidationLevel{ValidationStrict, ValidationNormal, ValidationNone} {
		b, err := Decode(data, WithValidation(level))
		assert.Nil(t, b, "level %v", level)
		assert.True(t, errors.Is(err, ErrCorruptData), "level %v: got %v", level, err)
	}
}

func TestMissingFormatVersionIsCorrupt(t *testing.T) {
	for _, headerJSON := range []string{`null`, `{}`, `{"id":"x"}`} {
		_, err := Decode(assemble(t, []byte(headerJSON), 0, nil))
		assert.True(t, errors.Is(err, ErrCorruptData), "%s: got %v", headerJSON, err)
		assert.False(t, errors.Is(err, ErrVersionMismatch), headerJSON)
	}

	_, err := Decode(assemble(t, []byte(`{"format_version":2}`), 0, nil))
	assert.True(t, errors.Is(err, ErrVersionMismatch), "got %v", err)
}

func TestNonFiniteMetadataRoundTrip(t *testing.T) {
	in := &Bundle{Metadata: map[string]any{
		KeyEpoch:  3,
		KeyLoss:   math.NaN(),
		"best":    math.Inf(1),
		"worst":   float32(math.Inf(-1)),
		"history": []float64{0.5, math.NaN()},
		"nested":  map[string]any{"grad_norm": math.Inf(1), "lr": 0.1},
	}}
	out, err := Decode(encodeBundle(t, in))
	require.NoError(t, err)

	loss, ok := out.Loss()
	require.True(t, ok)
	assert.True(t, math.IsNaN(loss))

	best, ok := out.Float("best")
	require.True(t, ok)
	assert.True(t, math.IsInf(best, 1))

	worst, ok := out.Float("worst")
	require.True(t, ok)
	assert.True(t, math.IsInf(worst, -1))

	history := out.Metadata["history"].([]any)
	assert.Equal(t, 0.5, history[0])
	assert.True(t, math.IsNaN(history[1].(float64)))

	nested := out.Metadata["nested"].(map[string]any)
	assert.True(t, math.IsInf(nested["grad_norm"].(float64), 1))
	assert.Equal(t, 0.1, nested["lr"])

	epoch, ok := out.Epoch()
	require.True(t, ok)
	assert.Equal(t, 3, epoch)

	// The caller's metadata is not rewritten.
	assert.True(t, math.IsNaN(in.Metadata[KeyLoss].(float64)))
}

func TestIntRange(t *testing.T) {
	b := &Bundle{Metadata: map[string]any{
		"min":    float64(math.MinInt64),
		"huge":   1e19,
		"tiny":   -1e19,
		"two63":  math.Exp2(63),
		"frac":   2.5,
		"nan":    math.NaN(),
		"native": int64(math.MaxInt64),
	}}

	v, ok := b.Int("min")
	require.True(t, ok)
	assert.Equal(t, int64(math.MinInt64), v)

	v, ok = b.Int("native")
	require.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), v)

	for _, key := range []string{"huge", "tiny", "two63", "frac", "nan", "absent"} {
		_, ok := b.Int(key)
		assert.False(t, ok, key)
	}
}
