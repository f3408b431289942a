package serialization

import (
	"math"
	"time"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/pkg/errors"
)

// Reserved section names. Metadata may not use them.
const (
	KeyParams         = "params"
	KeyOptimizerState = "optimizer_state"
)

// Well-known metadata keys.
const (
	KeyEpoch = "epoch"
	KeyLoss  = "loss"
)

// Bundle is the decoded content of a .born file. Every section is optional:
// a bundle may hold only Params (an inference artifact), or Params, Optimizer
// and Metadata (a resumable checkpoint).
//
// Metadata values must be JSON-encodable. After decoding, integral numbers
// are int64, other numbers float64, objects map[string]any and arrays []any.
type Bundle struct {
	ID           string // assigned on save when empty
	CreatedAt    time.Time
	Params       *statedict.StateDict
	Optimizer    *optim.State
	Metadata     map[string]any
	Architecture *nn.Architecture
}

// Validate checks that metadata does not use a reserved key.
func (b *Bundle) Validate() error {
	for _, k := range []string{KeyParams, KeyOptimizerState} {
		if _, ok := b.Metadata[k]; ok {
			return errors.Wrapf(ErrReservedKey, "%q", k)
		}
	}
	return nil
}

// Epoch returns the "epoch" metadata entry.
func (b *Bundle) Epoch() (int, bool) {
	v, ok := b.Int(KeyEpoch)
	return int(v), ok
}

// Loss returns the "loss" metadata entry.
func (b *Bundle) Loss() (float64, bool) {
	return b.Float(KeyLoss)
}

// Int returns an integral metadata value. Floats with no fractional part
// are accepted when they fit in an int64.
func (b *Bundle) Int(key string) (int64, bool) {
	switch v := b.Metadata[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v), true
		}
	}
	return 0, false
}

// Float returns a numeric metadata value as float64.
func (b *Bundle) Float(key string) (float64, bool) {
	switch v := b.Metadata[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Text returns a string metadata value.
func (b *Bundle) Text(key string) (string, bool) {
	v, ok := b.Metadata[key].(string)
	return v, ok
}
