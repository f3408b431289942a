// Package checkpoint saves and restores training state.
//
// A checkpoint is a Bundle written to one .born file. The helpers in this
// package cover the common shapes of a bundle:
//
//   - SaveStateDict / LoadStateDict: parameters and buffers only.
//   - SaveOptimizer / LoadOptimizer: optimizer state only.
//   - Save / Resume: parameters, optimizer state and metadata together.
//   - SaveModel / LoadModel: parameters plus an architecture descriptor, so the
//     model can be rebuilt from the file through an nn.Registry.
//
// Manager keeps a rotating set of checkpoints in a directory.
//
// Example:
//
//	model := nn.NewTwoLayerNet(784, 128, 10)
//	opt := optim.NewAdam(nn.Parameters(model), optim.AdamConfig{LR: 1e-3})
//	// ... train ...
//	err := checkpoint.Save("epoch_10.born", model, opt, checkpoint.Metadata{"epoch": 10, "loss": 0.12})
//
//	// Later, in a fresh process with the same model and optimizer layout:
//	b, err := checkpoint.Resume("epoch_10.born", model, opt)
//	epoch, _ := b.Epoch()
package checkpoint

import (
	"github.com/born-ml/ckpt/internal/serialization"
)

// Bundle is the content of one checkpoint file.
type Bundle = serialization.Bundle

// Metadata holds user-defined, JSON-encodable values such as "epoch" and "loss".
type Metadata = map[string]any

// Reserved and well-known keys, see serialization.Bundle.
const (
	KeyParams         = serialization.KeyParams
	KeyOptimizerState = serialization.KeyOptimizerState
	KeyEpoch          = serialization.KeyEpoch
	KeyLoss           = serialization.KeyLoss
)
