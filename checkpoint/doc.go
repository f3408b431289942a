// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint saves and restores Born training state in .born files.
//
// # Overview
//
// A .born file holds any combination of four sections:
//   - params: the parameter store of a model (names, shapes, values)
//   - optimizer_state: hyperparameter groups and per-parameter buffers
//   - metadata: user values such as "epoch" and "loss"
//   - architecture: a descriptor that lets LoadModel rebuild the model
//
// Files are written atomically: a failed save never damages an existing file.
// Every file carries a SHA-256 checksum that is verified on load.
//
// # Inference Weights
//
//	if err := checkpoint.SaveStateDict("model.born", model); err != nil {
//	    log.Fatal(err)
//	}
//	report, err := checkpoint.LoadStateDict("model.born", model, true)
//
// # Resumable Training
//
//	err := checkpoint.Save("ckpt.born", model, optimizer, checkpoint.Metadata{"epoch": 5})
//
//	// In a new process, with model and optimizer built exactly as before:
//	b, err := checkpoint.Resume("ckpt.born", model, optimizer)
//
// Resume checks that the optimizer has the same kind, group layout and
// parameter order as the one that was saved; a mismatch is reported as an
// optim.StructuralMismatchError and neither model nor optimizer is modified.
//
// # Rotating Checkpoints
//
//	m, err := checkpoint.NewManager("runs/exp1", checkpoint.WithKeep(3))
//	_, err = m.Save(&checkpoint.Bundle{...}, step)
//	b, latest, err := m.LoadLatest()
package checkpoint
