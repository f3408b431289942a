// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package checkpoint

import (
	"github.com/born-ml/ckpt/internal/checkpoint"
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/born-ml/ckpt/internal/statedict"
)

// Bundle is the content of one checkpoint file.
type Bundle = checkpoint.Bundle

// Metadata holds user-defined, JSON-encodable values.
type Metadata = checkpoint.Metadata

// Model is a module that can describe its own architecture.
type Model = checkpoint.Model

// Reserved and well-known keys.
const (
	KeyParams         = checkpoint.KeyParams
	KeyOptimizerState = checkpoint.KeyOptimizerState
	KeyEpoch          = checkpoint.KeyEpoch
	KeyLoss           = checkpoint.KeyLoss
)

// Errors. Match them with errors.Is.
var (
	ErrNotFound        = serialization.ErrNotFound
	ErrCorruptData     = serialization.ErrCorruptData
	ErrVersionMismatch = serialization.ErrVersionMismatch
	ErrReservedKey     = serialization.ErrReservedKey
	ErrMissingSection  = checkpoint.ErrMissingSection
	ErrClassResolution = checkpoint.ErrClassResolution
)

// ClassResolutionError is returned by LoadModel for unregistered module types.
type ClassResolutionError = checkpoint.ClassResolutionError

// ReadOption configures how files are read and validated.
type ReadOption = serialization.ReadOption

// ValidationLevel controls how thoroughly headers are checked.
type ValidationLevel = serialization.ValidationLevel

// Validation levels.
const (
	ValidationStrict = serialization.ValidationStrict
	ValidationNormal = serialization.ValidationNormal
	ValidationNone   = serialization.ValidationNone
)

// WithValidation sets the header validation level. Default is ValidationStrict.
func WithValidation(level ValidationLevel) ReadOption {
	return serialization.WithValidation(level)
}

// WithSkipChecksum skips SHA-256 verification.
func WithSkipChecksum() ReadOption {
	return serialization.WithSkipChecksum()
}

// SaveStateDict writes the parameters and buffers of model to path.
func SaveStateDict(path string, model nn.Module) error {
	return checkpoint.SaveStateDict(path, model)
}

// LoadStateDict reads the parameters of path into model.
func LoadStateDict(path string, model nn.Module, strict bool, opts ...ReadOption) (statedict.LoadReport, error) {
	return checkpoint.LoadStateDict(path, model, strict, opts...)
}

// SaveOptimizer writes the state of opt to path.
func SaveOptimizer(path string, opt optim.Stateful) error {
	return checkpoint.SaveOptimizer(path, opt)
}

// LoadOptimizer reads the optimizer state of path into opt.
func LoadOptimizer(path string, opt optim.Stateful, opts ...ReadOption) error {
	return checkpoint.LoadOptimizer(path, opt, opts...)
}

// Save writes a resumable checkpoint.
//
// Example:
//
//	err := checkpoint.Save("epoch_10.born", model, optimizer, checkpoint.Metadata{
//	    "epoch": 10,
//	    "loss":  0.123,
//	})
func Save(path string, model nn.Module, opt optim.Stateful, metadata Metadata) error {
	return checkpoint.Save(path, model, opt, metadata)
}

// Resume restores a checkpoint written by Save into model and opt.
//
// Example:
//
//	b, err := checkpoint.Resume("epoch_10.born", model, optimizer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	epoch, _ := b.Epoch()
//	for e := epoch + 1; e < totalEpochs; e++ {
//	    // Training loop...
//	}
func Resume(path string, model nn.Module, opt optim.Stateful, opts ...ReadOption) (*Bundle, error) {
	return checkpoint.Resume(path, model, opt, opts...)
}

// SaveModel writes model's architecture and state to path.
func SaveModel(path string, model Model, metadata Metadata) error {
	return checkpoint.SaveModel(path, model, metadata)
}

// LoadModel rebuilds the model stored at path using registry
// (nn.DefaultRegistry when nil).
func LoadModel(path string, registry *nn.Registry, opts ...ReadOption) (nn.Module, *Bundle, error) {
	return checkpoint.LoadModel(path, registry, opts...)
}

// WriteFile atomically writes an arbitrary bundle to path.
func WriteFile(path string, b *Bundle) error {
	return serialization.WriteFile(path, b)
}

// ReadFile reads the bundle stored at path.
func ReadFile(path string, opts ...ReadOption) (*Bundle, error) {
	return serialization.ReadFile(path, opts...)
}

// ExportSafeTensors writes the parameters of model to path in the SafeTensors
// layout for inference-only consumers.
func ExportSafeTensors(path string, model nn.Module, metadata map[string]string) error {
	return serialization.ExportSafeTensors(path, statedict.Snapshot(model), metadata)
}

// Manager keeps a rotating set of numbered checkpoints in a directory.
type Manager = checkpoint.Manager

// ManagerOption configures a Manager.
type ManagerOption = checkpoint.ManagerOption

// Entry is one checkpoint file in a Manager's directory.
type Entry = checkpoint.Entry

// NewManager returns a Manager for dir, creating it if needed.
func NewManager(dir string, opts ...ManagerOption) (*Manager, error) {
	return checkpoint.NewManager(dir, opts...)
}

// WithKeep sets how many checkpoints a Manager keeps; -1 keeps all.
func WithKeep(n int) ManagerOption {
	return checkpoint.WithKeep(n)
}
