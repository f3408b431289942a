// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package statedict provides the parameter store: an ordered mapping from
// hierarchical names such as "linear1.weight" to tensors.
//
// Example:
//
//	sd := statedict.Snapshot(model)
//	// ... later, into a model built the same way ...
//	if _, err := statedict.Apply(sd, model, true); err != nil {
//	    var mismatch *statedict.MismatchError
//	    if errors.As(err, &mismatch) {
//	        fmt.Println("missing:", mismatch.Missing)
//	    }
//	}
package statedict

import (
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/statedict"
)

// StateDict is an ordered name to tensor mapping.
type StateDict = statedict.StateDict

// LoadReport lists the names a lenient Apply skipped.
type LoadReport = statedict.LoadReport

// MismatchError lists every name that prevented a strict Apply.
type MismatchError = statedict.MismatchError

// ShapeMismatch describes one name whose shape or dtype differs.
type ShapeMismatch = statedict.ShapeMismatch

// Errors matched by *MismatchError.
var (
	ErrKeyMismatch   = statedict.ErrKeyMismatch
	ErrShapeMismatch = statedict.ErrShapeMismatch
)

// New creates an empty StateDict.
func New() *StateDict {
	return statedict.New()
}

// Snapshot copies the parameters and buffers of model.
func Snapshot(model nn.Module) *StateDict {
	return statedict.Snapshot(model)
}

// Apply copies sd into model. With strict, names and shapes must match exactly
// and nothing is modified on failure; otherwise the intersection is copied.
func Apply(sd *StateDict, model nn.Module, strict bool) (LoadReport, error) {
	return statedict.Apply(sd, model, strict)
}
