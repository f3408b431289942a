// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/ckpt/internal/nn"
)

// Architecture type names of the built-in modules.
const (
	TypeLinear      = nn.TypeLinear
	TypeReLU        = nn.TypeReLU
	TypeBatchNorm1d = nn.TypeBatchNorm1d
	TypeSequential  = nn.TypeSequential
	TypeTwoLayerNet = nn.TypeTwoLayerNet
)

// Architecture describes how to construct a module: a registered type name and
// a JSON config.
type Architecture = nn.Architecture

// Describable is implemented by modules that can describe their own architecture.
type Describable = nn.Describable

// Factory builds a module from its config.
type Factory = nn.Factory

// Registry maps architecture type names to factories.
type Registry = nn.Registry

// UnknownTypeError is returned when a type name has no factory.
type UnknownTypeError = nn.UnknownTypeError

// DefaultRegistry knows every built-in module type.
var DefaultRegistry = nn.DefaultRegistry

// NewRegistry creates an empty registry.
//
// Custom modules are registered with a factory:
//
//	reg := nn.NewRegistry()
//	reg.Register("MyNet", func(cfg json.RawMessage, r *nn.Registry) (nn.Module, error) {
//	    var c MyNetConfig
//	    if err := json.Unmarshal(cfg, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewMyNet(c), nil
//	})
func NewRegistry() *Registry {
	return nn.NewRegistry()
}

// NewArchitecture marshals cfg into an Architecture of the given type.
func NewArchitecture(typeName string, cfg any) (Architecture, error) {
	return nn.NewArchitecture(typeName, cfg)
}
