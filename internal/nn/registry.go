package nn

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Architecture type names of the built-in modules.
const (
	TypeLinear      = "Linear"
	TypeReLU        = "ReLU"
	TypeBatchNorm1d = "BatchNorm1d"
	TypeSequential  = "Sequential"
	TypeTwoLayerNet = "TwoLayerNet"
)

// Architecture is an explicit, serializable description of how to construct a
// module: a registered type name plus a type-specific JSON config.
//
// It replaces persisting live object graphs: a saved model names its type, and
// loading resolves that name through a Registry instead of reflection.
type Architecture struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// NewArchitecture marshals cfg into an Architecture of the given type.
func NewArchitecture(typeName string, cfg any) (Architecture, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return Architecture{}, errors.Wrapf(err, "failed to marshal %s config", typeName)
	}
	return Architecture{Type: typeName, Config: raw}, nil
}

// Describable is implemented by modules that can describe their own architecture.
type Describable interface {
	Architecture() (Architecture, error)
}

// Factory builds a fresh module from its config. The registry is passed so
// containers can build their children.
type Factory func(cfg json.RawMessage, r *Registry) (Module, error)

// UnknownTypeError is returned by Registry.Build when a type name has no factory.
type UnknownTypeError struct {
	Type  string
	Known []string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown module type %q (registered: %v)", e.Type, e.Known)
}

// Registry maps architecture type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates typeName with f, replacing any previous factory.
func (r *Registry) Register(typeName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs a fresh module from arch.
//
// Returns *UnknownTypeError when arch.Type, or the type of any nested child,
// is not registered.
func (r *Registry) Build(arch Architecture) (Module, error) {
	r.mu.RLock()
	f, ok := r.factories[arch.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownTypeError{Type: arch.Type, Known: r.Types()}
	}
	m, err := f(arch.Config, r)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build %s", arch.Type)
	}
	return m, nil
}

// DefaultRegistry knows every module type of this package.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeLinear, func(raw json.RawMessage, _ *Registry) (Module, error) {
		var cfg LinearConfig
		if err := decodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		if cfg.InFeatures <= 0 || cfg.OutFeatures <= 0 {
			return nil, errors.Errorf("invalid Linear config %+v", cfg)
		}
		var opts []Option
		if !cfg.Bias {
			opts = append(opts, WithoutBias())
		}
		return NewLinear(cfg.InFeatures, cfg.OutFeatures, opts...), nil
	})
	r.Register(TypeReLU, func(json.RawMessage, *Registry) (Module, error) {
		return NewReLU(), nil
	})
	r.Register(TypeBatchNorm1d, func(raw json.RawMessage, _ *Registry) (Module, error) {
		var cfg BatchNorm1dConfig
		if err := decodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		if cfg.Features <= 0 {
			return nil, errors.Errorf("invalid BatchNorm1d config %+v", cfg)
		}
		return newBatchNorm1d(cfg), nil
	})
	r.Register(TypeTwoLayerNet, func(raw json.RawMessage, _ *Registry) (Module, error) {
		var cfg TwoLayerNetConfig
		if err := decodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		if cfg.In <= 0 || cfg.Hidden <= 0 || cfg.Out <= 0 {
			return nil, errors.Errorf("invalid TwoLayerNet config %+v", cfg)
		}
		return NewTwoLayerNet(cfg.In, cfg.Hidden, cfg.Out), nil
	})
	r.Register(TypeSequential, func(raw json.RawMessage, reg *Registry) (Module, error) {
		var cfg SequentialConfig
		if err := decodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		seq := NewSequential()
		for i, child := range cfg.Modules {
			m, err := reg.Build(child)
			if err != nil {
				return nil, errors.WithMessagef(err, "Sequential module %d", i)
			}
			seq.Add(m)
		}
		return seq, nil
	})
	return r
}

func decodeConfig(raw json.RawMessage, cfg any) error {
	if len(raw) == 0 {
		return errors.New("missing config")
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return errors.Wrap(err, "failed to decode config")
	}
	return nil
}
