package nn

import (
	"strconv"

	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
)

// Sequential is a container module that chains multiple modules together.
//
// Children are named by their index, so a Sequential of
// [Linear, ReLU, Linear] has the state names "0.weight", "0.bias",
// "2.weight" and "2.bias".
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10),
//	)
type Sequential struct {
	modules []Module
}

// SequentialConfig is the architecture descriptor of a Sequential container.
type SequentialConfig struct {
	Modules []Architecture `json:"modules"`
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	output := input
	for i, module := range s.modules {
		var err error
		output, err = module.Forward(output)
		if err != nil {
			return nil, errors.WithMessagef(err, "module %d", i)
		}
	}
	return output, nil
}

// LocalParameters returns nil: all parameters live in children.
func (s *Sequential) LocalParameters() []*Parameter { return nil }

// LocalBuffers returns nil.
func (s *Sequential) LocalBuffers() []*Buffer { return nil }

// Children returns the modules named "0", "1", ...
func (s *Sequential) Children() []Child {
	children := make([]Child, len(s.modules))
	for i, m := range s.modules {
		children[i] = Child{Name: strconv.Itoa(i), Module: m}
	}
	return children
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// Architecture implements Describable. Every child must be Describable too.
func (s *Sequential) Architecture() (Architecture, error) {
	cfg := SequentialConfig{Modules: make([]Architecture, len(s.modules))}
	for i, m := range s.modules {
		d, ok := m.(Describable)
		if !ok {
			return Architecture{}, errors.Errorf("Sequential module %d (%T) does not describe its architecture", i, m)
		}
		arch, err := d.Architecture()
		if err != nil {
			return Architecture{}, errors.WithMessagef(err, "Sequential module %d", i)
		}
		cfg.Modules[i] = arch
	}
	return NewArchitecture(TypeSequential, cfg)
}
