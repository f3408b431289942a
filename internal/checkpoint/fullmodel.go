package checkpoint

import (
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Model is a module that can describe its own architecture.
type Model interface {
	nn.Module
	nn.Describable
}

// SaveModel writes model's architecture descriptor and its parameters and
// buffers to path, so LoadModel can rebuild it without the caller
// constructing it first.
func SaveModel(path string, model Model, metadata Metadata) error {
	arch, err := model.Architecture()
	if err != nil {
		return errors.WithMessage(err, "failed to describe model")
	}
	return serialization.WriteFile(path, &Bundle{
		Params:       statedict.Snapshot(model),
		Architecture: &arch,
		Metadata:     metadata,
	})
}

// LoadModel rebuilds the model stored at path by resolving its architecture in
// registry (nn.DefaultRegistry when nil) and then loading its parameters
// strictly.
//
// A type name that the registry does not know fails with a
// *ClassResolutionError.
func LoadModel(path string, registry *nn.Registry, opts ...serialization.ReadOption) (nn.Module, *Bundle, error) {
	if registry == nil {
		registry = nn.DefaultRegistry
	}
	b, err := serialization.ReadFile(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	if b.Architecture == nil {
		return nil, nil, errors.Wrapf(ErrMissingSection, "%s has no architecture", path)
	}
	if b.Params == nil {
		return nil, nil, errors.Wrapf(ErrMissingSection, "%s has no %s section", path, KeyParams)
	}

	model, err := registry.Build(*b.Architecture)
	if err != nil {
		var unknown *nn.UnknownTypeError
		if errors.As(err, &unknown) {
			return nil, nil, errors.WithMessagef(
				&ClassResolutionError{Type: unknown.Type, Known: unknown.Known, err: unknown}, "%s", path)
		}
		return nil, nil, errors.WithMessagef(err, "failed to rebuild model from %s", path)
	}
	if _, err := statedict.Apply(b.Params, model, true); err != nil {
		return nil, nil, errors.WithMessagef(err, "failed to load %s", path)
	}
	klog.V(1).Infof("Rebuilt %s model from %s", b.Architecture.Type, path)
	return model, b, nil
}
