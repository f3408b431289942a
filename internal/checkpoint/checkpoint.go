package checkpoint

import (
	"fmt"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SaveStateDict writes the parameters and buffers of model to path.
func SaveStateDict(path string, model nn.Module) error {
	return serialization.WriteFile(path, &Bundle{Params: statedict.Snapshot(model)})
}

// LoadStateDict reads the parameter section of path into model.
//
// See statedict.Apply for the meaning of strict. The file may hold other
// sections; they are ignored.
func LoadStateDict(path string, model nn.Module, strict bool, opts ...serialization.ReadOption) (statedict.LoadReport, error) {
	b, err := serialization.ReadFile(path, opts...)
	if err != nil {
		return statedict.LoadReport{}, err
	}
	if b.Params == nil {
		return statedict.LoadReport{}, errors.Wrapf(ErrMissingSection, "%s has no %s section", path, KeyParams)
	}
	report, err := statedict.Apply(b.Params, model, strict)
	if err != nil {
		return report, errors.WithMessagef(err, "failed to load %s", path)
	}
	if !report.Clean() {
		klog.V(1).Infof("Loaded %s leniently: %d missing, %d unexpected", path, len(report.Missing), len(report.Unexpected))
	}
	return report, nil
}

// SaveOptimizer writes the state of opt to path.
func SaveOptimizer(path string, opt optim.Stateful) error {
	return serialization.WriteFile(path, &Bundle{Optimizer: optim.Snapshot(opt)})
}

// LoadOptimizer reads the optimizer section of path into opt.
func LoadOptimizer(path string, opt optim.Stateful, opts ...serialization.ReadOption) error {
	b, err := serialization.ReadFile(path, opts...)
	if err != nil {
		return err
	}
	if b.Optimizer == nil {
		return errors.Wrapf(ErrMissingSection, "%s has no %s section", path, KeyOptimizerState)
	}
	if err := optim.Apply(b.Optimizer, opt); err != nil {
		return errors.WithMessagef(err, "failed to load %s", path)
	}
	return nil
}

// Save writes a resumable checkpoint: the parameters and buffers of model,
// the state of opt and metadata. opt may be nil.
//
// The hierarchical name of every optimizer position is recorded so Resume can
// detect a model whose parameters were declared in a different order.
func Save(path string, model nn.Module, opt optim.Stateful, metadata Metadata) error {
	b := &Bundle{
		Params:   statedict.Snapshot(model),
		Metadata: metadata,
	}
	if opt != nil {
		b.Optimizer = optim.Snapshot(opt)
		b.Optimizer.ParamNames = optim.NameParams(opt, model)
	}
	return serialization.WriteFile(path, b)
}

// Resume restores a checkpoint written by Save into model and opt and returns
// the decoded bundle for its metadata.
//
// The parameters are applied strictly. Either both model and opt are updated,
// or, on error, neither is. When opt is nil the optimizer section is ignored.
func Resume(path string, model nn.Module, opt optim.Stateful, opts ...serialization.ReadOption) (*Bundle, error) {
	b, err := serialization.ReadFile(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := restore(b, model, opt); err != nil {
		return nil, errors.WithMessagef(err, "failed to resume from %s", path)
	}
	epoch, _ := b.Epoch()
	klog.V(1).Infof("Resumed from %s (id=%s, epoch=%d)", path, b.ID, epoch)
	return b, nil
}

// restore applies b to model and opt, rolling the model back if the
// optimizer state does not fit.
func restore(b *Bundle, model nn.Module, opt optim.Stateful) error {
	if b.Params == nil {
		return errors.Wrapf(ErrMissingSection, "no %s section", KeyParams)
	}
	if opt != nil {
		if b.Optimizer == nil {
			return errors.Wrapf(ErrMissingSection, "no %s section", KeyOptimizerState)
		}
		if err := checkParamNames(b.Optimizer.ParamNames, optim.NameParams(opt, model)); err != nil {
			return err
		}
	}

	var previous *statedict.StateDict
	if opt != nil {
		previous = statedict.Snapshot(model)
	}
	if _, err := statedict.Apply(b.Params, model, true); err != nil {
		return err
	}
	if opt == nil {
		return nil
	}
	if err := optim.Apply(b.Optimizer, opt); err != nil {
		if _, rbErr := statedict.Apply(previous, model, true); rbErr != nil {
			klog.Errorf("failed to roll back model parameters: %v", rbErr)
		}
		return err
	}
	return nil
}

// checkParamNames compares the recorded position names with the live ones.
// Either side may be unknown, in which case only optim.Apply's structural
// checks apply.
func checkParamNames(saved, live []string) error {
	if len(saved) == 0 || live == nil || len(saved) != len(live) {
		return nil
	}
	for i := range saved {
		if saved[i] != live[i] {
			return &optim.StructuralMismatchError{
				Field: fmt.Sprintf("param_names[%d]", i),
				Want:  live[i],
				Got:   saved[i],
			}
		}
	}
	return nil
}
