package statedict

import (
	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/tensor"
	"k8s.io/klog/v2"
)

// LoadReport lists the names that a lenient Apply skipped.
type LoadReport struct {
	Missing    []string // expected by the model, absent from the state: left unchanged
	Unexpected []string // present in the state, unknown to the model: ignored
}

// Clean reports whether the state and the model had identical name sets.
func (r LoadReport) Clean() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0
}

// Snapshot copies the current parameters and buffers of model into a new
// StateDict, in nn.StateEntries order. Later in-place updates of the model do
// not affect the snapshot.
func Snapshot(model nn.Module) *StateDict {
	sd := New()
	for _, e := range nn.StateEntries(model) {
		sd.Set(e.Name, e.Tensor.Clone())
	}
	return sd
}

// Apply copies values from sd into model's parameters and buffers by name.
//
// With strict, any missing or unexpected name, and any shape or dtype mismatch,
// fails with a *MismatchError that lists every offending name; the model is
// left untouched.
//
// Without strict, the intersection is copied and the skipped names are
// returned in the LoadReport. Shape or dtype mismatches among intersecting
// names remain errors, detected before anything is copied.
//
// Only tensor values change: gradients and training mode are not touched.
func Apply(sd *StateDict, model nn.Module, strict bool) (LoadReport, error) {
	entries := nn.StateEntries(model)

	var report LoadReport
	var shapes []ShapeMismatch
	expected := make(map[string]bool, len(entries))
	targets := make([]nn.NamedTensor, 0, len(entries))
	sources := make([]*tensor.RawTensor, 0, len(entries))

	for _, e := range entries {
		expected[e.Name] = true
		src, ok := sd.Get(e.Name)
		if !ok {
			report.Missing = append(report.Missing, e.Name)
			continue
		}
		if src.DType() != e.Tensor.DType() || !src.Shape().Equal(e.Tensor.Shape()) {
			shapes = append(shapes, ShapeMismatch{
				Name:      e.Name,
				WantShape: e.Tensor.Shape(),
				GotShape:  src.Shape(),
				WantDType: e.Tensor.DType(),
				GotDType:  src.DType(),
			})
			continue
		}
		targets = append(targets, e)
		sources = append(sources, src)
	}
	for _, name := range sd.Keys() {
		if !expected[name] {
			report.Unexpected = append(report.Unexpected, name)
		}
	}

	if len(shapes) > 0 || (strict && !report.Clean()) {
		err := &MismatchError{Shapes: shapes}
		if strict {
			err.Missing = report.Missing
			err.Unexpected = report.Unexpected
		}
		return report, err
	}

	for i, e := range targets {
		// Shapes and dtypes were checked above.
		_ = e.Tensor.CopyFrom(sources[i])
	}
	klog.V(2).Infof("statedict: applied %d of %d entries (missing=%d, unexpected=%d)",
		len(targets), len(entries), len(report.Missing), len(report.Unexpected))
	return report, nil
}
