package optim

import (
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrStructuralMismatch is matched by errors.Is when optimizer state does not
// fit the optimizer it is applied to.
var ErrStructuralMismatch = errors.New("optimizer state structure mismatch")

// StructuralMismatchError describes the first disagreement found by Apply.
type StructuralMismatchError struct {
	Field string // e.g. "param_groups", "param_groups[1].params", "state[3].exp_avg"
	Want  string // what the optimizer has
	Got   string // what the state has
}

// Error implements the error interface.
func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("optimizer state does not fit optimizer: %s: optimizer has %s, state has %s",
		e.Field, e.Want, e.Got)
}

// Is makes the error match ErrStructuralMismatch.
func (e *StructuralMismatchError) Is(target error) bool {
	return target == ErrStructuralMismatch
}

func mismatch(field string, want, got any) error {
	return &StructuralMismatchError{Field: field, Want: fmt.Sprint(want), Got: fmt.Sprint(got)}
}

func mismatchf(want, got any, format string, args ...any) error {
	return mismatch(fmt.Sprintf(format, args...), want, got)
}

// State is the serializable state of an optimizer: its hyperparameter groups
// and the auxiliary buffers of each parameter, keyed by position.
type State struct {
	Kind        string
	ParamGroups []ParamGroup
	PerParam    map[int]ParamState

	// ParamNames optionally records the hierarchical name of each position,
	// see NameParams. Apply ignores it.
	ParamNames []string
}

// NumParams returns the number of parameters listed across all groups.
func (s *State) NumParams() int {
	n := 0
	for _, g := range s.ParamGroups {
		n += len(g.Params)
	}
	return n
}

// Indices returns the positions present in PerParam, sorted.
func (s *State) Indices() []int {
	return slices.Sorted(maps.Keys(s.PerParam))
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{
		Kind:        s.Kind,
		ParamGroups: make([]ParamGroup, len(s.ParamGroups)),
		PerParam:    make(map[int]ParamState, len(s.PerParam)),
		ParamNames:  append([]string(nil), s.ParamNames...),
	}
	for i, g := range s.ParamGroups {
		out.ParamGroups[i] = g.Clone()
	}
	for idx, ps := range s.PerParam {
		out.PerParam[idx] = ps.Clone()
	}
	return out
}

// NameParams returns the hierarchical name within model of each parameter of
// opt, in position order. It returns nil if some parameter of opt does not
// belong to model.
func NameParams(opt Stateful, model nn.Module) []string {
	byPtr := make(map[*nn.Parameter]string)
	for _, e := range nn.NamedParameters(model) {
		byPtr[e.Param] = e.Name
	}
	params := opt.Params()
	names := make([]string, len(params))
	for i, p := range params {
		name, ok := byPtr[p]
		if !ok {
			return nil
		}
		names[i] = name
	}
	return names
}

// Snapshot copies the state of opt. Group order and the order of parameters
// within each group are preserved; buffers are deep-copied.
func Snapshot(opt Stateful) *State {
	s := &State{
		Kind:        opt.Kind(),
		ParamGroups: opt.ParamGroups(),
		PerParam:    make(map[int]ParamState),
	}
	for idx, ps := range opt.PerParamState() {
		s.PerParam[idx] = ps.Clone()
	}
	return s
}

// Apply restores state into opt.
//
// The state must come from an optimizer of the same kind with the same number
// of groups and the same number of parameters in each group. Saved positions
// are matched to opt's positions group by group, and every buffer must have
// the shape and dtype of the parameter it belongs to. On any disagreement Apply
// returns a *StructuralMismatchError and opt is left unchanged.
func Apply(state *State, opt Stateful) error {
	if state == nil {
		return errors.New("optimizer state is nil")
	}
	if state.Kind != opt.Kind() {
		return mismatch("kind", opt.Kind(), state.Kind)
	}
	live := opt.ParamGroups()
	params := opt.Params()
	if len(state.ParamGroups) != len(live) {
		return mismatch("param_groups", len(live), len(state.ParamGroups))
	}
	if n := state.NumParams(); n != len(params) {
		return mismatch("params", len(params), n)
	}

	remap := make(map[int]int, len(params))
	groups := make([]ParamGroup, len(live))
	for i, g := range state.ParamGroups {
		if len(g.Params) != len(live[i].Params) {
			return mismatchf(len(live[i].Params), len(g.Params), "param_groups[%d].params", i)
		}
		for j, saved := range g.Params {
			if _, dup := remap[saved]; dup {
				return mismatchf("distinct positions", fmt.Sprintf("%d twice", saved), "param_groups[%d].params[%d]", i, j)
			}
			remap[saved] = live[i].Params[j]
		}
		groups[i] = g.Clone()
		groups[i].Params = live[i].Params
	}

	perParam := make(map[int]ParamState, len(state.PerParam))
	for _, saved := range state.Indices() {
		idx, ok := remap[saved]
		if !ok {
			return mismatchf("no such position", "state for it", "state[%d]", saved)
		}
		ps := state.PerParam[saved]
		p := params[idx].Tensor()
		for _, name := range slices.Sorted(maps.Keys(ps.Buffers)) {
			buf := ps.Buffers[name]
			if buf.DType() != p.DType() || !buf.Shape().Equal(p.Shape()) {
				return mismatchf(p.DType().String()+p.Shape().String(), buf.DType().String()+buf.Shape().String(),
					"state[%d].%s", saved, name)
			}
		}
		perParam[idx] = ps
	}

	if err := opt.Replace(groups, perParam); err != nil {
		return errors.WithMessage(err, "optimizer rejected state")
	}
	klog.V(2).Infof("optim: restored %s state: %d groups, %d params, %d with buffers",
		state.Kind, len(groups), len(params), len(perParam))
	return nil
}
