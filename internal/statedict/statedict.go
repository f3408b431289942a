// Package statedict implements the parameter store of a model: an ordered
// mapping from dotted hierarchical names to tensor values.
//
// Snapshot copies a live model's parameters and buffers into a StateDict;
// Apply copies a StateDict back into a model with matching architecture.
package statedict

import (
	"github.com/born-ml/ckpt/internal/tensor"
)

// StateDict is an ordered mapping from name to tensor. Iteration follows
// insertion order; replacing an existing name keeps its position.
type StateDict struct {
	keys   []string
	values map[string]*tensor.RawTensor
}

// New creates an empty StateDict.
func New() *StateDict {
	return &StateDict{values: make(map[string]*tensor.RawTensor)}
}

// Set stores t under name. A new name is appended at the end.
func (sd *StateDict) Set(name string, t *tensor.RawTensor) {
	if _, ok := sd.values[name]; !ok {
		sd.keys = append(sd.keys, name)
	}
	sd.values[name] = t
}

// Get returns the tensor stored under name.
func (sd *StateDict) Get(name string) (*tensor.RawTensor, bool) {
	t, ok := sd.values[name]
	return t, ok
}

// Has reports whether name is present.
func (sd *StateDict) Has(name string) bool {
	_, ok := sd.values[name]
	return ok
}

// Delete removes name, preserving the order of the remaining keys.
func (sd *StateDict) Delete(name string) {
	if _, ok := sd.values[name]; !ok {
		return
	}
	delete(sd.values, name)
	for i, k := range sd.keys {
		if k == name {
			sd.keys = append(sd.keys[:i], sd.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the names in order. The slice is a copy.
func (sd *StateDict) Keys() []string {
	return append([]string(nil), sd.keys...)
}

// Len returns the number of entries.
func (sd *StateDict) Len() int {
	return len(sd.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (sd *StateDict) Range(fn func(name string, t *tensor.RawTensor) bool) {
	for _, k := range sd.keys {
		if !fn(k, sd.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (sd *StateDict) Clone() *StateDict {
	out := New()
	sd.Range(func(name string, t *tensor.RawTensor) bool {
		out.Set(name, t.Clone())
		return true
	})
	return out
}

// ByteSize returns the total size of all tensor buffers.
func (sd *StateDict) ByteSize() int64 {
	var total int64
	for _, t := range sd.values {
		total += int64(t.ByteSize())
	}
	return total
}
