// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/born-ml/ckpt/nn"
	"github.com/born-ml/ckpt/tensor"
)

// TestModuleInterface verifies that concrete types implement Module and Describable.
func TestModuleInterface(t *testing.T) {
	tests := []struct {
		name   string
		module nn.Module
	}{
		{name: "Linear", module: nn.NewLinear(10, 5)},
		{name: "ReLU", module: nn.NewReLU()},
		{name: "BatchNorm1d", module: nn.NewBatchNorm1d(4)},
		{name: "Sequential", module: nn.NewSequential(nn.NewLinear(10, 5), nn.NewReLU())},
		{name: "TwoLayerNet", module: nn.NewTwoLayerNet(4, 3, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tt.module.(nn.Describable)
			if !ok {
				t.Fatalf("%s does not implement Describable", tt.name)
			}
			arch, err := d.Architecture()
			if err != nil {
				t.Fatalf("Architecture() failed: %v", err)
			}
			rebuilt, err := nn.DefaultRegistry.Build(arch)
			if err != nil {
				t.Fatalf("Build(%s) failed: %v", arch.Type, err)
			}
			want, got := nn.StateEntries(tt.module), nn.StateEntries(rebuilt)
			if len(want) != len(got) {
				t.Fatalf("rebuilt module has %d state entries, want %d", len(got), len(want))
			}
			for i := range want {
				if want[i].Name != got[i].Name || !want[i].Tensor.Shape().Equal(got[i].Tensor.Shape()) {
					t.Errorf("entry %d: got %s%v, want %s%v",
						i, got[i].Name, got[i].Tensor.Shape(), want[i].Name, want[i].Tensor.Shape())
				}
			}
		})
	}
}

// TestTwoLayerNetNames checks the documented naming scheme.
func TestTwoLayerNetNames(t *testing.T) {
	model := nn.NewTwoLayerNet(1000, 100, 10)
	want := []struct {
		name  string
		shape tensor.Shape
	}{
		{"linear1.weight", tensor.Shape{100, 1000}},
		{"linear1.bias", tensor.Shape{100}},
		{"linear2.weight", tensor.Shape{10, 100}},
		{"linear2.bias", tensor.Shape{10}},
	}

	got := nn.StateEntries(model)
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Name != w.name || !got[i].Tensor.Shape().Equal(w.shape) {
			t.Errorf("entry %d: got %s%v, want %s%v", i, got[i].Name, got[i].Tensor.Shape(), w.name, w.shape)
		}
	}
	if n := len(nn.Parameters(model)); n != 4 {
		t.Errorf("Parameters() returned %d, want 4", n)
	}
}
