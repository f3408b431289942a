package serialization

import (
	"time"

	"github.com/born-ml/ckpt/internal/nn"
	"github.com/born-ml/ckpt/internal/optim"
	"github.com/goccy/go-json"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 1    // current and only supported version
	HeaderAlignment = 64   // data region starts on a 64-byte boundary
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // checksum offset in the fixed header
)

// LibraryVersion is recorded in every header.
const LibraryVersion = "0.1.0"

// Flags for the .born format. They mirror which header sections are present.
const (
	FlagHasParams       uint32 = 1 << 0
	FlagHasOptimizer    uint32 = 1 << 1
	FlagHasMetadata     uint32 = 1 << 2
	FlagHasArchitecture uint32 = 1 << 3
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"created_at"`
	LibraryVersion string            `json:"library_version"`
	Params         *ParamsSection    `json:"params,omitempty"`
	OptimizerState *OptimizerSection `json:"optimizer_state,omitempty"`
	Metadata       json.RawMessage   `json:"metadata,omitempty"`
	Architecture   *nn.Architecture  `json:"architecture,omitempty"`
}

// ParamsSection lists the parameter tensors in store order.
type ParamsSection struct {
	Tensors []TensorMeta `json:"tensors"`
}

// OptimizerSection is the serialized form of optim.State.
type OptimizerSection struct {
	Kind        string             `json:"kind"`
	ParamGroups []optim.ParamGroup `json:"param_groups"`
	ParamNames  []string           `json:"param_names,omitempty"` // hierarchical name of each position, when known
	State       []ParamStateMeta   `json:"state"`
}

// ParamStateMeta describes the state of one parameter position.
type ParamStateMeta struct {
	Index   int                `json:"index"`
	Scalars map[string]float64 `json:"scalars,omitempty"`
	Buffers []TensorMeta       `json:"buffers,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "linear1.weight", or "exp_avg" for buffers)
	DType  string `json:"dtype"`  // Data type (e.g., "float32", "float64")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// Flags computes the flag word matching the sections present in h.
func (h *Header) Flags() uint32 {
	var flags uint32
	if h.Params != nil {
		flags |= FlagHasParams
	}
	if h.OptimizerState != nil {
		flags |= FlagHasOptimizer
	}
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if h.Architecture != nil {
		flags |= FlagHasArchitecture
	}
	return flags
}

// AllTensors returns the parameter tensors followed by every optimizer buffer.
func (h *Header) AllTensors() []TensorMeta {
	var out []TensorMeta
	if h.Params != nil {
		out = append(out, h.Params.Tensors...)
	}
	if h.OptimizerState != nil {
		for _, s := range h.OptimizerState.State {
			out = append(out, s.Buffers...)
		}
	}
	return out
}

// dataOffset returns where the data region starts for a header of the given size.
func dataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
