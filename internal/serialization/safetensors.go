package serialization

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/fs"
	"os"
	"slices"
	"sort"

	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const safeTensorsMetadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

var safeTensorsDTypes = map[tensor.DataType]string{
	tensor.Float16: "F16",
	tensor.Float32: "F32",
	tensor.Float64: "F64",
	tensor.Int64:   "I64",
}

func dtypeFromSafeTensors(s string) (tensor.DataType, bool) {
	for dt, name := range safeTensorsDTypes {
		if name == s {
			return dt, true
		}
	}
	return 0, false
}

// ExportSafeTensors atomically writes a parameter store to path in the
// HuggingFace SafeTensors layout, for inference-only consumers.
//
// Format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header, space-padded to 8 bytes]
// [tensor data: raw bytes]
//
// Tensors are written in alphabetical order by name.
func ExportSafeTensors(path string, sd *statedict.StateDict, metadata map[string]string) error {
	if sd == nil {
		return errors.New("nothing to export: no parameter store")
	}
	err := writeAtomic(path, func(w io.Writer) error {
		return writeSafeTensors(w, sd, metadata)
	})
	if err != nil {
		return errors.WithMessagef(err, "failed to export %s", path)
	}
	klog.V(1).Infof("Exported %d tensors to %s", sd.Len(), path)
	return nil
}

func writeSafeTensors(w io.Writer, sd *statedict.StateDict, metadata map[string]string) error {
	names := sd.Keys()
	slices.Sort(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header[safeTensorsMetadataKey] = metadata
	}
	var offset int64
	for _, name := range names {
		raw, _ := sd.Get(name)
		dtype, ok := safeTensorsDTypes[raw.DType()]
		if !ok {
			return errors.Errorf("tensor %q: dtype %s has no SafeTensors equivalent", name, raw.DType())
		}
		shape := make([]int64, len(raw.Shape()))
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}
		size := int64(raw.ByteSize())
		header[name] = SafeTensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	if pad := (8 - len(headerJSON)%8) % 8; pad > 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, name := range names {
		raw, _ := sd.Get(name)
		if _, err := w.Write(raw.Data()); err != nil {
			return errors.Wrapf(err, "failed to write tensor %s", name)
		}
	}
	return nil
}

// ReadSafeTensors reads a SafeTensors file into a parameter store ordered by
// data offset, plus its string metadata.
func ReadSafeTensors(path string) (*statedict.StateDict, map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if len(data) < 8 {
		return nil, nil, errors.Wrapf(ErrTruncated, "%s", path)
	}
	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > MaxHeaderSize || headerSize > uint64(len(data)-8) {
		return nil, nil, errors.Wrapf(ErrTruncated, "%s: header of %d bytes", path, headerSize)
	}
	body := data[8+headerSize:]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &raw); err != nil {
		return nil, nil, errors.WithMessagef(ErrCorruptData, "%s: malformed header: %v", path, err)
	}

	var metadata map[string]string
	metas := make([]TensorMeta, 0, len(raw))
	for name, msg := range raw {
		if name == safeTensorsMetadataKey {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, errors.WithMessagef(ErrCorruptData, "%s: malformed metadata: %v", path, err)
			}
			continue
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, errors.WithMessagef(ErrCorruptData, "%s: tensor %q: %v", path, name, err)
		}
		dtype, ok := dtypeFromSafeTensors(h.DType)
		if !ok {
			return nil, nil, errors.Errorf("%s: tensor %q: unsupported dtype %s", path, name, h.DType)
		}
		shape := make([]int, len(h.Shape))
		for i, d := range h.Shape {
			shape[i] = int(d)
		}
		metas = append(metas, TensorMeta{
			Name:   name,
			DType:  dtype.String(),
			Shape:  shape,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		})
	}
	if err := ValidateTensorOffsets(metas, int64(len(body))); err != nil {
		return nil, nil, errors.WithMessagef(err, "%s", path)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Offset < metas[j].Offset })

	f := &File{data: body}
	sd := statedict.New()
	for _, meta := range metas {
		t, err := f.Tensor(meta)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "%s", path)
		}
		sd.Set(meta.Name, t)
	}
	return sd, metadata, nil
}
