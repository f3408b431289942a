package serialization

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"slices"

	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/statedict"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ReadOption configures how files are read and validated.
type ReadOption func(*readOptions)

type readOptions struct {
	level        ValidationLevel
	skipChecksum bool
}

func buildReadOptions(opts []ReadOption) readOptions {
	o := readOptions{level: ValidationStrict}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithValidation sets the header validation level. Default is ValidationStrict.
func WithValidation(level ValidationLevel) ReadOption {
	return func(o *readOptions) { o.level = level }
}

// WithSkipChecksum skips SHA-256 verification (faster but less safe).
func WithSkipChecksum() ReadOption {
	return func(o *readOptions) { o.skipChecksum = true }
}

// File is a parsed .born file whose tensors still live in the source buffer.
type File struct {
	Header   Header
	Version  uint32
	Flags    uint32
	Checksum [ChecksumSize]byte

	data []byte // data region only
}

// parseFile checks the fixed header, the checksum and the JSON header of buf.
//
//nolint:gocyclo,cyclop // sequential checks of a binary layout
func parseFile(buf []byte, o readOptions) (*File, error) {
	if len(buf) < len(MagicBytes) {
		return nil, errors.Wrapf(ErrTruncated, "%d bytes", len(buf))
	}
	if string(buf[:4]) != MagicBytes {
		return nil, errors.Wrapf(ErrInvalidMagic, "got %q, expected %q", buf[:4], MagicBytes)
	}
	if len(buf) < 8 {
		return nil, errors.Wrapf(ErrTruncated, "%d bytes", len(buf))
	}
	f := &File{Version: binary.LittleEndian.Uint32(buf[4:8])}
	if f.Version != FormatVersion {
		return nil, errors.Wrapf(ErrVersionMismatch, "got %d, supported %d", f.Version, FormatVersion)
	}
	if len(buf) < FixedHeaderSize {
		return nil, errors.Wrapf(ErrTruncated, "fixed header needs %d bytes, file has %d", FixedHeaderSize, len(buf))
	}

	f.Flags = binary.LittleEndian.Uint32(buf[8:12])
	headerSize := binary.LittleEndian.Uint64(buf[16:24])
	dataSize := binary.LittleEndian.Uint64(buf[24:32])
	copy(f.Checksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, &ValidationError{
			Type:    "header_too_large",
			Details: fmt.Sprintf("%d bytes, max %d", headerSize, MaxHeaderSize),
		}
	}
	headerEnd := int64(FixedHeaderSize) + int64(headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize
	start := dataOffset(int64(headerSize))                  //nolint:gosec // G115: bounded by MaxHeaderSize
	size := int64(len(buf))
	if headerEnd > size || start > size || dataSize > uint64(size-start) {
		return nil, errors.Wrapf(ErrTruncated, "header %d + data %d bytes, file has %d", headerSize, dataSize, size)
	}
	end := start + int64(dataSize) //nolint:gosec // G115: bounded by file size
	if end != size {
		return nil, &ValidationError{
			Type:    "trailing_data",
			Details: fmt.Sprintf("%d bytes after data region", size-end),
		}
	}

	headerJSON := buf[FixedHeaderSize:headerEnd]
	f.data = buf[start:end]
	if !o.skipChecksum {
		if err := ValidateChecksum(ComputeChecksum(headerJSON, f.data), f.Checksum); err != nil {
			return nil, err
		}
	}

	if err := json.Unmarshal(headerJSON, &f.Header); err != nil {
		return nil, errors.WithMessagef(ErrCorruptData, "malformed header JSON: %v", err)
	}
	if f.Header.FormatVersion == 0 {
		return nil, errors.WithMessage(ErrCorruptData, "header has no format_version")
	}
	if f.Header.FormatVersion != FormatVersion {
		return nil, errors.Wrapf(ErrVersionMismatch, "header declares version %d", f.Header.FormatVersion)
	}
	if err := ValidateHeader(&f.Header, f.Flags, int64(dataSize), o.level); err != nil { //nolint:gosec // G115: bounded by file size
		return nil, errors.WithMessage(err, "header validation failed")
	}
	return f, nil
}

// Tensor copies the tensor described by meta out of the data region.
func (f *File) Tensor(meta TensorMeta) (*tensor.RawTensor, error) {
	if err := checkBounds(meta, int64(len(f.data))); err != nil {
		return nil, err
	}
	if err := validateTensorMeta(meta); err != nil {
		return nil, err
	}
	dtype, _ := tensor.ParseDataType(meta.DType)
	raw, err := tensor.FromBytes(tensor.Shape(meta.Shape).Clone(), dtype, f.data[meta.Offset:meta.Offset+meta.Size])
	if err != nil {
		return nil, errors.WithMessagef(ErrCorruptData, "tensor %q: %v", meta.Name, err)
	}
	return raw, nil
}

// Params decodes the parameter section, or returns nil if there is none.
func (f *File) Params() (*statedict.StateDict, error) {
	if f.Header.Params == nil {
		return nil, nil
	}
	sd := statedict.New()
	for _, meta := range f.Header.Params.Tensors {
		if sd.Has(meta.Name) {
			return nil, &ValidationError{Type: "duplicate_name", Tensor: meta.Name, Details: "name appears twice"}
		}
		raw, err := f.Tensor(meta)
		if err != nil {
			return nil, err
		}
		sd.Set(meta.Name, raw)
	}
	return sd, nil
}

// Optimizer decodes the optimizer section, or returns nil if there is none.
func (f *File) Optimizer() (*optim.State, error) {
	o := f.Header.OptimizerState
	if o == nil {
		return nil, nil
	}
	s := &optim.State{
		Kind:        o.Kind,
		ParamGroups: o.ParamGroups,
		ParamNames:  o.ParamNames,
		PerParam:    make(map[int]optim.ParamState, len(o.State)),
	}
	for _, entry := range o.State {
		if _, dup := s.PerParam[entry.Index]; dup {
			return nil, &ValidationError{
				Type:    "invalid_optimizer_state",
				Details: fmt.Sprintf("position %d appears twice", entry.Index),
			}
		}
		ps := optim.ParamState{
			Scalars: maps.Clone(entry.Scalars),
			Buffers: make(map[string]*tensor.RawTensor, len(entry.Buffers)),
		}
		if ps.Scalars == nil {
			ps.Scalars = map[string]float64{}
		}
		for _, meta := range entry.Buffers {
			raw, err := f.Tensor(meta)
			if err != nil {
				return nil, errors.WithMessagef(err, "optimizer state %d", entry.Index)
			}
			ps.Buffers[meta.Name] = raw
		}
		s.PerParam[entry.Index] = ps
	}
	return s, nil
}

// Metadata decodes the metadata section, or returns nil if there is none.
func (f *File) Metadata() (map[string]any, error) {
	if len(f.Header.Metadata) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(f.Header.Metadata))
	dec.UseNumber()
	var md map[string]any
	if err := dec.Decode(&md); err != nil {
		return nil, errors.WithMessagef(ErrCorruptData, "malformed metadata: %v", err)
	}
	for k, v := range md {
		md[k] = normalizeNumbers(v)
	}
	return md, nil
}

// Bundle decodes every section.
func (f *File) Bundle() (*Bundle, error) {
	b := &Bundle{
		ID:           f.Header.ID,
		CreatedAt:    f.Header.CreatedAt,
		Architecture: f.Header.Architecture,
	}
	var err error
	if b.Params, err = f.Params(); err != nil {
		return nil, err
	}
	if b.Optimizer, err = f.Optimizer(); err != nil {
		return nil, err
	}
	if b.Metadata, err = f.Metadata(); err != nil {
		return nil, err
	}
	return b, nil
}

// normalizeNumbers turns json.Number into int64 when integral, float64 otherwise,
// and restores tagged non-finite floats.
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		if f, ok := decodeNonFinite(v); ok {
			return f
		}
		for k, e := range v {
			v[k] = normalizeNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = normalizeNumbers(e)
		}
		return v
	default:
		return v
	}
}

// Decode parses a complete .born file held in memory. The returned bundle
// does not reference data.
func Decode(data []byte, opts ...ReadOption) (*Bundle, error) {
	f, err := parseFile(data, buildReadOptions(opts))
	if err != nil {
		return nil, err
	}
	return f.Bundle()
}

// ReadFrom reads a complete .born file from r.
func ReadFrom(r io.Reader, opts ...ReadOption) (*Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read checkpoint")
	}
	return Decode(data, opts...)
}

// ReadFile reads the .born file at path.
//
// Errors match ErrNotFound when path does not exist, ErrVersionMismatch for
// files written by an incompatible version, and ErrCorruptData for anything
// that is not a well-formed file.
func ReadFile(path string, opts ...ReadOption) (*Bundle, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	b, err := Decode(data, opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load %s", path)
	}
	klog.V(1).Infof("Loaded checkpoint %s (id=%s, %d bytes)", path, b.ID, len(data))
	return b, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
