package serialization

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FilePermMode is the permission of files created by WriteFile.
const FilePermMode = 0o644

// newFileWriter wraps the temporary file before buffering. Tests replace it
// to inject write failures.
var newFileWriter = func(f *os.File) io.Writer { return f }

// layout is a bundle with its header computed and its tensors in data order.
type layout struct {
	header     Header
	headerJSON []byte
	tensors    []*tensor.RawTensor
	dataSize   int64
}

// buildLayout assigns offsets and marshals the header.
func buildLayout(b *Bundle) (*layout, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	l := &layout{header: Header{
		FormatVersion:  FormatVersion,
		ID:             b.ID,
		CreatedAt:      b.CreatedAt,
		LibraryVersion: LibraryVersion,
		Architecture:   b.Architecture,
	}}
	add := func(name string, t *tensor.RawTensor) TensorMeta {
		meta := TensorMeta{
			Name:   name,
			DType:  t.DType().String(),
			Shape:  []int(t.Shape().Clone()),
			Offset: l.dataSize,
			Size:   int64(t.ByteSize()),
		}
		l.tensors = append(l.tensors, t)
		l.dataSize += meta.Size
		return meta
	}

	if b.Params != nil {
		section := &ParamsSection{Tensors: make([]TensorMeta, 0, b.Params.Len())}
		b.Params.Range(func(name string, t *tensor.RawTensor) bool {
			section.Tensors = append(section.Tensors, add(name, t))
			return true
		})
		l.header.Params = section
	}

	if b.Optimizer != nil {
		l.header.OptimizerState = optimizerSection(b.Optimizer, add)
	}

	if len(b.Metadata) > 0 {
		raw, err := json.Marshal(encodeMetadata(b.Metadata))
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal metadata")
		}
		l.header.Metadata = raw
	}

	var err error
	l.headerJSON, err = json.Marshal(&l.header)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal header")
	}
	if len(l.headerJSON) > MaxHeaderSize {
		return nil, errors.Errorf("header of %d bytes exceeds maximum %d", len(l.headerJSON), MaxHeaderSize)
	}
	return l, nil
}

// optimizerSection lays out s, calling add for every buffer in position order
// and then buffer name order.
func optimizerSection(s *optim.State, add func(string, *tensor.RawTensor) TensorMeta) *OptimizerSection {
	section := &OptimizerSection{
		Kind:        s.Kind,
		ParamGroups: s.ParamGroups,
		ParamNames:  s.ParamNames,
		State:       make([]ParamStateMeta, 0, len(s.PerParam)),
	}
	for _, idx := range s.Indices() {
		ps := s.PerParam[idx]
		meta := ParamStateMeta{Index: idx, Scalars: ps.Scalars}
		for _, name := range sortedKeys(ps.Buffers) {
			meta.Buffers = append(meta.Buffers, add(name, ps.Buffers[name]))
		}
		section.State = append(section.State, meta)
	}
	return section
}

// Encode writes b to w in .born format.
//
// Encode assigns b.ID and b.CreatedAt when they are unset. The bundle is
// read, never retained.
func Encode(w io.Writer, b *Bundle) error {
	l, err := buildLayout(b)
	if err != nil {
		return err
	}

	data := make([][]byte, len(l.tensors))
	for i, t := range l.tensors {
		data[i] = t.Data()
	}
	checksum := ComputeChecksum(l.headerJSON, data...)

	fixedHeader := make([]byte, FixedHeaderSize)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixedHeader[8:12], l.header.Flags())
	// 0x0C-0x0F: Reserved (0)
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(l.headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(l.dataSize)) //nolint:gosec // G115: sum of buffer lengths
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return errors.Wrap(err, "failed to write fixed header")
	}
	if _, err := w.Write(l.headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header JSON")
	}
	headerEnd := int64(FixedHeaderSize) + int64(len(l.headerJSON))
	if padding := dataOffset(int64(len(l.headerJSON))) - headerEnd; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return errors.Wrap(err, "failed to write padding")
		}
	}
	for i, d := range data {
		if _, err := w.Write(d); err != nil {
			return errors.Wrapf(err, "failed to write tensor %d of %d", i+1, len(data))
		}
	}
	return nil
}

// WriteFile atomically writes b to path.
//
// The bundle is written to a temporary file in the same directory, synced and
// renamed over path. On any error the temporary file is removed and an
// existing file at path is left unchanged.
func WriteFile(path string, b *Bundle) error {
	err := writeAtomic(path, func(w io.Writer) error { return Encode(w, b) })
	if err != nil {
		return errors.WithMessagef(err, "failed to save %s", path)
	}
	klog.V(1).Infof("Saved checkpoint %s (id=%s)", path, b.ID)
	return nil
}

// writeAtomic runs write against a temporary file and renames it to path on success.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
			klog.Warningf("failed to remove temporary file %s: %v", tmp.Name(), rmErr)
		}
	}()

	buf := bufio.NewWriter(newFileWriter(tmp))
	if err = write(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush")
	}
	if err = tmp.Chmod(FilePermMode); err != nil {
		return errors.Wrap(err, "failed to set file mode")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync")
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "failed to rename into place")
	}
	return nil
}
