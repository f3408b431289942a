package serialization

import (
	"io/fs"
	"os"

	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MmapReader provides memory-mapped access to .born files.
// The header is validated up front; tensor data is paged in by the OS on
// access and copied out by LoadTensor and Bundle.
//
// Important: Always call Close() when done to unmap the file (use defer).
type MmapReader struct {
	file   *os.File
	data   []byte // mmap'd region (read-only)
	parsed *File
	closed bool
}

// OpenMapped memory-maps the .born file at path and validates it the same way
// ReadFile does.
func OpenMapped(path string, opts ...ReadOption) (*MmapReader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if stat.Size() < FixedHeaderSize {
		// Too small to map usefully; let the parser report the exact problem.
		data, readErr := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the caller
		_ = file.Close()
		if readErr != nil {
			return nil, errors.Wrapf(readErr, "failed to read %s", path)
		}
		_, err = parseFile(data, buildReadOptions(opts))
		if err == nil {
			err = errors.Wrapf(ErrTruncated, "%d bytes", len(data))
		}
		return nil, errors.WithMessagef(err, "failed to map %s", path)
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "mmap of %s failed", path)
	}
	r := &MmapReader{file: file, data: data}

	r.parsed, err = parseFile(data, buildReadOptions(opts))
	if err != nil {
		_ = r.Close()
		return nil, errors.WithMessagef(err, "failed to map %s", path)
	}
	klog.V(1).Infof("Mapped checkpoint %s (%d bytes)", path, len(data))
	return r, nil
}

// Close unmaps and closes the file.
func (r *MmapReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.data != nil {
		err = munmapFile(r.data)
		r.data = nil
	}
	if closeErr := r.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Header returns the file header.
func (r *MmapReader) Header() Header {
	return r.parsed.Header
}

// Version returns the format version.
func (r *MmapReader) Version() uint32 {
	return r.parsed.Version
}

// Flags returns the flags bitfield.
func (r *MmapReader) Flags() uint32 {
	return r.parsed.Flags
}

// Checksum returns the stored SHA-256 checksum.
func (r *MmapReader) Checksum() [ChecksumSize]byte {
	return r.parsed.Checksum
}

// Size returns the file size in bytes.
func (r *MmapReader) Size() int64 {
	return int64(len(r.data))
}

// TensorNames returns the parameter names in file order.
func (r *MmapReader) TensorNames() []string {
	if r.parsed.Header.Params == nil {
		return nil
	}
	names := make([]string, len(r.parsed.Header.Params.Tensors))
	for i, t := range r.parsed.Header.Params.Tensors {
		names[i] = t.Name
	}
	return names
}

// TensorInfo returns metadata about a parameter tensor.
func (r *MmapReader) TensorInfo(name string) (*TensorMeta, error) {
	if p := r.parsed.Header.Params; p != nil {
		for i := range p.Tensors {
			if p.Tensors[i].Name == name {
				return &p.Tensors[i], nil
			}
		}
	}
	return nil, errors.Errorf("tensor %q not found", name)
}

// LoadTensor copies one parameter tensor out of the mapping.
func (r *MmapReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, errors.New("reader is closed")
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	return r.parsed.Tensor(*meta)
}

// Bundle copies every section out of the mapping. The result stays valid
// after Close.
func (r *MmapReader) Bundle() (*Bundle, error) {
	if r.closed {
		return nil, errors.New("reader is closed")
	}
	return r.parsed.Bundle()
}

// Metadata decodes the metadata section without touching tensor data.
func (r *MmapReader) Metadata() (map[string]any, error) {
	return r.parsed.Metadata()
}
