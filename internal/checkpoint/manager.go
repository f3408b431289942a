package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// DirPermMode is the default directory creation permission (before umask) used.
	DirPermMode = os.FileMode(0o770)
)

const (
	fileNamePrefix = "checkpoint-"
	fileNameSuffix = ".born"
)

// Manager saves numbered checkpoints into a directory and removes the oldest
// ones beyond a configured count.
type Manager struct {
	dir  string
	keep int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithKeep sets the number of checkpoint files to keep. If set to -1, older
// checkpoints are never erased. Default is 1.
func WithKeep(n int) ManagerOption {
	return func(m *Manager) { m.keep = n }
}

// Entry is one checkpoint file in a Manager's directory.
type Entry struct {
	Step int64
	Path string
}

// NewManager returns a Manager for dir, creating the directory if needed.
func NewManager(dir string, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{dir: dir, keep: 1}
	for _, opt := range opts {
		opt(m)
	}
	if m.keep == 0 || m.keep < -1 {
		return nil, errors.Errorf("invalid keep count %d: must be positive or -1", m.keep)
	}

	fi, err := os.Stat(dir)
	switch {
	case err == nil && !fi.IsDir():
		return nil, errors.Errorf("%q exists but it's a normal file, not a directory", dir)
	case err != nil && !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "failed to os.Stat(%q)", dir)
	case err != nil:
		if err := os.MkdirAll(dir, DirPermMode); err != nil {
			return nil, errors.Wrapf(err, "trying to create dir %q", dir)
		}
	}
	return m, nil
}

// String implements fmt.Stringer.
func (m *Manager) String() string {
	return fmt.Sprintf("checkpoint.Manager(%q)", m.dir)
}

// Dir returns the managed directory.
func (m *Manager) Dir() string { return m.dir }

// Path returns the file name used for step.
func (m *Manager) Path(step int64) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s%09d%s", fileNamePrefix, step, fileNameSuffix))
}

// Save writes b as the checkpoint for step and then removes the excess
// checkpoints, oldest first. It returns the path written.
func (m *Manager) Save(b *Bundle, step int64) (string, error) {
	if step < 0 {
		return "", errors.Errorf("%s: negative step %d", m, step)
	}
	path := m.Path(step)
	if err := serialization.WriteFile(path, b); err != nil {
		return "", err
	}
	if err := m.prune(); err != nil {
		return path, err
	}
	return path, nil
}

// List returns the checkpoints in the directory ordered by step, oldest first.
// Files that do not follow the naming scheme are ignored.
func (m *Manager) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "%s listing checkpoints", m)
	}
	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		digits, ok := strings.CutPrefix(de.Name(), fileNamePrefix)
		if !ok {
			continue
		}
		digits, ok = strings.CutSuffix(digits, fileNameSuffix)
		if !ok {
			continue
		}
		step, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || step < 0 {
			continue
		}
		entries = append(entries, Entry{Step: step, Path: filepath.Join(m.dir, de.Name())})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Step < entries[j].Step })
	return entries, nil
}

// Latest returns the checkpoint with the highest step. It fails with
// serialization.ErrNotFound when the directory holds none.
func (m *Manager) Latest() (Entry, error) {
	entries, err := m.List()
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, errors.Wrapf(serialization.ErrNotFound, "%s has no checkpoints", m)
	}
	return entries[len(entries)-1], nil
}

// LoadLatest reads the checkpoint with the highest step.
func (m *Manager) LoadLatest(opts ...serialization.ReadOption) (*Bundle, Entry, error) {
	latest, err := m.Latest()
	if err != nil {
		return nil, Entry{}, err
	}
	b, err := serialization.ReadFile(latest.Path, opts...)
	if err != nil {
		return nil, Entry{}, err
	}
	return b, latest, nil
}

// prune removes the excess checkpoints, starting from the earliest ones.
func (m *Manager) prune() error {
	if m.keep < 0 {
		return nil
	}
	entries, err := m.List()
	if err != nil {
		return err
	}
	if len(entries) <= m.keep {
		return nil
	}
	for _, e := range entries[:len(entries)-m.keep] {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "%s failed to remove excess checkpoint %q", m, e.Path)
		}
		klog.V(2).Infof("Removed old checkpoint %s", e.Path)
	}
	return nil
}
