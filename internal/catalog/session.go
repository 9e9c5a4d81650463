package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Permission is the persisted access state of the folder binding.
// It mirrors what the last probe or user interaction established;
// the OS is re-asked before the binding is trusted.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionPrompt  Permission = "prompt"
)

// Binding is the persisted folder binding. It lives in the record
// store's settings slot and survives restarts.
type Binding struct {
	Path       string     `json:"path"`
	Permission Permission `json:"permission"`
	BoundAt    time.Time  `json:"boundAt"`
}

// BoundDir is a folder that probed usable for the current process.
// Holders may read and write files directly under it.
type BoundDir struct {
	path string
}

func (d *BoundDir) Path() string { return d.path }

// FilePath returns the path of a file directly under the bound folder.
// The catalog layout is flat, so name must be a bare file name.
func (d *BoundDir) FilePath(name string) string {
	return filepath.Join(d.path, name)
}

// DirectorySession mediates all access to the bound program folder. It
// owns the persisted binding, re-validates it before handing it out,
// and drives the picker when a new folder or a reconfirmation is
// needed. Methods are safe for concurrent use, though the catalog runs
// operations sequentially in practice.
type DirectorySession struct {
	store  Store
	picker Picker
	logger Logger
	clock  Clock

	mu      sync.Mutex
	granted *BoundDir
}

func NewDirectorySession(store Store, picker Picker, logger Logger, clock Clock) *DirectorySession {
	return &DirectorySession{store: store, picker: picker, logger: logger, clock: clock}
}

// EnsureAccess returns a usable bound folder, negotiating state as
// needed. The sequence:
//
//  1. A folder granted earlier in this process is re-probed before it
//     is trusted again.
//  2. A persisted binding in the prompt state is reconfirmed through
//     the picker once; declining clears the binding.
//  3. With no binding (or a just-cleared one), the picker asks for a
//     fresh folder; on grant the binding is persisted.
//  4. Canceling a picker prompt is a benign no-op: (nil, nil).
//  5. A binding whose folder lost permission is cleared and the flow
//     falls through to a fresh pick.
//  6. Any other probe failure clears the binding and surfaces the
//     error, so the next call starts clean.
func (s *DirectorySession) EnsureAccess() (*BoundDir, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.granted != nil {
		if ProbeDir(s.granted.path) == nil {
			return s.granted, nil
		}
		s.granted = nil
	}

	b, err := s.store.LoadBinding()
	if err != nil {
		return nil, fmt.Errorf("loading folder binding: %w", err)
	}
	if b != nil {
		switch probeErr := ProbeDir(b.Path); {
		case probeErr == nil:
			if b.Permission == PermissionGranted {
				return s.grant(b)
			}
			res, err := s.picker.ConfirmAccess(b.Path)
			if err != nil {
				return nil, fmt.Errorf("%w: confirming folder access: %v", ErrAccess, err)
			}
			if !res.Canceled {
				return s.grant(b)
			}
			s.logger.Info("folder access declined, clearing binding", "path", b.Path)
			if err := s.store.ClearBinding(); err != nil {
				return nil, fmt.Errorf("clearing folder binding: %w", err)
			}
		case errors.Is(probeErr, ErrPermission):
			s.logger.Warn("folder permission lost, clearing binding", "path", b.Path, "error", probeErr)
			if err := s.store.ClearBinding(); err != nil {
				return nil, fmt.Errorf("clearing folder binding: %w", err)
			}
		default:
			s.logger.Warn("bound folder unusable, clearing binding", "path", b.Path, "error", probeErr)
			if err := s.store.ClearBinding(); err != nil {
				return nil, fmt.Errorf("clearing folder binding: %w", err)
			}
			return nil, probeErr
		}
	}

	return s.pickAndBind()
}

// Bind runs the folder pick flow unconditionally, replacing whatever is
// bound. Used when the user explicitly changes folders.
func (s *DirectorySession) Bind() (*BoundDir, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = nil
	return s.pickAndBind()
}

// pickAndBind asks the picker for a folder, probes it, and persists the
// binding on success. Caller holds s.mu.
func (s *DirectorySession) pickAndBind() (*BoundDir, error) {
	res, err := s.picker.PickDirectory(PickBind)
	if err != nil {
		return nil, fmt.Errorf("%w: picking folder: %v", ErrAccess, err)
	}
	if res.Canceled {
		s.logger.Debug("folder pick canceled")
		return nil, nil
	}
	path, err := filepath.Abs(filepath.Clean(res.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", ErrAccess, res.Path, err)
	}
	if err := ProbeDir(path); err != nil {
		return nil, err
	}
	b := &Binding{Path: path, Permission: PermissionGranted, BoundAt: s.clock.Now()}
	if err := s.store.SaveBinding(b); err != nil {
		return nil, fmt.Errorf("saving folder binding: %w", err)
	}
	s.requestDurable(path)
	s.granted = &BoundDir{path: path}
	s.logger.Info("folder bound", "path", path)
	return s.granted, nil
}

// grant caches the binding for this process, upgrading a prompt-state
// binding to granted in the store first.
func (s *DirectorySession) grant(b *Binding) (*BoundDir, error) {
	if b.Permission != PermissionGranted {
		b.Permission = PermissionGranted
		if err := s.store.SaveBinding(b); err != nil {
			return nil, fmt.Errorf("saving folder binding: %w", err)
		}
	}
	s.granted = &BoundDir{path: b.Path}
	return s.granted, nil
}

// Active returns the bound folder if a granted binding probes clean
// right now, and nil otherwise. It never prompts; background work uses
// it so a broken binding degrades to metadata-only behavior instead of
// interrupting the user. The persisted binding is left in place for
// EnsureAccess to repair interactively.
func (s *DirectorySession) Active() *BoundDir {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.granted != nil {
		if ProbeDir(s.granted.path) == nil {
			return s.granted
		}
		s.granted = nil
	}
	b, err := s.store.LoadBinding()
	if err != nil || b == nil || b.Permission != PermissionGranted {
		return nil
	}
	if err := ProbeDir(b.Path); err != nil {
		s.logger.Debug("bound folder not usable", "path", b.Path, "error", err)
		return nil
	}
	s.granted = &BoundDir{path: b.Path}
	return s.granted
}

// BindingStatus is a point-in-time view of the folder binding.
type BindingStatus struct {
	Binding *Binding
	Usable  bool
	Problem string
}

// Status reports the persisted binding and a live probe result without
// prompting or mutating anything.
func (s *DirectorySession) Status() (*BindingStatus, error) {
	b, err := s.store.LoadBinding()
	if err != nil {
		return nil, fmt.Errorf("loading folder binding: %w", err)
	}
	if b == nil {
		return &BindingStatus{}, nil
	}
	st := &BindingStatus{Binding: b}
	if err := ProbeDir(b.Path); err != nil {
		st.Problem = err.Error()
	} else {
		st.Usable = true
	}
	return st, nil
}

// Unbind forgets the folder binding. Records keep referencing their
// stored file names; the files themselves are left alone.
func (s *DirectorySession) Unbind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = nil
	if err := s.store.ClearBinding(); err != nil {
		return fmt.Errorf("clearing folder binding: %w", err)
	}
	s.logger.Info("folder unbound")
	return nil
}

// AvailableSpace reports the free bytes on the filesystem backing the
// bound folder, for pre-flight quota checks.
func (s *DirectorySession) AvailableSpace(dir *BoundDir) (int64, error) {
	n, err := availableSpace(dir.path)
	if err != nil {
		return 0, fmt.Errorf("%w: free space on %s: %v", ErrAccess, dir.path, err)
	}
	return n, nil
}

// requestDurable flushes the directory entry for a fresh binding so it
// survives sudden power loss. Best effort: failure is logged only.
func (s *DirectorySession) requestDurable(path string) {
	d, err := os.Open(path)
	if err == nil {
		err = d.Sync()
		d.Close()
	}
	if err != nil {
		s.logger.Warn("durable flush of bound folder failed", "path", path, "error", err)
	}
}

// ProbeDir verifies that path is a directory we can actually write to.
// A stat alone is not enough: media can be present but read-only, or
// readable but owned elsewhere. The returned error is classified as
// ErrPermission or ErrAccess.
func ProbeDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return classifyFSError("probing folder", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrAccess, path)
	}
	probe := filepath.Join(path, ".ledcat-probe-"+uuid.NewString())
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return classifyFSError("write probe in", path, err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

// classifyFSError maps a filesystem error onto the catalog taxonomy:
// permission problems are recoverable by re-picking, everything else is
// an access failure.
func classifyFSError(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s %s: %v", ErrPermission, op, path, err)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrAccess, op, path, err)
}
