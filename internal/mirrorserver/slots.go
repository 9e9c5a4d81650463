package mirrorserver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// SlotStore keeps one manifest per slot as a flat directory of JSON
// files. A slot holds exactly one manifest; publishing replaces it.
type SlotStore struct {
	dir string
	mu  sync.RWMutex
}

// NewSlotStore creates a SlotStore rooted at dir, creating it if needed.
func NewSlotStore(dir string) (*SlotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating slot directory: %w", err)
	}
	return &SlotStore{dir: dir}, nil
}

// ErrBadSlot marks a slot name the store refuses to touch.
var ErrBadSlot = errors.New("invalid slot name")

// slotPath validates the slot name and returns its file path. The
// base-name check keeps hostile names inside the slot directory.
func (s *SlotStore) slotPath(slot string) (string, error) {
	if slot == "" || slot == "." || slot == ".." || path.Base(slot) != slot {
		return "", fmt.Errorf("%w: %q", ErrBadSlot, slot)
	}
	return filepath.Join(s.dir, slot+".json"), nil
}

// Put replaces the slot's manifest. The bytes go to a temp file first
// and move into place with a rename, so a crash never leaves a torn
// manifest behind.
func (s *SlotStore) Put(slot string, raw []byte) error {
	p, err := s.slotPath(slot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := p + ".tmp-" + uuid.NewString()
	success := false
	defer func() {
		if !success {
			os.Remove(tmp)
		}
	}()
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing slot temp file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("replacing slot file: %w", err)
	}
	success = true
	return nil
}

// Get returns the slot's manifest bytes, or (nil, nil) when the slot is
// empty.
func (s *SlotStore) Get(slot string) ([]byte, error) {
	p, err := s.slotPath(slot)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading slot file: %w", err)
	}
	return raw, nil
}
