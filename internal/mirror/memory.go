package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/abhibansal60/led-catalog/internal/exchange"
)

// MemoryMirror is an in-memory implementation of exchange.Mirror. It
// holds the last published manifest for the process lifetime, making it
// useful for testing and dry runs. Safe for concurrent use.
type MemoryMirror struct {
	mu  sync.RWMutex
	raw []byte
}

// NewMemoryMirror creates an empty in-memory mirror slot.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{}
}

// Publish stores a serialized copy of the manifest, so later mutations
// by the caller do not leak into the slot.
func (m *MemoryMirror) Publish(_ context.Context, manifest *exchange.Manifest) error {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = raw
	return nil
}

func (m *MemoryMirror) Fetch(_ context.Context) (*exchange.Manifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.raw == nil {
		return nil, nil // Empty slot
	}
	var manifest exchange.Manifest
	if err := json.Unmarshal(m.raw, &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &manifest, nil
}

// Compile-time check that MemoryMirror implements exchange.Mirror
var _ exchange.Mirror = (*MemoryMirror)(nil)
