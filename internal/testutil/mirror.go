package testutil

import (
	"context"
	"sync"

	"github.com/abhibansal60/led-catalog/internal/exchange"
)

// FakeMirror records published manifests and can be told to fail, for
// exercising the best-effort publish path.
type FakeMirror struct {
	mu        sync.Mutex
	published []*exchange.Manifest

	// FailWith, when set, is returned from both Publish and Fetch.
	FailWith error
}

func NewFakeMirror() *FakeMirror {
	return &FakeMirror{}
}

func (m *FakeMirror) Publish(_ context.Context, manifest *exchange.Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.published = append(m.published, manifest)
	return nil
}

func (m *FakeMirror) Fetch(_ context.Context) (*exchange.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if len(m.published) == 0 {
		return nil, nil
	}
	return m.published[len(m.published)-1], nil
}

// Published returns every manifest published so far, oldest first.
func (m *FakeMirror) Published() []*exchange.Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*exchange.Manifest{}, m.published...)
}

// Compile-time check
var _ exchange.Mirror = (*FakeMirror)(nil)
