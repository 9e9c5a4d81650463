package exchange

import "context"

// Mirror stores the latest catalog manifest in a remote slot. It is a
// convenience layer only: the export bundle remains authoritative, and
// a slot holds exactly one manifest, replaced on every publish.
type Mirror interface {
	// Publish replaces the slot's manifest.
	Publish(ctx context.Context, m *Manifest) error

	// Fetch returns the slot's manifest, or (nil, nil) if the slot is
	// empty.
	Fetch(ctx context.Context) (*Manifest, error)
}
