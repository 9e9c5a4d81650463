package catalog

// Store provides durable storage for program records and the single
// folder binding slot. Implementations must survive process restarts
// except where documented otherwise (the in-memory store).
type Store interface {
	// Record operations

	// ListAll returns every program record, in no particular order.
	ListAll() ([]*Program, error)

	// Get returns the record with the given id, or (nil, nil) if absent.
	Get(id string) (*Program, error)

	// Save inserts the record, or replaces an existing record with the
	// same id.
	Save(p *Program) error

	// Delete removes the record with the given id. Deleting an absent
	// id is a no-op, not an error.
	Delete(id string) error

	// Clear removes all program records in one call.
	Clear() error

	// Folder binding slot

	// LoadBinding returns the persisted folder binding, or (nil, nil)
	// when no folder has been bound.
	LoadBinding() (*Binding, error)

	// SaveBinding persists the folder binding, replacing any previous one.
	SaveBinding(b *Binding) error

	// ClearBinding forgets the persisted folder binding. Clearing an
	// empty slot is a no-op.
	ClearBinding() error

	// Close closes the underlying storage.
	Close() error
}
