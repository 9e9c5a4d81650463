package catalog

import "fmt"

// DefaultMediaFileName is the canonical name LED controllers look for
// when a program is copied onto removable media.
const DefaultMediaFileName = "PROGRAM.led"

// Service is the orchestration layer that keeps the record store and
// the bound folder in step: saves write the binary alongside the
// metadata, deletes propagate, and cached sizes are backfilled when the
// folder is readable.
type Service struct {
	store     Store
	session   *DirectorySession
	picker    Picker
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	mediaName string
}

// NewService creates a Service with the provided dependencies.
// mediaName is the canonical file name used by CopyToMedia; empty
// selects DefaultMediaFileName.
func NewService(store Store, session *DirectorySession, picker Picker, logger Logger, clock Clock, idgen IDGenerator, mediaName string) *Service {
	if mediaName == "" {
		mediaName = DefaultMediaFileName
	}
	return &Service{
		store:     store,
		session:   session,
		picker:    picker,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		mediaName: mediaName,
	}
}

// GetProgram returns a single record by id.
func (s *Service) GetProgram(id string) (*Program, error) {
	p, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}
