package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DeleteProgram removes the record and then, best effort, its file in
// the bound folder. The record delete is authoritative: a missing file,
// an absent binding, or a failed file delete never resurrects the
// record. Deleting an unknown id is a no-op.
func (s *Service) DeleteProgram(id string) error {
	p, err := s.store.Get(id)
	if err != nil {
		return fmt.Errorf("loading program: %w", err)
	}
	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("deleting program record: %w", err)
	}
	if p == nil {
		return nil
	}

	if dir := s.session.Active(); dir != nil && p.StoredFileName != "" {
		if err := os.Remove(dir.FilePath(p.StoredFileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("removing program file failed", "id", id, "file", p.StoredFileName, "error", err)
		}
	}
	s.logger.Info("program deleted", "id", id)
	return nil
}

// WipeResult reports a full catalog wipe.
type WipeResult struct {
	Removed      int
	FilesDeleted int
}

// Wipe clears every record and then deletes the corresponding files in
// the bound folder. The metadata clear happens first and alone decides
// success; file deletions that fail afterwards are reported in a
// *BatchError alongside the result, and the rest of the batch still
// runs.
func (s *Service) Wipe() (*WipeResult, error) {
	records, err := s.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	if err := s.store.Clear(); err != nil {
		return nil, fmt.Errorf("clearing program records: %w", err)
	}
	res := &WipeResult{Removed: len(records)}

	dir := s.session.Active()
	if dir == nil {
		s.logger.Info("catalog wiped", "records", res.Removed, "files", 0)
		return res, nil
	}
	var failed []ItemFailure
	for _, p := range records {
		if p.StoredFileName == "" {
			continue
		}
		err := os.Remove(dir.FilePath(p.StoredFileName))
		switch {
		case err == nil:
			res.FilesDeleted++
		case errors.Is(err, fs.ErrNotExist):
			// Already gone; nothing to report.
		default:
			s.logger.Warn("removing program file failed", "id", p.ID, "file", p.StoredFileName, "error", err)
			failed = append(failed, ItemFailure{ID: p.ID, Name: p.Name, Reason: err.Error()})
		}
	}
	s.logger.Info("catalog wiped", "records", res.Removed, "files", res.FilesDeleted)
	if len(failed) > 0 {
		return res, &BatchError{Op: "wipe", Items: failed}
	}
	return res, nil
}
