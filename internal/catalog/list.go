package catalog

import (
	"fmt"
	"os"
	"sort"
)

// Entry is one listing row: the record plus what the bound folder
// currently says about its file. FileMissing is only meaningful when
// the folder was readable; without a usable binding it stays false.
type Entry struct {
	Program     *Program
	FileMissing bool
}

// SortNewestFirst orders records by DateAdded descending, breaking ties
// by id so the order is stable across loads.
func SortNewestFirst(records []*Program) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].DateAdded.Equal(records[j].DateAdded) {
			return records[i].ID > records[j].ID
		}
		return records[i].DateAdded.After(records[j].DateAdded)
	})
}

// ListPrograms returns all records, newest first. When the folder
// binding is active it also backfills missing cached sizes from the
// files on disk and flags records whose file has gone missing. Backfill
// failures are tolerated per record: the size stays unset and the
// listing continues.
func (s *Service) ListPrograms() ([]Entry, error) {
	records, err := s.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	SortNewestFirst(records)

	entries := make([]Entry, len(records))
	for i, p := range records {
		entries[i] = Entry{Program: p}
	}

	dir := s.session.Active()
	if dir == nil {
		return entries, nil
	}
	for i := range entries {
		p := entries[i].Program
		if p.StoredFileName == "" {
			entries[i].FileMissing = true
			continue
		}
		info, err := os.Stat(dir.FilePath(p.StoredFileName))
		if err != nil {
			entries[i].FileMissing = true
			continue
		}
		if p.FileSizeBytes != nil {
			continue
		}
		size := info.Size()
		p.FileSizeBytes = &size
		if err := s.store.Save(p); err != nil {
			p.FileSizeBytes = nil
			s.logger.Warn("backfilling file size failed", "id", p.ID, "error", err)
		} else {
			s.logger.Debug("file size backfilled", "id", p.ID, "bytes", size)
		}
	}
	return entries, nil
}
