package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileUpload is a program file handed to SaveProgram: the name the user
// knows it by and its full content. Program files are small controller
// configs, so they travel as byte slices.
type FileUpload struct {
	Name string
	Data []byte
}

// SaveRequest carries one create or edit. An empty ID means create.
// File is nil for metadata-only edits; RemovePhoto clears the photo
// (otherwise a nil Photo leaves the existing one alone).
type SaveRequest struct {
	ID          string
	Name        string
	Description string
	Photo       *Photo
	RemovePhoto bool
	File        *FileUpload
}

// SaveProgram validates and persists a program. When a file is
// involved, the binary is written into the bound folder before the
// record is committed, so the store never references a file that did
// not fully write. Returns (nil, nil) if the user cancels a folder
// prompt.
func (s *Service) SaveProgram(req SaveRequest) (*Program, error) {
	if req.ID == "" {
		return s.createProgram(req)
	}
	return s.updateProgram(req)
}

func (s *Service) createProgram(req SaveRequest) (*Program, error) {
	if req.File == nil {
		return nil, fmt.Errorf("%w: a program file is required", ErrValidation)
	}
	if err := ValidateProgramFileName(req.File.Name); err != nil {
		return nil, err
	}
	p := &Program{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Photo:       req.Photo,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	dir, err := s.session.EnsureAccess()
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, nil
	}
	if err := s.checkSpace(dir, int64(len(req.File.Data))); err != nil {
		return nil, err
	}

	p.ID = s.idgen.New()
	p.DateAdded = s.clock.Now()
	p.OriginalFileName = req.File.Name
	p.StoredFileName = StoredFileName(p.ID, req.File.Name)
	size := int64(len(req.File.Data))
	p.FileSizeBytes = &size

	path := dir.FilePath(p.StoredFileName)
	if err := writeProgramFile(path, req.File.Data, false); err != nil {
		return nil, err
	}
	if err := s.store.Save(p); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("saving program record: %w", err)
	}
	s.logger.Info("program added", "id", p.ID, "file", p.StoredFileName)
	return p, nil
}

func (s *Service) updateProgram(req SaveRequest) (*Program, error) {
	p, err := s.GetProgram(req.ID)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(req.Name)
	p.Description = strings.TrimSpace(req.Description)
	switch {
	case req.RemovePhoto:
		p.Photo = nil
	case req.Photo != nil:
		p.Photo = req.Photo
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// Metadata-only edit: the folder is not touched at all.
	if req.File == nil {
		if err := s.store.Save(p); err != nil {
			return nil, fmt.Errorf("saving program record: %w", err)
		}
		s.logger.Info("program updated", "id", p.ID)
		return p, nil
	}

	if err := ValidateProgramFileName(req.File.Name); err != nil {
		return nil, err
	}
	dir, err := s.session.EnsureAccess()
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, nil
	}
	if err := s.checkSpace(dir, int64(len(req.File.Data))); err != nil {
		return nil, err
	}

	oldStored := p.StoredFileName
	newStored := StoredFileName(p.ID, req.File.Name)
	if newStored == oldStored {
		// Replacing the file under its existing name. A failed write is
		// left in place: the file may be the only remaining copy.
		if err := writeProgramFile(dir.FilePath(newStored), req.File.Data, true); err != nil {
			return nil, err
		}
	} else {
		if err := writeProgramFile(dir.FilePath(newStored), req.File.Data, false); err != nil {
			return nil, err
		}
	}

	p.OriginalFileName = req.File.Name
	p.StoredFileName = newStored
	size := int64(len(req.File.Data))
	p.FileSizeBytes = &size
	if err := s.store.Save(p); err != nil {
		if newStored != oldStored {
			os.Remove(dir.FilePath(newStored))
		}
		return nil, fmt.Errorf("saving program record: %w", err)
	}

	// The record now points at the new file; the superseded one goes
	// last so a crash in between leaves an orphan, not a dangling record.
	if newStored != oldStored && oldStored != "" {
		if err := os.Remove(dir.FilePath(oldStored)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("removing superseded program file failed", "file", oldStored, "error", err)
		}
	}
	s.logger.Info("program updated", "id", p.ID, "file", newStored)
	return p, nil
}

// checkSpace aborts with ErrQuota when need exceeds the free space of
// the bound folder's filesystem.
func (s *Service) checkSpace(dir *BoundDir, need int64) error {
	avail, err := s.session.AvailableSpace(dir)
	if err != nil {
		return err
	}
	if need > avail {
		return fmt.Errorf("%w: need %d bytes, %d available in %s", ErrQuota, need, avail, dir.Path())
	}
	return nil
}

// writeProgramFile writes data to path with create-or-truncate
// semantics. On failure the partial file is removed unless
// keepOnFailure is set (used when overwriting in place).
func writeProgramFile(path string, data []byte, keepOnFailure bool) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return classifyFSError("writing", path, err)
	}
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		if !keepOnFailure {
			os.Remove(path)
		}
		return classifyFSError("writing", path, werr)
	}
	return nil
}
