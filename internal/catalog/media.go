package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MediaCopy reports where CopyToMedia placed the program and its note.
type MediaCopy struct {
	ProgramPath string
	NotePath    string
}

// CopyToMedia streams a program's file onto a user-chosen folder
// (typically removable media) under the canonical name controllers look
// for, and drops a sibling text note saying which program the media now
// carries. Returns (nil, nil) if the user cancels either folder prompt.
func (s *Service) CopyToMedia(id string) (*MediaCopy, error) {
	p, err := s.GetProgram(id)
	if err != nil {
		return nil, err
	}
	if p.StoredFileName == "" {
		return nil, fmt.Errorf("%w: program %s has no stored file", ErrAccess, id)
	}

	srcDir, err := s.session.EnsureAccess()
	if err != nil {
		return nil, err
	}
	if srcDir == nil {
		return nil, nil
	}
	src, err := os.Open(srcDir.FilePath(p.StoredFileName))
	if err != nil {
		return nil, classifyFSError("opening program file", p.StoredFileName, err)
	}
	defer src.Close()

	res, err := s.picker.PickDirectory(PickMediaDest)
	if err != nil {
		return nil, fmt.Errorf("%w: picking media folder: %v", ErrAccess, err)
	}
	if res.Canceled {
		return nil, nil
	}
	if err := ProbeDir(res.Path); err != nil {
		return nil, err
	}

	out := &MediaCopy{
		ProgramPath: filepath.Join(res.Path, s.mediaName),
		NotePath:    filepath.Join(res.Path, noteFileName(s.mediaName)),
	}
	dst, err := os.Create(out.ProgramPath)
	if err != nil {
		return nil, classifyFSError("writing", out.ProgramPath, err)
	}
	_, cperr := io.Copy(dst, src)
	if cerr := dst.Close(); cperr == nil {
		cperr = cerr
	}
	if cperr != nil {
		os.Remove(out.ProgramPath)
		return nil, classifyFSError("writing", out.ProgramPath, cperr)
	}
	if err := os.WriteFile(out.NotePath, []byte(s.mediaNote(p)), 0o644); err != nil {
		return nil, classifyFSError("writing", out.NotePath, err)
	}
	s.logger.Info("program copied to media", "id", id, "dest", out.ProgramPath)
	return out, nil
}

// noteFileName swaps the media file's extension for .txt.
func noteFileName(mediaName string) string {
	return strings.TrimSuffix(mediaName, extOf(mediaName)) + ".txt"
}

func (s *Service) mediaNote(p *Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Program: %s\n", p.Name)
	fmt.Fprintf(&b, "File: %s\n", p.OriginalFileName)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	if p.FileSizeBytes != nil {
		fmt.Fprintf(&b, "Size: %d bytes\n", *p.FileSizeBytes)
	}
	fmt.Fprintf(&b, "Added: %s\n", p.DateAdded.Format(time.RFC3339))
	fmt.Fprintf(&b, "Copied: %s\n", s.clock.Now().Format(time.RFC3339))
	return b.String()
}
