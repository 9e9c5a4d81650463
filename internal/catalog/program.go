package catalog

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxNameLen and MaxDescriptionLen bound the user-entered metadata
	// fields, counted in runes.
	MaxNameLen        = 50
	MaxDescriptionLen = 200

	// MaxPhotoBytes caps an attached photo at 2 MB.
	MaxPhotoBytes = 2 * 1024 * 1024

	// ProgramFileExt is the only accepted program file extension.
	ProgramFileExt = ".led"
)

// Photo is an optional thumbnail attached to a program record.
type Photo struct {
	MIME string
	Data []byte
}

// Program is one catalog record. The record store is the source of
// truth for everything here; the bound folder only mirrors the binary.
type Program struct {
	ID               string
	Name             string
	Description      string
	OriginalFileName string
	StoredFileName   string
	Photo            *Photo
	DateAdded        time.Time

	// FileSizeBytes is a cached size of the program file. nil means not
	// yet measured; it is backfilled lazily when the folder is readable.
	FileSizeBytes *int64
}

// Validate checks the user-entered metadata fields. File name rules are
// checked separately at save time because edits may not carry a file.
func (p *Program) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(p.Name) > MaxNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, MaxNameLen)
	}
	if utf8.RuneCountInString(p.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, MaxDescriptionLen)
	}
	if p.Photo != nil {
		if err := ValidatePhoto(p.Photo); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePhoto checks size and sniffs the content type. The declared
// MIME is ignored; the bytes decide.
func ValidatePhoto(photo *Photo) error {
	if len(photo.Data) == 0 {
		return fmt.Errorf("%w: photo is empty", ErrValidation)
	}
	if len(photo.Data) > MaxPhotoBytes {
		return fmt.Errorf("%w: photo exceeds %d bytes", ErrValidation, MaxPhotoBytes)
	}
	switch ct := http.DetectContentType(photo.Data); ct {
	case "image/jpeg", "image/png":
		photo.MIME = ct
	default:
		return fmt.Errorf("%w: photo must be JPEG or PNG, got %s", ErrValidation, ct)
	}
	return nil
}

// ValidateProgramFileName checks that name is a plausible program file:
// non-empty, no path separators, and carrying the .led extension
// (case-insensitive).
func ValidateProgramFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: file name must not contain path separators", ErrValidation)
	}
	if !strings.EqualFold(strings.TrimSpace(extOf(name)), ProgramFileExt) {
		return fmt.Errorf("%w: file name must end in %s", ErrValidation, ProgramFileExt)
	}
	return nil
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// SanitizeFileName strips characters that are unsafe in a flat folder:
// path separators, control characters, and the usual FAT/NTFS
// troublemakers. Runs of stripped characters collapse to a single
// underscore. The result is never empty.
func SanitizeFileName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			r = '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), " .")
	if out == "" || out == "_" {
		return "program" + ProgramFileExt
	}
	return out
}

// StoredFileName derives the unique in-folder name for a program file.
// Prefixing the record id keeps names from distinct records disjoint
// even when their original file names collide.
func StoredFileName(id, originalFileName string) string {
	return id + "-" + SanitizeFileName(originalFileName)
}
