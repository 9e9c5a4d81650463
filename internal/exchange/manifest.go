package exchange

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/abhibansal60/led-catalog/internal/catalog"
)

const (
	// ManifestFileName is the manifest's name inside an export bundle.
	ManifestFileName = "catalog.json"

	// SealedExt marks bundle files encrypted with a passphrase. A sealed
	// bundle carries catalog.json.age and per-program .led.age files.
	SealedExt = ".age"
)

// SealedManifestFileName is the manifest's name inside a sealed bundle.
const SealedManifestFileName = ManifestFileName + SealedExt

// bundleInstructions is written into every manifest for whoever finds
// the folder without the app at hand.
const bundleInstructions = "This folder was exported by ledcat. It contains LED program files " +
	"and catalog.json, the catalog manifest. To restore, run 'ledcat import' and pick this folder."

// Manifest is the machine-readable inventory of an export bundle. The
// optional remote mirror stores the same document.
type Manifest struct {
	ProgramCount int             `json:"programCount"`
	ExportedAt   time.Time       `json:"exportedAt"`
	Instructions string          `json:"instructions"`
	Entries      []ManifestEntry `json:"programs"`
}

// ManifestEntry describes one program in a bundle. Optional fields are
// pointers rather than ambiguous zero values: a nil ExportedFileName
// records that the binary could not be read at export time, and a nil
// FileSizeBytes means the size was never measured. DateAdded stays a
// string so a damaged manifest still parses; normalization repairs it.
type ManifestEntry struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	DateAdded        string  `json:"dateAdded"`
	OriginalFileName string  `json:"originalFileName"`
	StoredFileName   string  `json:"storedFileName,omitempty"`
	ExportedFileName *string `json:"exportedFileName"`
	FileSizeBytes    *int64  `json:"fileSizeBytes,omitempty"`
	Photo            string  `json:"photo,omitempty"`
	Notes            string  `json:"notes,omitempty"`
}

func entryFromProgram(p *catalog.Program) ManifestEntry {
	e := ManifestEntry{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		DateAdded:        p.DateAdded.UTC().Format(time.RFC3339),
		OriginalFileName: p.OriginalFileName,
		StoredFileName:   p.StoredFileName,
		FileSizeBytes:    p.FileSizeBytes,
	}
	if p.Photo != nil {
		e.Photo = EncodePhotoDataURI(p.Photo)
	}
	return e
}

// normalized returns the entry with missing or damaged fields repaired
// to safe defaults, so one sloppy manifest entry cannot sink an import.
func (e ManifestEntry) normalized(now time.Time) ManifestEntry {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		e.Name = "Unnamed program"
	}
	if r := []rune(e.Name); len(r) > catalog.MaxNameLen {
		e.Name = string(r[:catalog.MaxNameLen])
	}
	if r := []rune(e.Description); len(r) > catalog.MaxDescriptionLen {
		e.Description = string(r[:catalog.MaxDescriptionLen])
	}
	if e.OriginalFileName == "" {
		switch {
		case e.StoredFileName != "":
			e.OriginalFileName = e.StoredFileName
		case e.ExportedFileName != nil && *e.ExportedFileName != "":
			e.OriginalFileName = strings.TrimSuffix(*e.ExportedFileName, SealedExt)
		default:
			e.OriginalFileName = "program" + catalog.ProgramFileExt
		}
	}
	if _, err := time.Parse(time.RFC3339, e.DateAdded); err != nil {
		e.DateAdded = now.UTC().Format(time.RFC3339)
	}
	return e
}

// dateAdded parses the normalized timestamp.
func (e ManifestEntry) dateAdded() time.Time {
	t, _ := time.Parse(time.RFC3339, e.DateAdded)
	return t
}

// EncodePhotoDataURI renders a photo as a data: URI, the form photos
// take inside manifests.
func EncodePhotoDataURI(p *catalog.Photo) string {
	return "data:" + p.MIME + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// DecodePhotoDataURI parses a data: URI back into a photo.
func DecodePhotoDataURI(s string) (*catalog.Photo, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, fmt.Errorf("unsupported data URI encoding %q", enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI payload: %w", err)
	}
	return &catalog.Photo{MIME: mime, Data: data}, nil
}
