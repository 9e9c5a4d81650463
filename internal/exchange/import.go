package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/abhibansal60/led-catalog/internal/catalog"
)

// Import-specific failures. The bundle lives on foreign media, so these
// get their own identities instead of the generic access class.
var (
	ErrManifestMissing = errors.New("bundle manifest not found")
	ErrManifestCorrupt = errors.New("bundle manifest unreadable")
	ErrSealedBundle    = errors.New("bundle is sealed, passphrase required")
	ErrNothingImported = errors.New("no programs imported")
)

// Importer restores catalog bundles: every importable entry is copied
// into the bound folder and committed to the record store. A bad entry
// never aborts the batch.
type Importer struct {
	store   catalog.Store
	session *catalog.DirectorySession
	picker  catalog.Picker
	logger  catalog.Logger
	clock   catalog.Clock
	idgen   catalog.IDGenerator
}

// NewImporter creates an Importer.
func NewImporter(store catalog.Store, session *catalog.DirectorySession, picker catalog.Picker, logger catalog.Logger, clock catalog.Clock, idgen catalog.IDGenerator) *Importer {
	return &Importer{store: store, session: session, picker: picker, logger: logger, clock: clock, idgen: idgen}
}

// ImportOptions tunes one import. Passphrase unseals sealed bundles.
type ImportOptions struct {
	Passphrase string
}

// ImportOutcome classifies what happened to one manifest entry.
type ImportOutcome string

const (
	OutcomeImported  ImportOutcome = "imported"
	OutcomeDuplicate ImportOutcome = "duplicate"
	OutcomeMissing   ImportOutcome = "missing file"
	OutcomeFailed    ImportOutcome = "failed"
)

// ImportItem is the per-entry outcome of an import.
type ImportItem struct {
	ID      string
	Name    string
	Outcome ImportOutcome
	Detail  string
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	Imported   int
	Duplicates int
	Missing    int
	Failed     int
	Items      []ImportItem
}

// Import restores a bundle from a user-chosen folder. Entries whose
// binary cannot be found are skipped, entries whose id already exists
// are skipped, and per-entry write failures are tolerated. The import
// as a whole fails only when nothing at all was imported. Returns
// (nil, nil) if the user cancels a folder prompt.
func (im *Importer) Import(opts ImportOptions) (*ImportResult, error) {
	srcRes, err := im.picker.PickDirectory(catalog.PickImportSource)
	if err != nil {
		return nil, fmt.Errorf("%w: picking import source: %v", catalog.ErrAccess, err)
	}
	if srcRes.Canceled {
		return nil, nil
	}
	manifest, sealed, err := readManifest(srcRes.Path, opts.Passphrase)
	if err != nil {
		return nil, err
	}
	if sealed {
		im.logger.Info("importing sealed bundle", "dir", srcRes.Path)
	}

	destDir, err := im.session.EnsureAccess()
	if err != nil {
		return nil, err
	}
	if destDir == nil {
		return nil, nil
	}

	existingIDs, err := im.existingIDs()
	if err != nil {
		return nil, err
	}

	type candidate struct {
		entry   ManifestEntry
		srcPath string
	}
	res := &ImportResult{}
	var todo []candidate
	var totalSize int64
	now := im.clock.Now()
	seen := make(map[string]bool)
	for _, raw := range manifest.Entries {
		entry := raw.normalized(now)
		srcPath, size := resolveBinary(srcRes.Path, entry, sealed)
		if srcPath == "" {
			res.Missing++
			res.Items = append(res.Items, ImportItem{ID: entry.ID, Name: entry.Name, Outcome: OutcomeMissing})
			continue
		}
		if entry.ID != "" && (existingIDs[entry.ID] || seen[entry.ID]) {
			res.Duplicates++
			res.Items = append(res.Items, ImportItem{ID: entry.ID, Name: entry.Name, Outcome: OutcomeDuplicate})
			continue
		}
		if entry.ID != "" {
			seen[entry.ID] = true
		}
		todo = append(todo, candidate{entry: entry, srcPath: srcPath})
		totalSize += size
	}

	// Pre-flight: refuse the whole batch rather than die halfway in.
	// Sealed sizes are ciphertext sizes, a slight overestimate.
	if len(todo) > 0 {
		avail, err := im.session.AvailableSpace(destDir)
		if err != nil {
			return nil, err
		}
		if totalSize > avail {
			return nil, fmt.Errorf("%w: bundle needs %d bytes, %d available", catalog.ErrQuota, totalSize, avail)
		}
	}

	for _, c := range todo {
		item := im.importOne(destDir, c.entry, c.srcPath, opts.Passphrase)
		res.Items = append(res.Items, item)
		if item.Outcome == OutcomeImported {
			res.Imported++
		} else {
			res.Failed++
		}
	}

	im.logger.Info("bundle imported", "dir", srcRes.Path,
		"imported", res.Imported, "duplicates", res.Duplicates, "missing", res.Missing, "failed", res.Failed)
	if res.Imported == 0 {
		return res, fmt.Errorf("%w: %d missing, %d duplicates, %d failed",
			ErrNothingImported, res.Missing, res.Duplicates, res.Failed)
	}
	return res, nil
}

// importOne copies one resolved binary into the bound folder and
// commits its record. On any failure mid-write the partial file is
// removed and the entry is reported failed; the batch continues.
func (im *Importer) importOne(destDir *catalog.BoundDir, entry ManifestEntry, srcPath, passphrase string) ImportItem {
	id := entry.ID
	if id == "" {
		id = im.idgen.New()
	}
	p := &catalog.Program{
		ID:               id,
		Name:             entry.Name,
		Description:      entry.Description,
		OriginalFileName: entry.OriginalFileName,
		StoredFileName:   catalog.StoredFileName(id, entry.OriginalFileName),
		DateAdded:        entry.dateAdded(),
	}
	if entry.Photo != "" {
		if photo, err := DecodePhotoDataURI(entry.Photo); err != nil {
			im.logger.Warn("dropping undecodable photo", "id", id, "error", err)
		} else if err := catalog.ValidatePhoto(photo); err != nil {
			im.logger.Warn("dropping invalid photo", "id", id, "error", err)
		} else {
			p.Photo = photo
		}
	}

	src, err := os.Open(srcPath)
	if err != nil {
		im.logger.Warn("bundle file unreadable", "id", id, "file", srcPath, "error", err)
		return ImportItem{ID: id, Name: p.Name, Outcome: OutcomeFailed, Detail: "opening bundle file: " + err.Error()}
	}
	defer src.Close()
	var r io.Reader = src
	if strings.HasSuffix(srcPath, SealedExt) && passphrase != "" {
		r, err = sealedReader(src, passphrase)
		if err != nil {
			im.logger.Warn("unsealing bundle file failed", "id", id, "file", srcPath, "error", err)
			return ImportItem{ID: id, Name: p.Name, Outcome: OutcomeFailed, Detail: "unsealing failed (wrong passphrase or damaged file)"}
		}
	}

	dstPath := destDir.FilePath(p.StoredFileName)
	dst, err := os.Create(dstPath)
	if err != nil {
		im.logger.Warn("writing imported file failed", "id", id, "file", p.StoredFileName, "error", err)
		return ImportItem{ID: id, Name: p.Name, Outcome: OutcomeFailed, Detail: "writing file: " + err.Error()}
	}
	n, cperr := io.Copy(dst, r)
	if err := dst.Close(); cperr == nil {
		cperr = err
	}
	if cperr != nil {
		os.Remove(dstPath)
		im.logger.Warn("writing imported file failed", "id", id, "file", p.StoredFileName, "error", cperr)
		return ImportItem{ID: id, Name: p.Name, Outcome: OutcomeFailed, Detail: "writing file: " + cperr.Error()}
	}
	size := n
	p.FileSizeBytes = &size

	if err := im.store.Save(p); err != nil {
		os.Remove(dstPath)
		im.logger.Warn("saving imported record failed", "id", id, "error", err)
		return ImportItem{ID: id, Name: p.Name, Outcome: OutcomeFailed, Detail: "saving record: " + err.Error()}
	}
	return ImportItem{ID: id, Name: p.Name, Outcome: OutcomeImported}
}

func (im *Importer) existingIDs() (map[string]bool, error) {
	records, err := im.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	ids := make(map[string]bool, len(records))
	for _, p := range records {
		ids[p.ID] = true
	}
	return ids, nil
}

// resolveBinary finds an entry's binary in the bundle, trying the
// exported name first and then the historical names older manifests
// carry. Sealed bundles also try each name with the sealed suffix.
// filepath.Base keeps a hostile manifest from reaching outside the
// bundle folder.
func resolveBinary(bundleDir string, e ManifestEntry, sealed bool) (string, int64) {
	var names []string
	if e.ExportedFileName != nil && *e.ExportedFileName != "" {
		names = append(names, *e.ExportedFileName)
	}
	if e.OriginalFileName != "" {
		names = append(names, e.OriginalFileName)
	}
	if e.StoredFileName != "" {
		names = append(names, e.StoredFileName)
	}
	for _, n := range names {
		try := []string{n}
		if sealed && !strings.HasSuffix(n, SealedExt) {
			try = append(try, n+SealedExt)
		}
		for _, t := range try {
			path := filepath.Join(bundleDir, filepath.Base(t))
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, info.Size()
			}
		}
	}
	return "", 0
}

// readManifest loads the bundle manifest, preferring the plain name and
// falling back to the sealed one. The second return reports whether the
// bundle is sealed.
func readManifest(bundleDir, passphrase string) (*Manifest, bool, error) {
	plain := filepath.Join(bundleDir, ManifestFileName)
	raw, err := os.ReadFile(plain)
	if err == nil {
		m, err := decodeManifest(raw)
		return m, false, err
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("%w: reading %s: %v", catalog.ErrAccess, plain, err)
	}

	sealedPath := filepath.Join(bundleDir, SealedManifestFileName)
	f, err := os.Open(sealedPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: no %s in %s", ErrManifestMissing, ManifestFileName, bundleDir)
		}
		return nil, false, fmt.Errorf("%w: reading %s: %v", catalog.ErrAccess, sealedPath, err)
	}
	defer f.Close()
	if passphrase == "" {
		return nil, false, fmt.Errorf("%w: found %s", ErrSealedBundle, SealedManifestFileName)
	}
	r, err := sealedReader(f, passphrase)
	if err != nil {
		return nil, false, fmt.Errorf("%w: unsealing manifest (wrong passphrase?): %v", ErrManifestCorrupt, err)
	}
	if raw, err = io.ReadAll(r); err != nil {
		return nil, false, fmt.Errorf("%w: unsealing manifest: %v", ErrManifestCorrupt, err)
	}
	m, err := decodeManifest(raw)
	return m, true, err
}

func decodeManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestCorrupt, err)
	}
	return &m, nil
}
