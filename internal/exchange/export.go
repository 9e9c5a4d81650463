package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abhibansal60/led-catalog/internal/catalog"
)

// mirrorTimeout bounds the fire-and-forget manifest publish so a dead
// mirror cannot hang an export.
const mirrorTimeout = 30 * time.Second

// Exporter writes catalog bundles: a manifest plus a copy of every
// readable program file, into a fresh folder on a user-chosen
// destination. A failed file never aborts the bundle; the manifest
// records it instead.
type Exporter struct {
	store   catalog.Store
	session *catalog.DirectorySession
	picker  catalog.Picker
	mirror  Mirror
	logger  catalog.Logger
	clock   catalog.Clock
}

// NewExporter creates an Exporter. mirror may be nil to disable the
// manifest mirror.
func NewExporter(store catalog.Store, session *catalog.DirectorySession, picker catalog.Picker, mirror Mirror, logger catalog.Logger, clock catalog.Clock) *Exporter {
	return &Exporter{store: store, session: session, picker: picker, mirror: mirror, logger: logger, clock: clock}
}

// ExportOptions tunes one export. A non-empty Passphrase seals every
// bundle file with age passphrase encryption.
type ExportOptions struct {
	Passphrase string
}

// MirrorState reports what happened to the optional manifest mirror.
type MirrorState string

const (
	MirrorSkipped   MirrorState = "skipped"
	MirrorPublished MirrorState = "published"
	MirrorFailed    MirrorState = "failed"
)

// ExportResult summarizes a finished export.
type ExportResult struct {
	BundleDir   string
	Exported    int
	Missing     int
	MirrorState MirrorState
	Manifest    *Manifest
}

// Export builds a bundle for the whole catalog. Returns (nil, nil) if
// the user cancels a folder prompt. Unreadable program files are
// tolerated: their manifest entries carry a nil exported name and a
// note, and the export still succeeds.
func (e *Exporter) Export(opts ExportOptions) (*ExportResult, error) {
	records, err := e.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty, nothing to export", catalog.ErrValidation)
	}
	catalog.SortNewestFirst(records)

	srcDir, err := e.session.EnsureAccess()
	if err != nil {
		return nil, err
	}
	if srcDir == nil {
		return nil, nil
	}
	destRes, err := e.picker.PickDirectory(catalog.PickExportDest)
	if err != nil {
		return nil, fmt.Errorf("%w: picking export destination: %v", catalog.ErrAccess, err)
	}
	if destRes.Canceled {
		return nil, nil
	}
	if err := catalog.ProbeDir(destRes.Path); err != nil {
		return nil, err
	}

	bundleDir, err := makeBundleDir(destRes.Path, e.clock.Now())
	if err != nil {
		return nil, err
	}
	res := &ExportResult{BundleDir: bundleDir, MirrorState: MirrorSkipped}
	manifest := &Manifest{
		ExportedAt:   e.clock.Now().UTC(),
		Instructions: bundleInstructions,
	}

	used := make(map[string]int)
	for _, p := range records {
		entry := entryFromProgram(p)
		name, size, reason := e.copyProgram(srcDir, bundleDir, p, used, opts.Passphrase)
		if reason != "" {
			entry.ExportedFileName = nil
			entry.Notes = reason
			res.Missing++
		} else {
			entry.ExportedFileName = &name
			if entry.FileSizeBytes == nil {
				entry.FileSizeBytes = &size
			}
			res.Exported++
		}
		manifest.Entries = append(manifest.Entries, entry)
	}
	manifest.ProgramCount = len(manifest.Entries)

	// A bundle without its manifest is unusable, so this failure is
	// fatal and takes the half-built folder with it.
	if err := writeManifest(bundleDir, manifest, opts.Passphrase); err != nil {
		os.RemoveAll(bundleDir)
		return nil, err
	}
	res.Manifest = manifest

	if e.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		err := e.mirror.Publish(ctx, manifest)
		cancel()
		if err != nil {
			e.logger.Warn("mirror publish failed", "error", err)
			res.MirrorState = MirrorFailed
		} else {
			res.MirrorState = MirrorPublished
		}
	}

	e.logger.Info("catalog exported", "bundle", bundleDir, "exported", res.Exported, "missing", res.Missing, "mirror", string(res.MirrorState))
	return res, nil
}

// copyProgram streams one program file into the bundle, sealing it when
// a passphrase is set. On success reason is empty; on failure nothing
// is left behind and reason says what went wrong.
func (e *Exporter) copyProgram(srcDir *catalog.BoundDir, bundleDir string, p *catalog.Program, used map[string]int, passphrase string) (name string, size int64, reason string) {
	if p.StoredFileName == "" {
		return "", 0, "no stored file"
	}
	src, err := os.Open(srcDir.FilePath(p.StoredFileName))
	if err != nil {
		e.logger.Warn("program file unreadable at export", "id", p.ID, "file", p.StoredFileName, "error", err)
		return "", 0, "file missing or unreadable: " + err.Error()
	}
	defer src.Close()

	name = exportFileName(p.OriginalFileName, used)
	if passphrase != "" {
		name += SealedExt
	}
	path := filepath.Join(bundleDir, name)
	dst, err := os.Create(path)
	if err != nil {
		e.logger.Warn("bundle file write failed", "id", p.ID, "file", name, "error", err)
		return "", 0, "writing bundle file failed: " + err.Error()
	}
	var w io.Writer = dst
	var seal io.WriteCloser
	if passphrase != "" {
		seal, err = sealWriter(dst, passphrase)
		if err != nil {
			dst.Close()
			os.Remove(path)
			return "", 0, "sealing bundle file failed: " + err.Error()
		}
		w = seal
	}
	n, cperr := io.Copy(w, src)
	if seal != nil {
		if err := seal.Close(); cperr == nil {
			cperr = err
		}
	}
	if err := dst.Close(); cperr == nil {
		cperr = err
	}
	if cperr != nil {
		os.Remove(path)
		e.logger.Warn("bundle file write failed", "id", p.ID, "file", name, "error", cperr)
		return "", 0, "writing bundle file failed: " + cperr.Error()
	}
	return name, n, ""
}

// makeBundleDir creates a uniquely named bundle folder under dest.
// Timestamped names collide only when two exports land in the same
// second; a numeric suffix disambiguates.
func makeBundleDir(dest string, now time.Time) (string, error) {
	base := "led-catalog-" + now.Format("20060102-150405")
	name := base
	for n := 2; ; n++ {
		path := filepath.Join(dest, name)
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: creating bundle folder %s: %v", catalog.ErrAccess, path, err)
		}
		name = fmt.Sprintf("%s-%d", base, n)
	}
}

// exportFileName keeps the program's user-facing file name, suffixing
// -2, -3, ... when the bundle already has that name.
func exportFileName(original string, used map[string]int) string {
	name := catalog.SanitizeFileName(original)
	if used[name] == 0 {
		used[name] = 1
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := used[name] + 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if used[candidate] == 0 {
			used[name] = n
			used[candidate] = 1
			return candidate
		}
	}
}

// writeManifest serializes the manifest into the bundle, sealed when a
// passphrase is set.
func writeManifest(bundleDir string, m *Manifest, passphrase string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	name := ManifestFileName
	if passphrase != "" {
		name = SealedManifestFileName
	}
	path := filepath.Join(bundleDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: writing %s: %v", catalog.ErrAccess, path, err)
	}
	var w io.Writer = f
	var seal io.WriteCloser
	if passphrase != "" {
		if seal, err = sealWriter(f, passphrase); err != nil {
			f.Close()
			os.Remove(path)
			return err
		}
		w = seal
	}
	_, werr := w.Write(raw)
	if seal != nil {
		if err := seal.Close(); werr == nil {
			werr = err
		}
	}
	if err := f.Close(); werr == nil {
		werr = err
	}
	if werr != nil {
		os.Remove(path)
		return fmt.Errorf("%w: writing %s: %v", catalog.ErrAccess, path, werr)
	}
	return nil
}
