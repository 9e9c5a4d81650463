package exchange_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abhibansal60/led-catalog/internal/catalog"
	"github.com/abhibansal60/led-catalog/internal/exchange"
	"github.com/abhibansal60/led-catalog/internal/testutil"
)

// env wires a store, a scripted picker, and a bound folder for exchange
// tests. The binding is persisted in the granted state so EnsureAccess
// succeeds without prompting.
type env struct {
	store   catalog.Store
	picker  *testutil.ScriptedPicker
	clock   *testutil.StubClock
	session *catalog.DirectorySession
	folder  string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st := testutil.NewTestStore(t)
	picker := testutil.NewScriptedPicker()
	clock := testutil.FixedClock()
	session := catalog.NewDirectorySession(st, picker, catalog.NewNopLogger(), clock)

	folder := t.TempDir()
	if err := st.SaveBinding(&catalog.Binding{
		Path:       folder,
		Permission: catalog.PermissionGranted,
		BoundAt:    clock.Now(),
	}); err != nil {
		t.Fatalf("seeding folder binding: %v", err)
	}
	return &env{store: st, picker: picker, clock: clock, session: session, folder: folder}
}

func (e *env) exporter(m exchange.Mirror) *exchange.Exporter {
	return exchange.NewExporter(e.store, e.session, e.picker, m, catalog.NewNopLogger(), e.clock)
}

func (e *env) importer() *exchange.Importer {
	return exchange.NewImporter(e.store, e.session, e.picker, catalog.NewNopLogger(), e.clock, testutil.NewStubIDGenerator())
}

// seedProgram stores a record and writes its binary into the bound
// folder.
func (e *env) seedProgram(t *testing.T, id, name, fileName string, data []byte) *catalog.Program {
	t.Helper()

	size := int64(len(data))
	p := &catalog.Program{
		ID:               id,
		Name:             name,
		OriginalFileName: fileName,
		StoredFileName:   catalog.StoredFileName(id, fileName),
		DateAdded:        e.clock.Now(),
		FileSizeBytes:    &size,
	}
	if err := os.WriteFile(filepath.Join(e.folder, p.StoredFileName), data, 0o644); err != nil {
		t.Fatalf("writing program file: %v", err)
	}
	if err := e.store.Save(p); err != nil {
		t.Fatalf("saving program: %v", err)
	}
	return p
}

func readBundleManifest(t *testing.T, bundleDir string) *exchange.Manifest {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join(bundleDir, exchange.ManifestFileName))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	var m exchange.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decoding manifest: %v", err)
	}
	return &m
}

func TestExport_WritesBundle(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink", "blink.led", []byte("blink data"))
	e.seedProgram(t, "p2", "Rainbow", "rainbow.led", []byte("rainbow data"))

	dest := t.TempDir()
	e.picker.QueuePick(dest)

	res, err := e.exporter(nil).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res == nil {
		t.Fatal("Export() returned nil")
	}

	wantDir := filepath.Join(dest, "led-catalog-20240115-103000")
	if res.BundleDir != wantDir {
		t.Errorf("BundleDir = %q, want %q", res.BundleDir, wantDir)
	}
	if res.Exported != 2 || res.Missing != 0 {
		t.Errorf("Exported = %d, Missing = %d, want 2, 0", res.Exported, res.Missing)
	}
	if res.MirrorState != exchange.MirrorSkipped {
		t.Errorf("MirrorState = %q, want skipped with no mirror", res.MirrorState)
	}

	m := readBundleManifest(t, res.BundleDir)
	if m.ProgramCount != 2 || len(m.Entries) != 2 {
		t.Fatalf("ProgramCount = %d, entries = %d, want 2", m.ProgramCount, len(m.Entries))
	}
	if m.Instructions == "" {
		t.Error("manifest instructions are empty")
	}
	for _, entry := range m.Entries {
		if entry.ExportedFileName == nil {
			t.Errorf("entry %s has nil exported name", entry.ID)
			continue
		}
		copied, err := os.ReadFile(filepath.Join(res.BundleDir, *entry.ExportedFileName))
		if err != nil {
			t.Errorf("reading bundle copy %s: %v", *entry.ExportedFileName, err)
			continue
		}
		orig, err := os.ReadFile(filepath.Join(e.folder, entry.StoredFileName))
		if err != nil {
			t.Fatalf("reading source file: %v", err)
		}
		if string(copied) != string(orig) {
			t.Errorf("bundle copy %s differs from source", *entry.ExportedFileName)
		}
	}
}

func TestExport_EmptyCatalog(t *testing.T) {
	e := newEnv(t)

	_, err := e.exporter(nil).Export(exchange.ExportOptions{})
	if !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("Export() error = %v, want ErrValidation", err)
	}
	if len(e.picker.Calls) != 0 {
		t.Errorf("picker calls = %v, want none for empty catalog", e.picker.Calls)
	}
}

func TestExport_CancelDestinationPick(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink", "blink.led", []byte("data"))
	e.picker.QueuePickCancel()

	res, err := e.exporter(nil).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res != nil {
		t.Errorf("Export() = %+v, want nil on cancel", res)
	}
}

func TestExport_MissingFileTolerated(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink", "blink.led", []byte("data"))
	gone := e.seedProgram(t, "p2", "Rainbow", "rainbow.led", []byte("data2"))
	if err := os.Remove(filepath.Join(e.folder, gone.StoredFileName)); err != nil {
		t.Fatalf("removing file: %v", err)
	}

	e.picker.QueuePick(t.TempDir())
	res, err := e.exporter(nil).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Exported != 1 || res.Missing != 1 {
		t.Errorf("Exported = %d, Missing = %d, want 1, 1", res.Exported, res.Missing)
	}

	m := readBundleManifest(t, res.BundleDir)
	if len(m.Entries) != 2 {
		t.Fatalf("entries = %d, want 2 (missing file still listed)", len(m.Entries))
	}
	for _, entry := range m.Entries {
		if entry.ID == "p2" {
			if entry.ExportedFileName != nil {
				t.Errorf("missing entry ExportedFileName = %q, want null", *entry.ExportedFileName)
			}
			if entry.Notes == "" {
				t.Error("missing entry has no note")
			}
		}
	}
}

func TestExport_DuplicateFileNames(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink A", "blink.led", []byte("a"))
	e.seedProgram(t, "p2", "Blink B", "blink.led", []byte("b"))

	e.picker.QueuePick(t.TempDir())
	res, err := e.exporter(nil).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	names := make(map[string]bool)
	for _, entry := range res.Manifest.Entries {
		if entry.ExportedFileName == nil {
			t.Fatalf("entry %s not exported", entry.ID)
		}
		names[*entry.ExportedFileName] = true
	}
	if !names["blink.led"] || !names["blink-2.led"] {
		t.Errorf("exported names = %v, want blink.led and blink-2.led", names)
	}
}

func TestExport_Sealed(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink", "blink.led", []byte("secret data"))

	e.picker.QueuePick(t.TempDir())
	res, err := e.exporter(nil).Export(exchange.ExportOptions{Passphrase: "correct horse"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(res.BundleDir, exchange.ManifestFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("sealed bundle must not carry a plain manifest")
	}
	if _, err := os.Stat(filepath.Join(res.BundleDir, exchange.SealedManifestFileName)); err != nil {
		t.Errorf("sealed manifest missing: %v", err)
	}

	entry := res.Manifest.Entries[0]
	if entry.ExportedFileName == nil || !strings.HasSuffix(*entry.ExportedFileName, exchange.SealedExt) {
		t.Fatalf("ExportedFileName = %v, want sealed suffix", entry.ExportedFileName)
	}
	sealed, err := os.ReadFile(filepath.Join(res.BundleDir, *entry.ExportedFileName))
	if err != nil {
		t.Fatalf("reading sealed file: %v", err)
	}
	if strings.Contains(string(sealed), "secret data") {
		t.Error("sealed file contains the plaintext")
	}
}

func TestExport_MirrorPublished(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink", "blink.led", []byte("data"))
	mirror := testutil.NewFakeMirror()

	e.picker.QueuePick(t.TempDir())
	res, err := e.exporter(mirror).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.MirrorState != exchange.MirrorPublished {
		t.Errorf("MirrorState = %q, want published", res.MirrorState)
	}

	published := mirror.Published()
	if len(published) != 1 {
		t.Fatalf("published %d manifests, want 1", len(published))
	}
	if published[0].ProgramCount != 1 {
		t.Errorf("published ProgramCount = %d, want 1", published[0].ProgramCount)
	}
}

func TestExport_MirrorFailureIsBestEffort(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink", "blink.led", []byte("data"))
	mirror := testutil.NewFakeMirror()
	mirror.FailWith = errors.New("mirror down")

	e.picker.QueuePick(t.TempDir())
	res, err := e.exporter(mirror).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("Export() error = %v, mirror failure must not fail the export", err)
	}
	if res.MirrorState != exchange.MirrorFailed {
		t.Errorf("MirrorState = %q, want failed", res.MirrorState)
	}
	if res.Exported != 1 {
		t.Errorf("Exported = %d, want 1", res.Exported)
	}
}

func TestExport_SecondBundleSameSecond(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1", "Blink", "blink.led", []byte("data"))

	dest := t.TempDir()
	e.picker.QueuePick(dest)
	first, err := e.exporter(nil).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("first Export() error = %v", err)
	}

	// The stub clock does not move, so the second bundle collides on the
	// timestamped name and must pick a suffixed one.
	e.picker.QueuePick(dest)
	second, err := e.exporter(nil).Export(exchange.ExportOptions{})
	if err != nil {
		t.Fatalf("second Export() error = %v", err)
	}
	if second.BundleDir == first.BundleDir {
		t.Errorf("second bundle reused %q", first.BundleDir)
	}
	if filepath.Base(second.BundleDir) != "led-catalog-20240115-103000-2" {
		t.Errorf("second bundle = %q, want -2 suffix", filepath.Base(second.BundleDir))
	}
}
