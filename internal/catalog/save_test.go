package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/abhibansal60/led-catalog/internal/catalog"
)

func pngPhoto() *catalog.Photo {
	data := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)
	return &catalog.Photo{Data: data}
}

func TestSaveProgram_Create(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	e.picker.QueuePick(dir)

	p, err := e.svc.SaveProgram(catalog.SaveRequest{
		Name:        "  Blink  ",
		Description: "three LEDs",
		Photo:       pngPhoto(),
		File:        &catalog.FileUpload{Name: "Blink Set.led", Data: []byte("payload")},
	})
	if err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}
	if p == nil {
		t.Fatal("SaveProgram() returned nil")
	}

	if p.ID != "id-1" {
		t.Errorf("ID = %q, want %q", p.ID, "id-1")
	}
	if p.Name != "Blink" {
		t.Errorf("Name = %q, want trimmed %q", p.Name, "Blink")
	}
	if p.OriginalFileName != "Blink Set.led" {
		t.Errorf("OriginalFileName = %q", p.OriginalFileName)
	}
	if p.StoredFileName != "id-1-Blink Set.led" {
		t.Errorf("StoredFileName = %q, want %q", p.StoredFileName, "id-1-Blink Set.led")
	}
	if !p.DateAdded.Equal(e.clock.Now()) {
		t.Errorf("DateAdded = %v, want %v", p.DateAdded, e.clock.Now())
	}
	if p.FileSizeBytes == nil || *p.FileSizeBytes != int64(len("payload")) {
		t.Errorf("FileSizeBytes = %v, want %d", p.FileSizeBytes, len("payload"))
	}
	if p.Photo == nil || p.Photo.MIME != "image/png" {
		t.Errorf("Photo = %+v, want sniffed image/png", p.Photo)
	}

	// The binary landed in the bound folder under the stored name.
	data, err := os.ReadFile(filepath.Join(dir, p.StoredFileName))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("stored file = %q, want %q", data, "payload")
	}

	// And the record is durably in the store.
	got, err := e.store.Get(p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Name != "Blink" {
		t.Errorf("stored record = %+v", got)
	}
}

func TestSaveProgram_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  catalog.SaveRequest
	}{
		{
			name: "missing file",
			req:  catalog.SaveRequest{Name: "x"},
		},
		{
			name: "wrong extension",
			req: catalog.SaveRequest{
				Name: "x",
				File: &catalog.FileUpload{Name: "x.bin", Data: []byte("d")},
			},
		},
		{
			name: "empty name",
			req: catalog.SaveRequest{
				File: &catalog.FileUpload{Name: "x.led", Data: []byte("d")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.svc.SaveProgram(tt.req)
			if !errors.Is(err, catalog.ErrValidation) {
				t.Errorf("SaveProgram() error = %v, want ErrValidation", err)
			}
			// Validation happens before any folder interaction.
			if len(e.picker.Calls) != 0 {
				t.Errorf("picker was invoked: %v", e.picker.Calls)
			}
		})
	}
}

func TestSaveProgram_Create_Cancel(t *testing.T) {
	e := newEnv(t)
	e.picker.QueuePickCancel()

	p, err := e.svc.SaveProgram(catalog.SaveRequest{
		Name: "x",
		File: &catalog.FileUpload{Name: "x.led", Data: []byte("d")},
	})
	if err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}
	if p != nil {
		t.Fatalf("SaveProgram() = %+v, want nil on cancel", p)
	}

	records, err := e.store.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("store has %d records after cancel, want 0", len(records))
	}
}

func TestSaveProgram_Update_MetadataOnly(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	p := e.addProgram(t, dir, "blink.led", []byte("v1"))
	calls := len(e.picker.Calls)

	got, err := e.svc.SaveProgram(catalog.SaveRequest{
		ID:          p.ID,
		Name:        "Renamed",
		Description: "new words",
	})
	if err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}
	if got.Name != "Renamed" || got.Description != "new words" {
		t.Errorf("updated = %+v", got)
	}

	// Metadata edits never touch the folder or prompt.
	if len(e.picker.Calls) != calls {
		t.Errorf("picker calls grew: %v", e.picker.Calls)
	}
	data, err := os.ReadFile(filepath.Join(dir, p.StoredFileName))
	if err != nil {
		t.Fatalf("stored file gone: %v", err)
	}
	if string(data) != "v1" {
		t.Errorf("stored file = %q, want untouched %q", data, "v1")
	}
}

func TestSaveProgram_Update_PhotoHandling(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	p := e.addProgram(t, dir, "blink.led", []byte("v1"))

	// Attach a photo.
	got, err := e.svc.SaveProgram(catalog.SaveRequest{ID: p.ID, Name: p.Name, Photo: pngPhoto()})
	if err != nil {
		t.Fatalf("attach photo: %v", err)
	}
	if got.Photo == nil {
		t.Fatal("photo not attached")
	}

	// A nil photo leaves the existing one alone.
	got, err = e.svc.SaveProgram(catalog.SaveRequest{ID: p.ID, Name: "still here"})
	if err != nil {
		t.Fatalf("neutral edit: %v", err)
	}
	if got.Photo == nil {
		t.Error("neutral edit dropped the photo")
	}

	// RemovePhoto clears it.
	got, err = e.svc.SaveProgram(catalog.SaveRequest{ID: p.ID, Name: "still here", RemovePhoto: true})
	if err != nil {
		t.Fatalf("remove photo: %v", err)
	}
	if got.Photo != nil {
		t.Error("RemovePhoto left the photo in place")
	}
}

func TestSaveProgram_Update_ReplaceFileSameName(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	p := e.addProgram(t, dir, "blink.led", []byte("v1"))

	got, err := e.svc.SaveProgram(catalog.SaveRequest{
		ID:   p.ID,
		Name: p.Name,
		File: &catalog.FileUpload{Name: "blink.led", Data: []byte("v2 longer")},
	})
	if err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}
	if got.StoredFileName != p.StoredFileName {
		t.Errorf("StoredFileName changed: %q -> %q", p.StoredFileName, got.StoredFileName)
	}
	if got.FileSizeBytes == nil || *got.FileSizeBytes != int64(len("v2 longer")) {
		t.Errorf("FileSizeBytes = %v", got.FileSizeBytes)
	}

	data, _ := os.ReadFile(filepath.Join(dir, got.StoredFileName))
	if string(data) != "v2 longer" {
		t.Errorf("stored file = %q, want %q", data, "v2 longer")
	}
}

func TestSaveProgram_Update_ReplaceFileNewName(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	p := e.addProgram(t, dir, "old.led", []byte("v1"))

	got, err := e.svc.SaveProgram(catalog.SaveRequest{
		ID:   p.ID,
		Name: p.Name,
		File: &catalog.FileUpload{Name: "new.led", Data: []byte("v2")},
	})
	if err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}
	if got.OriginalFileName != "new.led" {
		t.Errorf("OriginalFileName = %q", got.OriginalFileName)
	}
	if got.StoredFileName == p.StoredFileName {
		t.Error("StoredFileName did not change with the file name")
	}

	// New file present, superseded one removed.
	if _, err := os.Stat(filepath.Join(dir, got.StoredFileName)); err != nil {
		t.Errorf("new file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, p.StoredFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("old file still present (err=%v)", err)
	}
}

func TestSaveProgram_Update_UnknownID(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.SaveProgram(catalog.SaveRequest{ID: "ghost", Name: "x"})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("SaveProgram() error = %v, want ErrNotFound", err)
	}
}
