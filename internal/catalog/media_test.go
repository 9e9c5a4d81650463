package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abhibansal60/led-catalog/internal/catalog"
	"github.com/abhibansal60/led-catalog/internal/testutil"
)

func TestCopyToMedia(t *testing.T) {
	t.Run("copies under canonical name with note", func(t *testing.T) {
		e := newEnv(t)
		p := e.addProgram(t, t.TempDir(), "sunrise.led", []byte("led data"))
		media := t.TempDir()
		e.picker.QueuePick(media)

		res, err := e.svc.CopyToMedia(p.ID)
		if err != nil {
			t.Fatalf("CopyToMedia() error = %v", err)
		}
		if res == nil {
			t.Fatal("CopyToMedia() returned nil")
		}

		wantProgram := filepath.Join(media, catalog.DefaultMediaFileName)
		if res.ProgramPath != wantProgram {
			t.Errorf("ProgramPath = %q, want %q", res.ProgramPath, wantProgram)
		}
		data, err := os.ReadFile(res.ProgramPath)
		if err != nil {
			t.Fatalf("reading copied file: %v", err)
		}
		if string(data) != "led data" {
			t.Errorf("copied file = %q", data)
		}

		note, err := os.ReadFile(res.NotePath)
		if err != nil {
			t.Fatalf("reading note: %v", err)
		}
		for _, want := range []string{"Program: sunrise.led", "File: sunrise.led"} {
			if !strings.Contains(string(note), want) {
				t.Errorf("note = %q, missing %q", note, want)
			}
		}
	})

	t.Run("cancel on media pick", func(t *testing.T) {
		e := newEnv(t)
		p := e.addProgram(t, t.TempDir(), "sunrise.led", []byte("led data"))
		e.picker.QueuePickCancel()

		res, err := e.svc.CopyToMedia(p.ID)
		if err != nil {
			t.Fatalf("CopyToMedia() error = %v", err)
		}
		if res != nil {
			t.Errorf("CopyToMedia() = %+v, want nil on cancel", res)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.svc.CopyToMedia("ghost")
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("CopyToMedia() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("custom canonical name", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		picker := testutil.NewScriptedPicker()
		clock := testutil.FixedClock()
		logger := catalog.NewNopLogger()
		session := catalog.NewDirectorySession(st, picker, logger, clock)
		svc := catalog.NewService(st, session, picker, logger, clock, testutil.NewStubIDGenerator(), "SHOW.led")

		picker.QueuePick(t.TempDir())
		p, err := svc.SaveProgram(catalog.SaveRequest{
			Name: "x",
			File: &catalog.FileUpload{Name: "x.led", Data: []byte("d")},
		})
		if err != nil || p == nil {
			t.Fatalf("SaveProgram() = %v, %v", p, err)
		}

		media := t.TempDir()
		picker.QueuePick(media)
		res, err := svc.CopyToMedia(p.ID)
		if err != nil {
			t.Fatalf("CopyToMedia() error = %v", err)
		}
		if filepath.Base(res.ProgramPath) != "SHOW.led" {
			t.Errorf("ProgramPath = %q, want SHOW.led", res.ProgramPath)
		}
		if filepath.Base(res.NotePath) != "SHOW.txt" {
			t.Errorf("NotePath = %q, want SHOW.txt", res.NotePath)
		}
	})
}
