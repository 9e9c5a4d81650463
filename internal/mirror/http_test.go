package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abhibansal60/led-catalog/internal/exchange"
)

func testManifest() *exchange.Manifest {
	return &exchange.Manifest{
		ProgramCount: 2,
		ExportedAt:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Entries: []exchange.ManifestEntry{
			{ID: "p1", Name: "Blink", DateAdded: "2024-01-15T10:30:00Z"},
			{ID: "p2", Name: "Rainbow", DateAdded: "2024-01-15T10:30:00Z"},
		},
	}
}

func TestHTTPMirror_Publish(t *testing.T) {
	t.Run("posts the manifest to the slot", func(t *testing.T) {
		var gotMethod, gotPath, gotContentType string
		var gotManifest exchange.Manifest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			if err := json.NewDecoder(r.Body).Decode(&gotManifest); err != nil {
				t.Errorf("decoding posted manifest: %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		m := NewHTTPMirror(srv.URL, "device-1")
		if err := m.Publish(context.Background(), testManifest()); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		if gotMethod != http.MethodPost {
			t.Errorf("method = %s, want POST", gotMethod)
		}
		if gotPath != "/api/v1/catalog/device-1" {
			t.Errorf("path = %s, want /api/v1/catalog/device-1", gotPath)
		}
		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", gotContentType)
		}
		if gotManifest.ProgramCount != 2 {
			t.Errorf("posted ProgramCount = %d, want 2", gotManifest.ProgramCount)
		}
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slot locked", http.StatusConflict)
		}))
		defer srv.Close()

		m := NewHTTPMirror(srv.URL, "device-1")
		if err := m.Publish(context.Background(), testManifest()); err == nil {
			t.Error("Publish() expected error for non-2xx response")
		}
	})

	t.Run("trailing slash on base URL is tolerated", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		m := NewHTTPMirror(srv.URL+"/", "device-1")
		if err := m.Publish(context.Background(), testManifest()); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if gotPath != "/api/v1/catalog/device-1" {
			t.Errorf("path = %s, want single slash", gotPath)
		}
	})
}

func TestHTTPMirror_Fetch(t *testing.T) {
	t.Run("returns the slot manifest", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("method = %s, want GET", r.Method)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testManifest())
		}))
		defer srv.Close()

		m := NewHTTPMirror(srv.URL, "device-1")
		got, err := m.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got == nil {
			t.Fatal("Fetch() returned nil for a filled slot")
		}
		if got.ProgramCount != 2 || len(got.Entries) != 2 {
			t.Errorf("manifest = %+v", got)
		}
	})

	t.Run("empty slot is not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		m := NewHTTPMirror(srv.URL, "device-1")
		got, err := m.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got != nil {
			t.Errorf("Fetch() = %+v, want nil for empty slot", got)
		}
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		m := NewHTTPMirror(srv.URL, "device-1")
		if _, err := m.Fetch(context.Background()); err == nil {
			t.Error("Fetch() expected error for 500 response")
		}
	})

	t.Run("rejects undecodable bodies", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		m := NewHTTPMirror(srv.URL, "device-1")
		if _, err := m.Fetch(context.Background()); err == nil {
			t.Error("Fetch() expected error for malformed body")
		}
	})
}
