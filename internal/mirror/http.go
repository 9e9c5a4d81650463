package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abhibansal60/led-catalog/internal/exchange"
)

// HTTPMirror publishes manifests to a ledcat-mirror server (or anything
// speaking its two-endpoint protocol) over plain HTTP.
type HTTPMirror struct {
	client  *http.Client
	baseURL string
	slot    string
}

// NewHTTPMirror creates an HTTPMirror for the slot at baseURL.
func NewHTTPMirror(baseURL, slot string) *HTTPMirror {
	return &HTTPMirror{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		slot:    slot,
	}
}

func (m *HTTPMirror) slotURL() string {
	return m.baseURL + "/api/v1/catalog/" + url.PathEscape(m.slot)
}

func (m *HTTPMirror) Publish(ctx context.Context, manifest *exchange.Manifest) error {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.slotURL(), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("creating publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("publishing manifest to %s: %w", m.slotURL(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mirror returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (m *HTTPMirror) Fetch(ctx context.Context) (*exchange.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.slotURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating fetch request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest from %s: %w", m.slotURL(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // Empty slot
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mirror returned status %d: %s", resp.StatusCode, string(body))
	}
	var manifest exchange.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decoding mirrored manifest: %w", err)
	}
	return &manifest, nil
}

var _ exchange.Mirror = (*HTTPMirror)(nil)
