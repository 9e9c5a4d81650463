// Package mirrorserver implements the catalog mirror endpoint: a small
// HTTP service holding the last published manifest per slot. It is a
// convenience relay, not a system of record; clients treat it as
// advisory and keep working when it is unreachable.
package mirrorserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/abhibansal60/led-catalog/internal/exchange"
)

// maxManifestBytes caps a published manifest. Photos ride along as
// base64 data URIs, so real catalogs stay well under this.
const maxManifestBytes = 32 << 20

type Server struct {
	store   *SlotStore
	logger  *slog.Logger
	metrics *Metrics
}

func New(store *SlotStore, logger *slog.Logger, metrics *Metrics) *Server {
	return &Server{store: store, logger: logger, metrics: metrics}
}

// Handler builds the HTTP surface: the catalog slot endpoints plus
// health and metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/{slot}", s.handleGet)
		r.Post("/{slot}", s.handlePublish)
	})
	return r
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxManifestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderError(w, r, http.StatusRequestEntityTooLarge, "manifest too large")
			return
		}
		renderError(w, r, http.StatusBadRequest, "could not read request body")
		return
	}

	var manifest exchange.Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		renderError(w, r, http.StatusBadRequest, "body is not a catalog manifest")
		return
	}

	// Store the bytes as published, not a re-encoding, so a fetch
	// returns exactly what the client sent.
	if err := s.store.Put(slot, body); err != nil {
		if errors.Is(err, ErrBadSlot) {
			renderError(w, r, http.StatusBadRequest, "invalid slot name")
			return
		}
		s.logger.Error("storing manifest", "slot", slot, "error", err)
		renderError(w, r, http.StatusInternalServerError, "could not store manifest")
		return
	}

	s.logger.Info("manifest published", "slot", slot, "programs", manifest.ProgramCount, "bytes", len(body))
	render.NoContent(w, r)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")

	raw, err := s.store.Get(slot)
	if err != nil {
		if errors.Is(err, ErrBadSlot) {
			renderError(w, r, http.StatusBadRequest, "invalid slot name")
			return
		}
		s.logger.Error("reading manifest", "slot", slot, "error", err)
		renderError(w, r, http.StatusInternalServerError, "could not read manifest")
		return
	}
	if raw == nil {
		renderError(w, r, http.StatusNotFound, "no manifest published for this slot")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// Run serves until the process receives SIGINT or SIGTERM, then shuts
// down gracefully.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	s.logger.Info("mirror server listening", "addr", addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
