package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abhibansal60/led-catalog/internal/catalog"
	"github.com/abhibansal60/led-catalog/internal/config"
	"github.com/abhibansal60/led-catalog/internal/exchange"
	"github.com/abhibansal60/led-catalog/internal/mirror"
	"github.com/abhibansal60/led-catalog/internal/store"
)

// mirrorFetchTimeout bounds the one network call the CLI can make.
const mirrorFetchTimeout = 30 * time.Second

// CatalogApp is the application layer between the CLI and the catalog
// service. It constructs all dependencies from config, exposes
// high-level operations that accept raw string arguments, and manages
// the store lifecycle on Close.
type CatalogApp struct {
	cfg      *config.Config
	store    catalog.Store
	session  *catalog.DirectorySession
	service  *catalog.Service
	exporter *exchange.Exporter
	importer *exchange.Importer
	mirror   exchange.Mirror
	op       *Operation
	logger   *slog.Logger
	logFile  *os.File
}

// NewCatalogApp creates a fully wired CatalogApp from the given config.
// operation identifies the CLI command being run (e.g. "Add", "Export").
// The picker supplies a directory whenever an operation needs one.
// The caller must call Close when done.
func NewCatalogApp(cfg *config.Config, picker catalog.Picker, operation string) (*CatalogApp, error) {
	st, err := store.NewStoreFromConfig(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}

	op := NewOperation(operation)
	logger, logFile, err := newLogger(cfg.LogDir, op.ID())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	m, err := mirror.NewMirrorFromConfig(cfg.Mirror)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	log := &slogAdapter{l: logger}
	clock := catalog.RealClock{}
	idgen := catalog.ULIDGenerator{}

	session := catalog.NewDirectorySession(st, picker, log, clock)
	svc := catalog.NewService(st, session, picker, log, clock, idgen, cfg.Media.CanonicalName)
	exp := exchange.NewExporter(st, session, picker, m, log, clock)
	imp := exchange.NewImporter(st, session, picker, log, clock, idgen)

	return &CatalogApp{
		cfg:      cfg,
		store:    st,
		session:  session,
		service:  svc,
		exporter: exp,
		importer: imp,
		mirror:   m,
		op:       op,
		logger:   logger,
		logFile:  logFile,
	}, nil
}

// AddProgram reads the program file (and optional photo) from disk and
// saves a new catalog record. Returns (nil, nil) when the user cancels
// the folder prompt.
func (a *CatalogApp) AddProgram(filePath, name, description, photoPath string) (*catalog.Program, error) {
	upload, err := readUpload(filePath)
	if err != nil {
		return nil, err
	}
	req := catalog.SaveRequest{
		Name:        name,
		Description: description,
		File:        upload,
	}
	if photoPath != "" {
		photo, err := readPhoto(photoPath)
		if err != nil {
			return nil, err
		}
		req.Photo = photo
	}
	return a.service.SaveProgram(req)
}

// EditOptions describes an edit to an existing program. A nil Name or
// Description keeps the current value; an empty string clears it.
type EditOptions struct {
	Name        *string
	Description *string
	PhotoPath   string
	RemovePhoto bool
	FilePath    string
}

// EditProgram applies the given edits on top of the stored record.
// Returns (nil, nil) when a folder prompt is canceled.
func (a *CatalogApp) EditProgram(id string, opts EditOptions) (*catalog.Program, error) {
	current, err := a.service.GetProgram(id)
	if err != nil {
		return nil, err
	}
	req := catalog.SaveRequest{
		ID:          id,
		Name:        current.Name,
		Description: current.Description,
		RemovePhoto: opts.RemovePhoto,
	}
	if opts.Name != nil {
		req.Name = *opts.Name
	}
	if opts.Description != nil {
		req.Description = *opts.Description
	}
	if opts.PhotoPath != "" {
		photo, err := readPhoto(opts.PhotoPath)
		if err != nil {
			return nil, err
		}
		req.Photo = photo
	}
	if opts.FilePath != "" {
		upload, err := readUpload(opts.FilePath)
		if err != nil {
			return nil, err
		}
		req.File = upload
	}
	return a.service.SaveProgram(req)
}

// ListPrograms returns all cataloged programs, newest first.
func (a *CatalogApp) ListPrograms() ([]catalog.Entry, error) {
	return a.service.ListPrograms()
}

// GetProgram returns one program by ID.
func (a *CatalogApp) GetProgram(id string) (*catalog.Program, error) {
	return a.service.GetProgram(id)
}

// DeleteProgram removes the record and its file from the bound folder.
func (a *CatalogApp) DeleteProgram(id string) error {
	return a.service.DeleteProgram(id)
}

// Wipe clears the entire catalog and deletes its files.
func (a *CatalogApp) Wipe() (*catalog.WipeResult, error) {
	return a.service.Wipe()
}

// CopyToMedia copies a program file to removable media under the
// canonical name the controller expects. Returns (nil, nil) on cancel.
func (a *CatalogApp) CopyToMedia(id string) (*catalog.MediaCopy, error) {
	return a.service.CopyToMedia(id)
}

// Export writes a catalog bundle to a user-chosen directory. A
// non-empty passphrase seals the bundle. Returns (nil, nil) on cancel.
func (a *CatalogApp) Export(passphrase string) (*exchange.ExportResult, error) {
	return a.exporter.Export(exchange.ExportOptions{Passphrase: passphrase})
}

// Import loads a previously exported bundle from a user-chosen
// directory. Returns (nil, nil) on cancel.
func (a *CatalogApp) Import(passphrase string) (*exchange.ImportResult, error) {
	return a.importer.Import(exchange.ImportOptions{Passphrase: passphrase})
}

// BindFolder prompts for a program folder and binds the catalog to it.
// Returns (nil, nil) on cancel.
func (a *CatalogApp) BindFolder() (*catalog.BoundDir, error) {
	return a.session.Bind()
}

// FolderStatus reports the current binding without prompting.
func (a *CatalogApp) FolderStatus() (*catalog.BindingStatus, error) {
	return a.session.Status()
}

// UnbindFolder forgets the bound folder. Records and files stay put.
func (a *CatalogApp) UnbindFolder() error {
	return a.session.Unbind()
}

// FetchMirror retrieves the manifest last published to the configured
// mirror slot. Returns (nil, nil) when the slot is empty.
func (a *CatalogApp) FetchMirror() (*exchange.Manifest, error) {
	if a.mirror == nil {
		return nil, fmt.Errorf("no mirror configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorFetchTimeout)
	defer cancel()
	return a.mirror.Fetch(ctx)
}

// Fail marks the running operation as failed for the closing log line.
func (a *CatalogApp) Fail() {
	a.op.Fail()
}

// Close logs the operation outcome and releases the store and log file.
func (a *CatalogApp) Close() error {
	a.logger.Info("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", time.Since(a.op.Started).Round(time.Millisecond).String())

	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing record store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// readUpload loads a program file from disk into a SaveRequest upload.
func readUpload(path string) (*catalog.FileUpload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program file: %w", err)
	}
	return &catalog.FileUpload{Name: filepath.Base(path), Data: data}, nil
}

// readPhoto loads a photo from disk. Content type is sniffed during
// validation, so only the bytes are needed here.
func readPhoto(path string) (*catalog.Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	return &catalog.Photo{Data: data}, nil
}
