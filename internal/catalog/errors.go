package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure classes the catalog distinguishes.
// Callers classify with errors.Is; the wrapped message carries the detail.
var (
	// ErrValidation marks rejected input (bad name, oversized photo,
	// wrong file extension). Nothing was written.
	ErrValidation = errors.New("validation failed")

	// ErrPermission marks a folder the OS let us see but not use.
	// Recoverable by re-running the folder pick flow.
	ErrPermission = errors.New("folder permission denied")

	// ErrAccess marks a folder or file operation that failed for any
	// reason other than permission (removed media, I/O error, stale path).
	ErrAccess = errors.New("folder access failed")

	// ErrStorage marks a failure of the record store itself.
	ErrStorage = errors.New("record store failure")

	// ErrQuota marks an operation aborted up front because the bound
	// folder does not have room for the incoming data.
	ErrQuota = errors.New("not enough free space")

	// ErrNotFound marks a lookup of a program id that is not in the
	// record store.
	ErrNotFound = errors.New("program not found")

	// ErrPartial marks a bulk operation that completed for some items
	// and failed for others. The concrete error is a *BatchError.
	ErrPartial = errors.New("partial batch failure")
)

// ItemFailure names one item of a bulk operation that failed, and why.
type ItemFailure struct {
	ID     string
	Name   string
	Reason string
}

// BatchError aggregates per-item failures of a bulk operation. The
// operation is not rolled back; successful items stay done.
type BatchError struct {
	Op    string
	Items []ItemFailure
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d item(s) failed", e.Op, len(e.Items))
	for _, it := range e.Items {
		fmt.Fprintf(&b, "; %s (%s): %s", it.Name, it.ID, it.Reason)
	}
	return b.String()
}

func (e *BatchError) Unwrap() error {
	return ErrPartial
}
