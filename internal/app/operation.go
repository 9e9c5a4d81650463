package app

import "time"

// Operation tracks a single CLI invocation for logging. Operations are
// in-memory only; the catalog keeps no history of them.
type Operation struct {
	Name    string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation creates an operation record for the named CLI command.
func NewOperation(name string) *Operation {
	return &Operation{
		Name:    name,
		Started: time.Now().UTC(),
		Status:  "success",
	}
}

// ID returns the operation's log correlation ID, derived from its start
// time.
func (op *Operation) ID() string {
	return op.Started.Format("20060102T150405Z")
}

// Fail marks the operation as failed. The final log line written on
// Close reports this status.
func (op *Operation) Fail() {
	op.Status = "error"
}
