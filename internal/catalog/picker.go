package catalog

// PickPurpose tells a Picker what the requested directory is for, so an
// interactive implementation can phrase its prompt.
type PickPurpose string

const (
	PickBind         PickPurpose = "bind"
	PickExportDest   PickPurpose = "export destination"
	PickImportSource PickPurpose = "import source"
	PickMediaDest    PickPurpose = "media destination"
)

// PickResult is the outcome of a picker interaction. Canceled means the
// user dismissed the prompt; that is a benign outcome, never an error.
type PickResult struct {
	Path     string
	Canceled bool
}

// Picker is the user-interaction seam for choosing directories and
// reconfirming access to a previously bound one. Implementations block
// until the user answers; errors are reserved for broken interaction
// channels, not for refusals.
type Picker interface {
	// PickDirectory asks the user for a directory path.
	PickDirectory(purpose PickPurpose) (PickResult, error)

	// ConfirmAccess asks the user to reconfirm use of an already bound
	// directory. Canceled means the user declined.
	ConfirmAccess(path string) (PickResult, error)
}
