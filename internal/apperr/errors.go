// Package apperr defines the error categories surfaced by mukti commands.
package apperr

import "errors"

var (
	ErrInvalidRecord    = errors.New("invalid record")
	ErrDuplicateVersion = errors.New("duplicate version")
	ErrCorruptRegistry  = errors.New("corrupt registry")
	ErrWrite            = errors.New("write error")
	ErrUnresolvedAlias  = errors.New("unresolved alias")
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
)

var categories = []struct {
	err  error
	name string
	code int
}{
	{ErrInvalidRecord, "InvalidRecord", 2},
	{ErrDuplicateVersion, "DuplicateVersion", 3},
	{ErrCorruptRegistry, "CorruptRegistry", 4},
	{ErrWrite, "WriteError", 5},
	{ErrUnresolvedAlias, "UnresolvedAlias", 6},
	{ErrNotFound, "NotFound", 7},
	{ErrInvalidArgument, "InvalidArgument", 2},
}

// Category returns the category name for err, or "Error" if err does not wrap
// one of the sentinels.
func Category(err error) string {
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "Error"
}

// ExitCode maps err to a process exit status. A nil error maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return 1
}
