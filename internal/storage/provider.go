// Package storage defines the file-system abstraction used for the registry
// document and generated redirect files.
package storage

import "io"

// Provider is the interface for rooted file operations.
type Provider interface {
	// Root returns the absolute directory all paths are resolved against.
	Root() string
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Write atomically replaces path with content.
	Write(path string, content []byte) error
	// WriteFunc atomically replaces path with whatever fn writes. If fn
	// fails, the previous file is left untouched.
	WriteFunc(path string, fn func(w io.Writer) error) error
}
