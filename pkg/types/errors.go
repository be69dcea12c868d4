package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the prep pipeline.
var (
	// ErrUnsupportedFormat means a single-file upload matched none of
	// the recognized structure or ligand formats.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrWorkspaceNotFound means the workspace id does not resolve to
	// a directory under the configured root.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrFetchTimeout means an external structure fetch exceeded the
	// caller-supplied deadline.
	ErrFetchTimeout = errors.New("structure fetch timed out")
)

// InvalidArchiveEntryError is returned when an archive member would
// extract outside its target directory.
type InvalidArchiveEntryError struct {
	Entry string
}

func (e *InvalidArchiveEntryError) Error() string {
	return fmt.Sprintf("archive entry %q escapes the extraction directory", e.Entry)
}

// MalformedStructureError is returned when a structure file contains
// no parsable atom records.
type MalformedStructureError struct {
	File   string
	Reason string
}

func (e *MalformedStructureError) Error() string {
	return fmt.Sprintf("malformed structure %s: %s", e.File, e.Reason)
}

// MissingParameterError is returned when a script template requires a
// placeholder that was not supplied.
type MissingParameterError struct {
	Template string
	Name     string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("template %s: missing parameter %q", e.Template, e.Name)
}

// MissingCenterError aborts a build when staged receptors lack docking
// centers. Tags lists every uncovered receptor, not just the first.
type MissingCenterError struct {
	Tags []string
}

func (e *MissingCenterError) Error() string {
	return "no docking center for receptors: " + strings.Join(e.Tags, ", ")
}
