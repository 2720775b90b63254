// Package state persists workflow instances between invocations.
//
// All instances of a project live in a single YAML file keyed by feature
// identifier. [Reader] loads instances and [Writer] saves them with an
// atomic temp-file rename, so a crash mid-write never leaves a truncated
// file behind.
package state

import (
	"errors"

	"seniorflow/internal/workflow"
)

// ErrNotFound indicates no instance exists for the requested feature.
var ErrNotFound = errors.New("workflow not found")

// FormatVersion is written to every state file.
const FormatVersion = 1

// File is the on-disk layout of the state file.
type File struct {
	// Version is the state file format version.
	Version int `yaml:"version"`

	// Workflows maps feature identifier to its instance.
	Workflows map[string]*workflow.Instance `yaml:"workflows"`
}
