package state

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"seniorflow/internal/workflow"
)

// Writer writes workflow instances to the state file.
type Writer struct {
	path string
}

// NewWriter creates a [Writer] for the default state file under basePath.
func NewWriter(basePath string) *Writer {
	return &Writer{path: ResolvePath(basePath, "")}
}

// NewWriterWithPath creates a [Writer] for statePath.
func NewWriterWithPath(basePath, statePath string) *Writer {
	return &Writer{path: ResolvePath(basePath, statePath)}
}

// Save stores inst under its feature identifier, replacing any previous
// version. The state file and its directory are created on first use.
func (w *Writer) Save(inst *workflow.Instance) error {
	if inst == nil || inst.FeatureID == "" {
		return fmt.Errorf("failed to save workflow state: %w", workflow.ErrInvalidFeature)
	}

	f, err := readFile(w.path)
	if err != nil {
		return err
	}
	f.Version = FormatVersion
	f.Workflows[inst.FeatureID] = inst

	return w.write(f)
}

// Delete removes the instance for featureID.
//
// Returns [ErrNotFound] if the state file has no such feature.
func (w *Writer) Delete(featureID string) error {
	f, err := readFile(w.path)
	if err != nil {
		return err
	}
	if _, ok := f.Workflows[featureID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, featureID)
	}
	delete(f.Workflows, featureID)

	return w.write(f)
}

func (w *Writer) write(f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to write workflow state: %w", err)
	}

	// Write to temp, then rename
	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write workflow state: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write workflow state: %w", err)
	}

	return nil
}
