package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"seniorflow/internal/workflow"
)

// DefaultStatePath is the location of the state file relative to the
// project root.
const DefaultStatePath = ".seniorflow/workflows.yaml"

// ResolvePath determines the state file location.
//
// Resolution order:
//  1. SENIORFLOW_STATE_PATH environment variable (used as-is if set)
//  2. Explicit statePath parameter (if non-empty), relative to basePath
//     unless absolute
//  3. DefaultStatePath under basePath
//
// The basePath is the project root directory. Pass empty string for cwd.
func ResolvePath(basePath, statePath string) string {
	if envPath := os.Getenv("SENIORFLOW_STATE_PATH"); envPath != "" {
		return envPath
	}

	if statePath != "" {
		if filepath.IsAbs(statePath) {
			return statePath
		}
		return filepath.Join(basePath, statePath)
	}

	return filepath.Join(basePath, DefaultStatePath)
}

// Reader reads workflow instances from the state file.
//
// Use [NewReader] for the default location or [NewReaderWithPath] for an
// explicit path.
type Reader struct {
	path string
}

// NewReader creates a [Reader] for the default state file under basePath.
// The SENIORFLOW_STATE_PATH environment variable overrides the location.
func NewReader(basePath string) *Reader {
	return &Reader{path: ResolvePath(basePath, "")}
}

// NewReaderWithPath creates a [Reader] for statePath. The
// SENIORFLOW_STATE_PATH environment variable still takes priority if set.
func NewReaderWithPath(basePath, statePath string) *Reader {
	return &Reader{path: ResolvePath(basePath, statePath)}
}

// Path returns the resolved state file path.
func (r *Reader) Path() string {
	return r.path
}

// Read reads and parses the complete state file.
//
// A missing file is not an error: it yields an empty [File], since no
// workflow has been started yet.
func (r *Reader) Read() (*File, error) {
	return readFile(r.path)
}

// Load returns the instance for featureID.
//
// Returns [ErrNotFound] if the state file has no such feature.
func (r *Reader) Load(featureID string) (*workflow.Instance, error) {
	f, err := r.Read()
	if err != nil {
		return nil, err
	}

	inst, ok := f.Workflows[featureID]
	if !ok || inst == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, featureID)
	}
	return inst, nil
}

// List returns every stored instance sorted by feature identifier.
func (r *Reader) List() ([]*workflow.Instance, error) {
	f, err := r.Read()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(f.Workflows))
	for k, inst := range f.Workflows {
		if inst != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]*workflow.Instance, len(keys))
	for i, k := range keys {
		out[i] = f.Workflows[k]
	}
	return out, nil
}

func readFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &File{Version: FormatVersion, Workflows: map[string]*workflow.Instance{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow state: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to read workflow state: %w", err)
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("failed to read workflow state: unsupported version %d", f.Version)
	}
	if f.Workflows == nil {
		f.Workflows = map[string]*workflow.Instance{}
	}
	return &f, nil
}
