package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// FileStore persists deployment state as a JSON document under
// <dir>/<deployment>/state.json. Commits write a temp file and rename it so
// a crash mid-write never leaves a torn state file.
type FileStore struct {
	dir     string
	current *ir.DeploymentState
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) statePath(deploymentID string) string {
	return filepath.Join(s.dir, deploymentID, "state.json")
}

// Load reads the deployment state, returning an empty state if none exists.
func (s *FileStore) Load(ctx context.Context, deploymentID string) (*ir.DeploymentState, error) {
	path := s.statePath(deploymentID)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.current = ir.NewDeploymentState(deploymentID)
		return s.current.Clone(), nil
	}
	if err != nil {
		return nil, &StoreError{Op: "load", Err: err}
	}

	if IsEncrypted(raw) {
		raw, err = Decrypt(raw)
		if err != nil {
			return nil, &StoreError{Op: "load", Err: err}
		}
	}

	var ds ir.DeploymentState
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, &StoreError{Op: "load", Err: fmt.Errorf("corrupt state file %s: %w", path, err)}
	}
	if ds.Resources == nil {
		ds.Resources = make(map[string]*ir.ResourceState)
	}

	s.current = &ds
	return s.current.Clone(), nil
}

// Commit persists a single resource transition. The in-memory copy mutates
// only after the new document is durably on disk.
func (s *FileStore) Commit(ctx context.Context, name string, rs *ir.ResourceState) error {
	if s.current == nil {
		return &StoreError{Op: "commit", Err: fmt.Errorf("store not loaded")}
	}

	next := s.current.Clone()
	next.Resources[name] = rs.Clone()
	next.Serial++
	next.UpdatedAt = time.Now().UTC()

	if err := s.write(next); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}

	s.current = next
	return nil
}

// Snapshot returns a read-only deep copy of the current state.
func (s *FileStore) Snapshot() *ir.DeploymentState {
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

func (s *FileStore) write(ds *ir.DeploymentState) error {
	path := s.statePath(ds.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	raw, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	content, err := Encrypt(raw)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
