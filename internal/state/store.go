// Package state persists deployment state durably across runs. The engine's
// idempotency decisions are only as good as the last committed transition,
// so every Commit must land on stable storage before dependents proceed.
package state

import (
	"context"
	"fmt"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// Store is the durable record of previously provisioned resources for one
// deployment. Implementations hold the authoritative in-memory copy after
// Load; Commit persists a single resource transition atomically.
type Store interface {
	// Load reads the deployment state, returning an empty state when none
	// exists yet (first deployment).
	Load(ctx context.Context, deploymentID string) (*ir.DeploymentState, error)

	// Commit durably persists one resource's state transition. The most
	// recent commit for a logical name wins.
	Commit(ctx context.Context, name string, rs *ir.ResourceState) error

	// Snapshot returns a read-only deep copy for diffing.
	Snapshot() *ir.DeploymentState

	// Lock acquires an exclusive lock scoped to one deployment. Other
	// deployments sharing the same backend are unaffected.
	Lock(deploymentID string) error

	// Unlock releases the deployment's lock.
	Unlock(deploymentID string) error
}

// StoreError wraps a persistence failure. It is fatal for the run: carrying
// on after a failed commit would base idempotency decisions on stale data.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("state store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Open builds a store from backend configuration. A nil config selects the
// local backend rooted at dir.
func Open(cfg *ir.BackendConfig, dir string) (Store, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "local" {
		return NewFileStore(dir), nil
	}

	switch cfg.Type {
	case "s3":
		return newS3Store(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown state backend type: %s", cfg.Type)
	}
}
