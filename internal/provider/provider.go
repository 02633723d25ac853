// Package provider defines the contract between the execution engine and a
// cloud provider plugin, plus the registry that manages provider lifecycles.
package provider

import (
	"context"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// Status is the provider-observed condition of a resource.
type Status string

const (
	// StatusProvisioning means the resource exists but is still converging.
	StatusProvisioning Status = "provisioning"
	// StatusReady means the kind-specific readiness condition holds.
	StatusReady Status = "ready"
	// StatusDegraded means the resource exists but reports an unhealthy check.
	StatusDegraded Status = "degraded"
	// StatusGone means the provider no longer knows the resource.
	StatusGone Status = "gone"
)

// CreateResult carries the provider-assigned identity of a new resource.
type CreateResult struct {
	ID     string
	Status Status
	// Attrs are provider-returned attributes (ids, addresses, ARNs) that
	// dependents may reference.
	Attrs map[string]any
}

// Provider is the collaborator the engine drives. Implementations map
// resource kinds onto one cloud's API. All calls must honor ctx cancellation;
// they are the only operations allowed to block an engine worker.
type Provider interface {
	Create(ctx context.Context, kind ir.Kind, params map[string]any) (*CreateResult, error)
	Update(ctx context.Context, id string, kind ir.Kind, params map[string]any) (Status, error)
	Describe(ctx context.Context, id string, kind ir.Kind) (Status, error)
	Delete(ctx context.Context, id string, kind ir.Kind) (Status, error)
}
