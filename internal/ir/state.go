package ir

import "time"

// Status is the lifecycle state of a single resource.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCreating Status = "creating"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
	// StatusBlocked marks a resource that was never attempted because a
	// direct or transitive dependency failed.
	StatusBlocked  Status = "blocked"
	StatusDeleting Status = "deleting"
	StatusDeleted  Status = "deleted"
)

// ResourceState is the durable record of one provisioned resource.
type ResourceState struct {
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	ProviderID string         `json:"providerId,omitempty"`
	Status     Status         `json:"status"`
	SpecHash   string         `json:"specHash,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	// Dependencies records the logical names this resource depended on at
	// apply time, so teardown can order deletions from state alone.
	Dependencies []string  `json:"dependencies,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	Attempts     int       `json:"attempts,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so snapshots never alias engine-owned state.
func (r *ResourceState) Clone() *ResourceState {
	if r == nil {
		return nil
	}
	c := *r
	if r.Dependencies != nil {
		c.Dependencies = append([]string(nil), r.Dependencies...)
	}
	if r.Attrs != nil {
		c.Attrs = make(map[string]any, len(r.Attrs))
		for k, v := range r.Attrs {
			c.Attrs[k] = v
		}
	}
	return &c
}

// DeploymentState maps logical names to resource states for one deployment.
type DeploymentState struct {
	ID        string                    `json:"id"`
	Serial    int                       `json:"serial"`
	Lineage   string                    `json:"lineage"`
	Resources map[string]*ResourceState `json:"resources"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// NewDeploymentState returns an empty state for a first deployment.
func NewDeploymentState(id string) *DeploymentState {
	return &DeploymentState{
		ID:        id,
		Resources: make(map[string]*ResourceState),
	}
}

// Clone returns a deep copy of the deployment state.
func (d *DeploymentState) Clone() *DeploymentState {
	c := &DeploymentState{
		ID:        d.ID,
		Serial:    d.Serial,
		Lineage:   d.Lineage,
		UpdatedAt: d.UpdatedAt,
		Resources: make(map[string]*ResourceState, len(d.Resources)),
	}
	for name, rs := range d.Resources {
		c.Resources[name] = rs.Clone()
	}
	return c
}
