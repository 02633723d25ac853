package engine

import (
	"context"
	"sort"
	"time"

	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/logging"
	"github.com/stackpilot-io/stackpilot/internal/provider"
)

// ReadinessPolicy bounds the post-apply readiness poll loop.
type ReadinessPolicy struct {
	Interval time.Duration
	Deadline time.Duration
}

// DefaultReadinessPolicy returns the polling policy used when the manifest
// sets none.
func DefaultReadinessPolicy() *ReadinessPolicy {
	return &ReadinessPolicy{
		Interval: 10 * time.Second,
		Deadline: 5 * time.Minute,
	}
}

// Verify polls the provider until the resource reports ready or the policy
// deadline elapses. A timeout returns *ValidationTimeoutError: the resource
// exists and stays Ready in state; only its operational readiness is
// unconfirmed.
func (e *Engine) Verify(ctx context.Context, rs *ir.ResourceState) error {
	policy := e.opts.Readiness

	deadline := time.NewTimer(policy.Deadline)
	defer deadline.Stop()
	tick := time.NewTicker(policy.Interval)
	defer tick.Stop()

	lastStatus := "unknown"
	for {
		status, err := e.provider.Describe(ctx, rs.ProviderID, rs.Kind)
		if err == nil && status == provider.StatusReady {
			return nil
		}
		if err != nil {
			// Describe failures are treated like a not-ready poll; the
			// deadline bounds how long we keep asking.
			logging.Debug("describe failed during verification", "resource", rs.Name, "error", err)
			lastStatus = err.Error()
		} else {
			lastStatus = string(status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &ValidationTimeoutError{
				Resource:   rs.Name,
				Deadline:   policy.Deadline,
				LastStatus: lastStatus,
			}
		case <-tick.C:
		}
	}
}

// VerifyAll verifies every Ready resource in the snapshot and returns the
// per-resource timeout errors. Timeouts are reported, never fatal.
func (e *Engine) VerifyAll(ctx context.Context, ds *ir.DeploymentState) []*ValidationTimeoutError {
	var timeouts []*ValidationTimeoutError
	for _, name := range sortedNames(ds) {
		rs := ds.Resources[name]
		if rs.Status != ir.StatusReady || rs.ProviderID == "" {
			continue
		}
		if err := e.Verify(ctx, rs); err != nil {
			vte, ok := err.(*ValidationTimeoutError)
			if !ok {
				// Cancellation; stop polling the rest.
				return timeouts
			}
			logging.Warn("resource readiness unconfirmed", "resource", rs.Name, "error", vte)
			timeouts = append(timeouts, vte)
		}
	}
	return timeouts
}

func sortedNames(ds *ir.DeploymentState) []string {
	names := make([]string, 0, len(ds.Resources))
	for name := range ds.Resources {
		names = append(names, name)
	}
	// Stable report order.
	sort.Strings(names)
	return names
}
