package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/logging"
	"github.com/stackpilot-io/stackpilot/internal/provider"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

const defaultWorkers = 10

// Options configure a run explicitly; nothing is read from the process
// environment.
type Options struct {
	// Workers bounds concurrent provider calls, to respect rate limits.
	Workers int
	// Retry governs transient-error retries on provider calls.
	Retry *RetryPolicy
	// Readiness governs post-apply verification polling.
	Readiness *ReadinessPolicy
	// Timeout is the per-resource operation deadline.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Retry == nil {
		o.Retry = DefaultRetryPolicy()
	}
	if o.Readiness == nil {
		o.Readiness = DefaultReadinessPolicy()
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Engine orchestrates resource lifecycles against one provider, recording
// every transition in the state store.
type Engine struct {
	provider provider.Provider
	store    state.Store
	opts     Options
}

func New(p provider.Provider, store state.Store, opts Options) *Engine {
	return &Engine{
		provider: p,
		store:    store,
		opts:     opts.withDefaults(),
	}
}

// Plan diffs the desired graph against the current deployment state and
// returns the ordered sequence of actions a run would take. Pure: no
// provider calls, no state mutation.
//
// A resource whose stored hash matches its spec and whose status is Ready is
// skipped entirely, which is what makes re-applying an unchanged manifest
// free. Resources present in state but absent from the graph become deletes,
// ordered so dependents go before their dependencies.
func (e *Engine) Plan(graph *Graph, current *ir.DeploymentState) *ir.Plan {
	logging.Debug("computing plan",
		"desired", len(graph.CreationOrder()),
		"state", len(current.Resources))

	steps := make(map[string]*ir.PlanStep, len(graph.CreationOrder()))
	for _, name := range graph.CreationOrder() {
		spec := graph.Spec(name)
		rs := current.Resources[name]

		switch {
		case rs == nil || rs.ProviderID == "":
			steps[name] = &ir.PlanStep{Spec: spec, Action: ir.ActionCreate, Reason: "not yet provisioned"}
		case rs.SpecHash != spec.Hash():
			steps[name] = &ir.PlanStep{Spec: spec, Action: ir.ActionUpdate, Reason: "specification changed"}
		case rs.Status == ir.StatusReady:
			steps[name] = &ir.PlanStep{Spec: spec, Action: ir.ActionSkip, Reason: "unchanged"}
		default:
			// Same spec, but the last run never got it to Ready.
			steps[name] = &ir.PlanStep{Spec: spec, Action: ir.ActionUpdate, Reason: "previous apply incomplete"}
		}
	}

	// Applying a resource can change the attributes its dependents resolved
	// their ref:// inputs from, so any dependent reading those attributes
	// re-applies as well. Creation order puts dependencies first, which lets
	// upgrades cascade down chains of references.
	for _, name := range graph.CreationOrder() {
		step := steps[name]
		if step.Action != ir.ActionCreate && step.Action != ir.ActionUpdate {
			continue
		}
		for _, dep := range graph.TransitiveDependents(name) {
			ds := steps[dep]
			if ds.Action == ir.ActionSkip && refersTo(graph.Spec(dep).Params, name) {
				ds.Action = ir.ActionUpdate
				ds.Reason = fmt.Sprintf("inputs reference %q", name)
			}
		}
	}

	plan := &ir.Plan{}
	for _, name := range graph.CreationOrder() {
		plan.Add(steps[name])
	}

	// Resources tracked in state but no longer desired.
	for _, name := range orphanDeletionOrder(graph, current) {
		rs := current.Resources[name]
		plan.Add(&ir.PlanStep{
			Spec:   &ir.ResourceSpec{Name: name, Kind: rs.Kind, DependsOn: rs.Dependencies},
			Action: ir.ActionDelete,
			Reason: "no longer in specification",
		})
	}

	return plan
}

// refersTo reports whether any string in params points into the named
// resource's attributes via a ref:// reference.
func refersTo(params map[string]any, name string) bool {
	prefix := "ref://" + name + "/"
	var walk func(v any) bool
	walk = func(v any) bool {
		switch t := v.(type) {
		case string:
			return strings.HasPrefix(t, prefix)
		case map[string]any:
			for _, elem := range t {
				if walk(elem) {
					return true
				}
			}
		case []any:
			for _, elem := range t {
				if walk(elem) {
					return true
				}
			}
		}
		return false
	}
	return walk(params)
}

// orphanDeletionOrder orders state-only resources so that recorded
// dependents delete before their dependencies.
func orphanDeletionOrder(graph *Graph, current *ir.DeploymentState) []string {
	var orphans []string
	for name, rs := range current.Resources {
		if graph.Spec(name) == nil && rs.Status != ir.StatusDeleted {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)

	orphanSet := make(map[string]bool, len(orphans))
	for _, name := range orphans {
		orphanSet[name] = true
	}

	// Topological sort over recorded dependencies, then reversed.
	visited := make(map[string]bool)
	var ordered []string
	var visit func(string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range current.Resources[name].Dependencies {
			if orphanSet[dep] {
				visit(dep)
			}
		}
		ordered = append(ordered, name)
	}
	for _, name := range orphans {
		visit(name)
	}

	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}
