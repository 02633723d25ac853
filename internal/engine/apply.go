package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/logging"
	"github.com/stackpilot-io/stackpilot/internal/provider"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

// RunStatus is the overall outcome of an Execute call.
type RunStatus string

const (
	RunSucceeded      RunStatus = "succeeded"
	RunPartialFailure RunStatus = "partial-failure"
)

// Outcome is the per-resource result of a run.
type Outcome struct {
	Name     string
	Action   ir.Action
	Status   ir.Status
	Attempts int
	Duration time.Duration
	Err      error
}

// RunResult aggregates per-resource outcomes. Partial failure is a valid,
// inspectable terminal state; nothing is rolled back automatically, and
// re-running apply after fixing the blocking failure converges.
type RunResult struct {
	Status   RunStatus
	Outcomes []*Outcome
}

// Failed returns the outcomes that ended Failed.
func (r *RunResult) Failed() []*Outcome {
	var out []*Outcome
	for _, o := range r.Outcomes {
		if o.Status == ir.StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Blocked returns the outcomes skipped because a dependency failed.
func (r *RunResult) Blocked() []*Outcome {
	var out []*Outcome
	for _, o := range r.Outcomes {
		if o.Status == ir.StatusBlocked {
			out = append(out, o)
		}
	}
	return out
}

// Event reports progress of a single resource during a run.
type Event struct {
	Name     string
	Action   ir.Action
	Phase    string // "started", "completed", "failed", "blocked"
	Duration time.Duration
	Err      error
}

// Callback receives an Event per resource transition if set.
type Callback func(Event)

// Execute runs a plan. Creates and updates run first in dependency order,
// deletes after in reverse dependency order; independent resources run
// concurrently under the worker limit. A resource is dispatched only after
// all of its dependencies have a Ready commit in the state store, so a
// resumed run after a crash sees the same ordering guarantee.
//
// The returned error is non-nil only for fatal conditions (state store
// failure, cancellation); resource-level failures are recorded in the
// RunResult instead.
func (e *Engine) Execute(ctx context.Context, graph *Graph, plan *ir.Plan) (*RunResult, error) {
	return e.ExecuteWithCallback(ctx, graph, plan, nil)
}

// ExecuteWithCallback is Execute with per-resource progress events.
func (e *Engine) ExecuteWithCallback(ctx context.Context, graph *Graph, plan *ir.Plan, callback Callback) (*RunResult, error) {
	run := &run{
		engine:   e,
		graph:    graph,
		working:  e.store.Snapshot(),
		outcomes: make(map[string]*Outcome),
		emit:     func(Event) {},
	}
	if run.working == nil {
		return nil, &state.StoreError{Op: "snapshot", Err: fmt.Errorf("store not loaded")}
	}
	if callback != nil {
		run.emit = callback
	}

	var creates, deletes []*ir.PlanStep
	for _, step := range plan.Steps {
		switch step.Action {
		case ir.ActionSkip:
			// A forward plan only skips committed-Ready resources; a
			// teardown plan also skips never-provisioned ones.
			status := ir.StatusDeleted
			if rs := run.working.Resources[step.Spec.Name]; rs != nil {
				status = rs.Status
			}
			run.record(&Outcome{Name: step.Spec.Name, Action: ir.ActionSkip, Status: status})
		case ir.ActionDelete:
			deletes = append(deletes, step)
		default:
			creates = append(creates, step)
		}
	}

	// Creates/updates gate on their dependencies' Ready commits.
	if err := run.dispatch(ctx, creates, forwardGates(graph, creates), run.applyStep); err != nil {
		return nil, err
	}

	// Deletes gate on their dependents' Deleted commits.
	if err := run.dispatch(ctx, deletes, reverseGates(deletes), run.deleteStep); err != nil {
		return nil, err
	}

	result := &RunResult{Status: RunSucceeded}
	for _, step := range plan.Steps {
		o, ok := run.outcomes[step.Spec.Name]
		if !ok {
			// Never dispatched: the run was cut short.
			o = &Outcome{
				Name:   step.Spec.Name,
				Action: step.Action,
				Status: ir.StatusPending,
				Err:    errors.New("not attempted"),
			}
		}
		result.Outcomes = append(result.Outcomes, o)
		if o.Action == ir.ActionSkip {
			continue
		}
		if o.Status == ir.StatusFailed || o.Status == ir.StatusBlocked || o.Status == ir.StatusPending {
			result.Status = RunPartialFailure
		}
	}
	return result, nil
}

// run carries the mutable pieces of one Execute call. The working copy of
// deployment state is exclusively owned here; each logical name is mutated
// by at most one worker at a time because the dispatcher sequences per node.
type run struct {
	engine *Engine
	graph  *Graph

	mu       sync.Mutex
	working  *ir.DeploymentState
	outcomes map[string]*Outcome
	emit     Callback
}

func (r *run) record(o *Outcome) {
	r.mu.Lock()
	r.outcomes[o.Name] = o
	r.mu.Unlock()
}

// commit persists one transition and then folds it into the working copy,
// in that order: dependents must never observe a state the store hasn't.
func (r *run) commit(ctx context.Context, rs *ir.ResourceState) error {
	rs.UpdatedAt = time.Now().UTC()
	if err := r.engine.store.Commit(ctx, rs.Name, rs); err != nil {
		return err
	}
	r.mu.Lock()
	r.working.Resources[rs.Name] = rs.Clone()
	r.mu.Unlock()
	return nil
}

// forwardGates maps each step to the dependencies it must wait for, limited
// to dependencies that themselves have pending steps. Dependencies that were
// planned Skip are already committed Ready.
func forwardGates(graph *Graph, steps []*ir.PlanStep) map[string][]string {
	pending := make(map[string]bool, len(steps))
	for _, s := range steps {
		pending[s.Spec.Name] = true
	}
	gates := make(map[string][]string, len(steps))
	for _, s := range steps {
		for _, dep := range graph.Dependencies(s.Spec.Name) {
			if pending[dep] {
				gates[s.Spec.Name] = append(gates[s.Spec.Name], dep)
			}
		}
	}
	return gates
}

// reverseGates maps each delete step to the dependent deletes that must
// finish first, derived from the steps' own dependency lists so it works for
// graph-driven teardowns and state-only orphans alike.
func reverseGates(steps []*ir.PlanStep) map[string][]string {
	pending := make(map[string]bool, len(steps))
	for _, s := range steps {
		pending[s.Spec.Name] = true
	}
	gates := make(map[string][]string, len(steps))
	for _, s := range steps {
		for _, dep := range s.Spec.DependsOn {
			if pending[dep] {
				gates[dep] = append(gates[dep], s.Spec.Name)
			}
		}
	}
	return gates
}

// dispatch executes steps concurrently under the worker limit. A step runs
// only after every gate name has completed; if a gate fails, the step is
// marked Blocked, committed as such, and its own dependents unwind the same
// way. Unrelated branches keep going. Fatal errors (state store, cancel)
// stop scheduling but let in-flight provider calls finish.
func (r *run) dispatch(ctx context.Context, steps []*ir.PlanStep, gates map[string][]string, apply func(context.Context, *ir.PlanStep) error) error {
	if len(steps) == 0 {
		return nil
	}

	var (
		seqMu  sync.Mutex
		cond   = sync.NewCond(&seqMu)
		done   = make(map[string]bool)
		failed = make(map[string]bool)
		fatal  error
	)

	sem := make(chan struct{}, r.engine.opts.Workers)
	var wg sync.WaitGroup

	for _, step := range steps {
		wg.Add(1)
		go func(step *ir.PlanStep) {
			defer wg.Done()
			name := step.Spec.Name

			seqMu.Lock()
			for {
				if fatal != nil {
					seqMu.Unlock()
					return
				}
				blockedBy := ""
				waiting := false
				for _, gate := range gates[name] {
					if failed[gate] {
						blockedBy = gate
						break
					}
					if !done[gate] {
						waiting = true
					}
				}
				if blockedBy != "" {
					failed[name] = true
					seqMu.Unlock()
					if err := r.markBlocked(ctx, step, blockedBy); err != nil {
						seqMu.Lock()
						if fatal == nil {
							fatal = err
						}
						seqMu.Unlock()
					}
					cond.Broadcast()
					return
				}
				if !waiting {
					break
				}
				cond.Wait()
			}
			seqMu.Unlock()

			if err := ctx.Err(); err != nil {
				seqMu.Lock()
				if fatal == nil {
					fatal = fmt.Errorf("run cancelled: %w", err)
				}
				seqMu.Unlock()
				cond.Broadcast()
				return
			}

			sem <- struct{}{}
			err := apply(ctx, step)
			<-sem

			seqMu.Lock()
			if err != nil {
				var se *state.StoreError
				if errors.As(err, &se) && fatal == nil {
					fatal = err
				}
				failed[name] = true
			} else {
				done[name] = true
			}
			seqMu.Unlock()
			cond.Broadcast()
		}(step)
	}

	wg.Wait()

	return fatal
}

// markBlocked records and commits a dependency-failure skip so it is never
// silently omitted from state or the run report. A commit failure here is as
// fatal as on any other transition.
func (r *run) markBlocked(ctx context.Context, step *ir.PlanStep, failedDep string) error {
	name := step.Spec.Name
	reason := fmt.Sprintf("dependency %q failed", failedDep)

	r.mu.Lock()
	rs := r.working.Resources[name].Clone()
	r.mu.Unlock()
	if rs == nil {
		rs = &ir.ResourceState{Name: name, Kind: step.Spec.Kind}
	}
	rs.Status = ir.StatusBlocked
	rs.LastError = reason

	r.record(&Outcome{Name: name, Action: step.Action, Status: ir.StatusBlocked, Err: errors.New(reason)})
	r.emit(Event{Name: name, Action: step.Action, Phase: "blocked", Err: errors.New(reason)})

	if err := r.commit(ctx, rs); err != nil {
		logging.Error("failed to commit blocked state", "resource", name, "error", err)
		return err
	}
	return nil
}

// applyStep creates or updates one resource, committing every transition.
func (r *run) applyStep(ctx context.Context, step *ir.PlanStep) error {
	name := step.Spec.Name
	spec := step.Spec
	start := time.Now()
	r.emit(Event{Name: name, Action: step.Action, Phase: "started"})
	logging.Debug("applying resource", "resource", name, "kind", spec.Kind, "action", step.Action)

	r.mu.Lock()
	rs := r.working.Resources[name].Clone()
	params := resolveRefs(spec.Params, r.working)
	r.mu.Unlock()

	if rs == nil {
		rs = &ir.ResourceState{Name: name, Kind: spec.Kind}
	}
	rs.Status = ir.StatusCreating
	rs.Dependencies = append([]string(nil), spec.DependsOn...)
	if err := r.commit(ctx, rs); err != nil {
		return err
	}

	// In-flight provider calls finish on their own deadline even if the run
	// is cancelled; killing them mid-call could leave the provider side in
	// an unknown state.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.engine.opts.Timeout)
	defer cancel()

	pmap, ok := params.(map[string]any)
	if !ok {
		pmap = spec.Params
	}

	var (
		providerID = rs.ProviderID
		attrs      = rs.Attrs
	)
	attempts, err := RetryWithBackoff(opCtx, r.engine.opts.Retry, func() error {
		if providerID == "" {
			res, createErr := r.engine.provider.Create(opCtx, spec.Kind, pmap)
			if createErr != nil {
				return createErr
			}
			providerID = res.ID
			attrs = res.Attrs
			return nil
		}
		_, updateErr := r.engine.provider.Update(opCtx, providerID, spec.Kind, pmap)
		return updateErr
	}, provider.IsTransient)

	rs.Attempts = attempts
	if err != nil {
		rs.Status = ir.StatusFailed
		rs.LastError = err.Error()
		// Keep any provider id we got before the failure so a re-run can
		// resume with an update instead of leaking the resource.
		rs.ProviderID = providerID
		if commitErr := r.commit(ctx, rs); commitErr != nil {
			return commitErr
		}
		r.record(&Outcome{Name: name, Action: step.Action, Status: ir.StatusFailed, Attempts: attempts, Duration: time.Since(start), Err: err})
		r.emit(Event{Name: name, Action: step.Action, Phase: "failed", Duration: time.Since(start), Err: err})
		return err
	}

	rs.Status = ir.StatusReady
	rs.ProviderID = providerID
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs["id"] = providerID
	rs.Attrs = attrs
	rs.SpecHash = spec.Hash()
	rs.LastError = ""
	if err := r.commit(ctx, rs); err != nil {
		return err
	}

	r.record(&Outcome{Name: name, Action: step.Action, Status: ir.StatusReady, Attempts: attempts, Duration: time.Since(start)})
	r.emit(Event{Name: name, Action: step.Action, Phase: "completed", Duration: time.Since(start)})
	return nil
}

// deleteStep deletes one resource, committing Deleting and Deleted states.
func (r *run) deleteStep(ctx context.Context, step *ir.PlanStep) error {
	name := step.Spec.Name
	start := time.Now()
	r.emit(Event{Name: name, Action: ir.ActionDelete, Phase: "started"})
	logging.Debug("deleting resource", "resource", name)

	r.mu.Lock()
	rs := r.working.Resources[name].Clone()
	r.mu.Unlock()

	if rs == nil || rs.ProviderID == "" || rs.Status == ir.StatusDeleted {
		if rs == nil {
			rs = &ir.ResourceState{Name: name, Kind: step.Spec.Kind}
		}
		rs.Status = ir.StatusDeleted
		if err := r.commit(ctx, rs); err != nil {
			return err
		}
		r.record(&Outcome{Name: name, Action: ir.ActionDelete, Status: ir.StatusDeleted})
		r.emit(Event{Name: name, Action: ir.ActionDelete, Phase: "completed"})
		return nil
	}

	rs.Status = ir.StatusDeleting
	if err := r.commit(ctx, rs); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.engine.opts.Timeout)
	defer cancel()

	attempts, err := RetryWithBackoff(opCtx, r.engine.opts.Retry, func() error {
		_, deleteErr := r.engine.provider.Delete(opCtx, rs.ProviderID, rs.Kind)
		return deleteErr
	}, provider.IsTransient)

	rs.Attempts = attempts
	if err != nil {
		rs.Status = ir.StatusFailed
		rs.LastError = err.Error()
		if commitErr := r.commit(ctx, rs); commitErr != nil {
			return commitErr
		}
		r.record(&Outcome{Name: name, Action: ir.ActionDelete, Status: ir.StatusFailed, Attempts: attempts, Duration: time.Since(start), Err: err})
		r.emit(Event{Name: name, Action: ir.ActionDelete, Phase: "failed", Duration: time.Since(start), Err: err})
		return err
	}

	rs.Status = ir.StatusDeleted
	rs.LastError = ""
	if err := r.commit(ctx, rs); err != nil {
		return err
	}

	r.record(&Outcome{Name: name, Action: ir.ActionDelete, Status: ir.StatusDeleted, Attempts: attempts, Duration: time.Since(start)})
	r.emit(Event{Name: name, Action: ir.ActionDelete, Phase: "completed", Duration: time.Since(start)})
	return nil
}

// resolveRefs substitutes "ref://<name>/<attr>" strings in params with the
// referenced resource's committed attributes. Unresolvable references pass
// through unchanged so the provider can reject them with a concrete error.
func resolveRefs(val any, ds *ir.DeploymentState) any {
	switch v := val.(type) {
	case string:
		if !strings.HasPrefix(v, "ref://") {
			return v
		}
		parts := strings.SplitN(strings.TrimPrefix(v, "ref://"), "/", 2)
		if len(parts) != 2 {
			return v
		}
		rs, ok := ds.Resources[parts[0]]
		if !ok || rs.Attrs == nil {
			return v
		}
		if resolved, ok := rs.Attrs[parts[1]]; ok {
			return resolved
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = resolveRefs(inner, ds)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = resolveRefs(inner, ds)
		}
		return out
	default:
		return v
	}
}
