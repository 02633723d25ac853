package engine

import (
	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// PlanTeardown computes the deletion plan for a deployment: Delete actions
// in reverse topological order so no resource is deleted before the
// resources depending on it, and Skip for anything already Deleted or never
// provisioned. Execution goes through the same Execute path as forward
// applies; a delete failure blocks deletion of that node's dependencies
// while unrelated branches proceed independently.
func (e *Engine) PlanTeardown(graph *Graph, current *ir.DeploymentState) *ir.Plan {
	plan := &ir.Plan{}

	for _, name := range graph.DeletionOrder() {
		spec := graph.Spec(name)
		rs := current.Resources[name]

		if rs == nil || rs.Status == ir.StatusDeleted || rs.ProviderID == "" {
			plan.Add(&ir.PlanStep{Spec: spec, Action: ir.ActionSkip, Reason: "nothing provisioned"})
			continue
		}
		plan.Add(&ir.PlanStep{Spec: spec, Action: ir.ActionDelete})
	}

	// Resources only the state knows about get torn down too, ordered by
	// their recorded dependencies.
	for _, name := range orphanDeletionOrder(graph, current) {
		rs := current.Resources[name]
		plan.Add(&ir.PlanStep{
			Spec:   &ir.ResourceSpec{Name: name, Kind: rs.Kind, DependsOn: rs.Dependencies},
			Action: ir.ActionDelete,
			Reason: "tracked in state only",
		})
	}

	return plan
}
