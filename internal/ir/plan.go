package ir

// Action is the operation a plan step performs against the provider.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
	ActionDelete Action = "delete"
)

// PlanStep pairs a resource with the action the engine will take for it.
type PlanStep struct {
	Spec   *ResourceSpec `json:"spec"`
	Action Action        `json:"action"`
	Reason string        `json:"reason,omitempty"`
}

// Plan is the ordered sequence of steps computed by diffing the desired
// graph against the current deployment state. Steps appear in dependency
// order for creates/updates and reverse dependency order for deletes.
type Plan struct {
	Steps   []*PlanStep `json:"steps"`
	Summary PlanSummary `json:"summary"`
}

type PlanSummary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Skip   int `json:"skip"`
	Delete int `json:"delete"`
}

// Changes reports whether the plan contains any step other than Skip.
func (p *Plan) Changes() bool {
	return p.Summary.Create+p.Summary.Update+p.Summary.Delete > 0
}

// Add appends a step and bumps the matching summary counter.
func (p *Plan) Add(step *PlanStep) {
	p.Steps = append(p.Steps, step)
	switch step.Action {
	case ActionCreate:
		p.Summary.Create++
	case ActionUpdate:
		p.Summary.Update++
	case ActionSkip:
		p.Summary.Skip++
	case ActionDelete:
		p.Summary.Delete++
	}
}
