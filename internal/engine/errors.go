// Package engine turns a desired-state resource graph into an ordered,
// idempotent sequence of provider operations, tracking every transition in
// the state store so a re-run converges instead of repeating work.
package engine

import (
	"fmt"
	"strings"
	"time"
)

// DependencyError reports a spec naming a dependency that does not exist.
// It is fatal before any provider call is made.
type DependencyError struct {
	Resource string
	Missing  string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("resource %q depends on %q, which is not defined", e.Resource, e.Missing)
}

// CycleError reports a dependency cycle, naming the resources involved.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// IsGraphError reports whether err is a fatal graph construction error.
func IsGraphError(err error) bool {
	switch err.(type) {
	case *DependencyError, *CycleError:
		return true
	}
	return false
}

// ValidationTimeoutError reports that a resource never confirmed readiness
// before the deadline. The resource was created; only its operational
// readiness is unconfirmed, so this is reported but never fails the run.
type ValidationTimeoutError struct {
	Resource   string
	Deadline   time.Duration
	LastStatus string
}

func (e *ValidationTimeoutError) Error() string {
	return fmt.Sprintf("resource %q did not report ready within %s (last status: %s)",
		e.Resource, e.Deadline, e.LastStatus)
}
