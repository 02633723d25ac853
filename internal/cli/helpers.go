package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/provider"
	awsprovider "github.com/stackpilot-io/stackpilot/providers/aws"
	nullprovider "github.com/stackpilot-io/stackpilot/providers/null"
)

const defaultEntryPoint = "main.pkl"

// resolveWorkdir maps an optional path argument to a project directory and
// manifest entry point. A directory argument keeps the default entry point;
// a file argument splits into its directory and base name.
func resolveWorkdir(args []string) (string, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	entryPoint := defaultEntryPoint

	if len(args) > 0 {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
		}
		if info.IsDir() {
			wd = absPath
		} else {
			wd = filepath.Dir(absPath)
			entryPoint = filepath.Base(absPath)
		}
	}
	return wd, entryPoint, nil
}

// newRegistry returns a registry with the built-in providers registered.
func newRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register("aws", awsprovider.Factory)
	registry.Register("null", nullprovider.Factory)
	return registry
}

// loadProvider resolves the manifest's provider through the registry.
func loadProvider(m *ir.Manifest) (provider.Provider, error) {
	name := m.Provider
	if name == "" {
		name = "aws"
	}
	options := map[string]string{}
	if m.Region != "" {
		options["region"] = m.Region
	}

	registry := newRegistry()
	if err := registry.Load(name, options); err != nil {
		return nil, fmt.Errorf("failed to load provider %s: %w", name, err)
	}
	return registry.Get(name)
}

// engineOptions builds run options from the manifest, leaving zero values
// for the engine defaults to fill.
func engineOptions(m *ir.Manifest) (engine.Options, error) {
	opts := engine.Options{Workers: m.Workers}

	if m.Retry != nil {
		policy := engine.DefaultRetryPolicy()
		if m.Retry.MaxAttempts > 0 {
			policy.MaxAttempts = m.Retry.MaxAttempts
		}
		if m.Retry.BaseDelay != "" {
			d, err := time.ParseDuration(m.Retry.BaseDelay)
			if err != nil {
				return opts, fmt.Errorf("invalid retry.baseDelay: %w", err)
			}
			policy.BaseDelay = d
		}
		if m.Retry.MaxDelay != "" {
			d, err := time.ParseDuration(m.Retry.MaxDelay)
			if err != nil {
				return opts, fmt.Errorf("invalid retry.maxDelay: %w", err)
			}
			policy.MaxDelay = d
		}
		opts.Retry = policy
	}

	if m.Validation != nil {
		policy := engine.DefaultReadinessPolicy()
		if m.Validation.Interval != "" {
			d, err := time.ParseDuration(m.Validation.Interval)
			if err != nil {
				return opts, fmt.Errorf("invalid validation.interval: %w", err)
			}
			policy.Interval = d
		}
		if m.Validation.Deadline != "" {
			d, err := time.ParseDuration(m.Validation.Deadline)
			if err != nil {
				return opts, fmt.Errorf("invalid validation.deadline: %w", err)
			}
			policy.Deadline = d
		}
		opts.Readiness = policy
	}

	return opts, nil
}

// stateDir is where the local backend keeps deployment state.
func stateDir(wd string) string {
	return filepath.Join(wd, ".stackpilot")
}

func actionSymbol(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "+"
	case ir.ActionUpdate:
		return "~"
	case ir.ActionDelete:
		return "-"
	default:
		return " "
	}
}

func actionColor(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "\033[32m"
	case ir.ActionUpdate:
		return "\033[33m"
	case ir.ActionDelete:
		return "\033[31m"
	default:
		return "\033[0m"
	}
}

// renderPlanSteps prints the change list of a plan, skips omitted.
func renderPlanSteps(plan *ir.Plan) {
	for _, step := range plan.Steps {
		if step.Action == ir.ActionSkip {
			continue
		}
		color := actionColor(step.Action)
		fmt.Printf("%s  %s %s.%s", color, actionSymbol(step.Action), step.Spec.Kind, step.Spec.Name)
		if step.Reason != "" {
			fmt.Printf("  (%s)", step.Reason)
		}
		fmt.Println("\033[0m")
	}
}

// renderPlanSummary prints the plan summary counts.
func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create: %d\n", plan.Summary.Create)
	fmt.Printf("  Update: %d\n", plan.Summary.Update)
	fmt.Printf("  Skip:   %d\n", plan.Summary.Skip)
	fmt.Printf("  Delete: %d\n", plan.Summary.Delete)
}

// progressCallback prints one line per resource lifecycle event.
func progressCallback(ev engine.Event) {
	switch ev.Phase {
	case "started":
		fmt.Printf("  %s.%s: %s...\n", ev.Action, ev.Name, ev.Phase)
	case "completed":
		fmt.Printf("  %s.%s: done (%s)\n", ev.Action, ev.Name, ev.Duration.Round(time.Millisecond))
	case "failed":
		fmt.Printf("\033[31m  %s.%s: failed: %v\033[0m\n", ev.Action, ev.Name, ev.Err)
	case "blocked":
		fmt.Printf("\033[33m  %s.%s: blocked: %v\033[0m\n", ev.Action, ev.Name, ev.Err)
	}
}

// renderRunResult prints the final per-resource outcomes and returns the
// exit code the run maps to.
func renderRunResult(result *engine.RunResult) int {
	failed := result.Failed()
	blocked := result.Blocked()

	if result.Status == engine.RunSucceeded {
		fmt.Println("\nDeployment complete.")
		return ExitOK
	}

	fmt.Printf("\nDeployment finished with %d failed and %d blocked resources:\n",
		len(failed), len(blocked))
	for _, o := range failed {
		fmt.Printf("\033[31m  failed:  %s: %v\033[0m\n", o.Name, o.Err)
	}
	for _, o := range blocked {
		fmt.Printf("\033[33m  blocked: %s: %v\033[0m\n", o.Name, o.Err)
	}
	fmt.Println("\nFix the cause and re-run; completed resources will not be touched.")
	return ExitPartialFailure
}

func confirm(prompt string) bool {
	fmt.Printf("\n%s (y/n): ", prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}
