package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/eval"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

var cleanupAutoApprove bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [path]",
	Short: "Tear down all deployed resources",
	Long: `Deletes every resource tracked in the deployment state, in reverse
dependency order. Resources the state never recorded as provisioned are
skipped. The state records each deletion as it commits, so an interrupted
cleanup can be resumed by running it again.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupAutoApprove, "auto-approve", false, "Skip interactive approval")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return fatalConfig(err)
	}
	ctx := cmd.Context()

	evaluator := eval.NewEvaluator(wd)
	manifest, err := evaluator.LoadManifest(ctx, entryPoint, nil)
	if err != nil {
		return fatalConfig(fmt.Errorf("failed to load manifest: %w", err))
	}

	specs := engine.ExpandSpecs(manifest.Resources)
	graph, err := engine.BuildGraph(specs)
	if err != nil {
		return fatalConfig(err)
	}

	store, err := state.Open(manifest.Backend, stateDir(wd))
	if err != nil {
		return fatalConfig(err)
	}
	if err := store.Lock(manifest.Deployment); err != nil {
		return err
	}
	defer store.Unlock(manifest.Deployment)

	current, err := store.Load(ctx, manifest.Deployment)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	prov, err := loadProvider(manifest)
	if err != nil {
		return fatalConfig(err)
	}
	opts, err := engineOptions(manifest)
	if err != nil {
		return fatalConfig(err)
	}
	eng := engine.New(prov, store, opts)

	plan := eng.PlanTeardown(graph, current)
	if !plan.Changes() {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	fmt.Println("Stackpilot will delete the following resources:")
	renderPlanSteps(plan)
	renderPlanSummary(plan)

	if !cleanupAutoApprove {
		if !confirm("Do you really want to delete these resources?") {
			fmt.Println("Cleanup cancelled.")
			return nil
		}
	}

	fmt.Printf("\nDeleting %d resources...\n", plan.Summary.Delete)

	result, err := eng.ExecuteWithCallback(ctx, graph, plan, progressCallback)
	if err != nil {
		return fmt.Errorf("cleanup aborted: %w", err)
	}

	if result.Status == engine.RunSucceeded {
		fmt.Println("\nCleanup complete. All resources deleted.")
		return nil
	}
	code := renderRunResult(result)
	return &exitError{code: code}
}
