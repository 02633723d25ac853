package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/eval"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

var (
	deployAutoApprove    bool
	deployProperties     map[string]string
	deploySkipValidation bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy [path]",
	Short: "Deploy a manifest",
	Long: `Builds the resource graph from the manifest, diffs it against recorded
state, and applies the resulting plan. After a successful apply every
created resource is polled until it reports ready.

Resources whose dependencies failed are recorded as blocked and skipped;
re-running deploy after fixing the cause picks up where the last run
stopped.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployAutoApprove, "auto-approve", false, "Skip interactive approval of the plan")
	deployCmd.Flags().StringToStringVarP(&deployProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	deployCmd.Flags().BoolVar(&deploySkipValidation, "skip-validation", false, "Skip post-deploy readiness polling")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return fatalConfig(err)
	}
	ctx := cmd.Context()

	fmt.Print("Loading manifest... ")
	evaluator := eval.NewEvaluator(wd)
	manifest, err := evaluator.LoadManifest(ctx, entryPoint, deployProperties)
	if err != nil {
		fmt.Println("FAILED")
		return fatalConfig(fmt.Errorf("failed to load manifest: %w", err))
	}
	fmt.Println("OK")

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

	plan := eng.Plan(graph, current)
	if !plan.Changes() {
		fmt.Println("No changes. Deployment is up-to-date.")
		return nil
	}

	fmt.Println("\nStackpilot will perform the following actions:")
	renderPlanSteps(plan)
	renderPlanSummary(plan)

	if !deployAutoApprove {
		if !confirm("Do you want to perform these actions?") {
			fmt.Println("Deploy cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d changes...\n",
		plan.Summary.Create+plan.Summary.Update+plan.Summary.Delete)

	result, err := eng.ExecuteWithCallback(ctx, graph, plan, progressCallback)
	if err != nil {
		return fmt.Errorf("deploy aborted: %w", err)
	}

	code := renderRunResult(result)

	if !deploySkipValidation && result.Status == engine.RunSucceeded {
		fmt.Println("\nValidating readiness...")
		timeouts := eng.VerifyAll(ctx, store.Snapshot())
		if len(timeouts) == 0 {
			fmt.Println("All resources ready.")
		}
		// Readiness timeouts are reported but never fail the deploy; the
		// resources exist and may simply be slow to come up.
		for _, te := range timeouts {
			fmt.Printf("\033[33m  warning: %v\033[0m\n", te)
		}
	}

	if code != ExitOK {
		return &exitError{code: code}
	}
	return nil
}
