package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/eval"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

var planProperties map[string]string

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Show what deploy would change",
	Long: `Computes the plan by diffing the manifest's resource graph against
recorded state, without touching the provider. Resources whose recorded
specification hash matches and that are ready are skipped.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringToStringVarP(&planProperties, "prop", "D", nil, "Set external properties (format: key=value)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return fatalConfig(err)
	}
	ctx := cmd.Context()

	evaluator := eval.NewEvaluator(wd)
	manifest, err := evaluator.LoadManifest(ctx, entryPoint, planProperties)
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

	fmt.Println("Stackpilot would perform the following actions:")
	renderPlanSteps(plan)
	renderPlanSummary(plan)
	return nil
}
