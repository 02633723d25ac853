package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/eval"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate the current deployment's readiness",
	Long: `Polls every ready resource in the recorded state until it confirms
readiness with the provider or the deadline passes. The manifest is only
read for its deployment name, backend, and polling configuration.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	store, err := state.Open(manifest.Backend, stateDir(wd))
	if err != nil {
		return fatalConfig(err)
	}
	current, err := store.Load(ctx, manifest.Deployment)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if len(current.Resources) == 0 {
		fmt.Println("Nothing deployed; nothing to validate.")
		return nil
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

	fmt.Printf("Validating %d resources...\n", len(current.Resources))
	timeouts := eng.VerifyAll(ctx, current)
	if len(timeouts) == 0 {
		fmt.Println("All resources ready.")
		return nil
	}

	for _, te := range timeouts {
		fmt.Printf("\033[33m  not ready: %v\033[0m\n", te)
	}
	return &exitError{code: ExitPartialFailure}
}
