package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stackpilot-io/stackpilot/internal/eval"
	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect recorded deployment state",
}

var stateListCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List resources tracked in state",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <resource> [path]",
	Short: "Show one resource's recorded state as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStateShow,
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
}

func loadCurrentState(cmd *cobra.Command, args []string) (*ir.DeploymentState, error) {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return nil, fatalConfig(err)
	}

	evaluator := eval.NewEvaluator(wd)
	manifest, err := evaluator.LoadManifest(cmd.Context(), entryPoint, nil)
	if err != nil {
		return nil, fatalConfig(fmt.Errorf("failed to load manifest: %w", err))
	}

	store, err := state.Open(manifest.Backend, stateDir(wd))
	if err != nil {
		return nil, fatalConfig(err)
	}
	return store.Load(cmd.Context(), manifest.Deployment)
}

func runStateList(cmd *cobra.Command, args []string) error {
	current, err := loadCurrentState(cmd, args)
	if err != nil {
		return err
	}
	if len(current.Resources) == 0 {
		fmt.Println("State is empty.")
		return nil
	}

	names := make([]string, 0, len(current.Resources))
	for name := range current.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSTATUS\tPROVIDER ID\tUPDATED")
	for _, name := range names {
		rs := current.Resources[name]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rs.Name, rs.Kind, rs.Status, rs.ProviderID,
			rs.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runStateShow(cmd *cobra.Command, args []string) error {
	current, err := loadCurrentState(cmd, args[1:])
	if err != nil {
		return err
	}

	rs, ok := current.Resources[args[0]]
	if !ok {
		return fmt.Errorf("resource %q not found in state", args[0])
	}

	out, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
