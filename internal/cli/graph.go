package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/eval"
)

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Output the dependency graph in DOT format",
	Long: `Generates a visual representation of the resource dependency graph
in Graphviz DOT format. Pipe the output to 'dot' to generate an image:

  stackpilot graph | dot -Tpng > graph.png`,
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return fatalConfig(err)
	}

	evaluator := eval.NewEvaluator(wd)
	manifest, err := evaluator.LoadManifest(cmd.Context(), entryPoint, nil)
	if err != nil {
		return fatalConfig(fmt.Errorf("failed to load manifest: %w", err))
	}

	specs := engine.ExpandSpecs(manifest.Resources)
	graph, err := engine.BuildGraph(specs)
	if err != nil {
		return fatalConfig(err)
	}

	fmt.Println("digraph stackpilot {")
	fmt.Println("  rankdir = \"BT\";")
	fmt.Println("  node [shape = rect];")
	fmt.Println()

	for _, name := range graph.CreationOrder() {
		spec := graph.Spec(name)
		fmt.Printf("  %q;\n", fmt.Sprintf("%s.%s", spec.Kind, name))
	}
	fmt.Println()

	for _, name := range graph.CreationOrder() {
		spec := graph.Spec(name)
		addr := fmt.Sprintf("%s.%s", spec.Kind, name)
		for _, dep := range graph.Dependencies(name) {
			depSpec := graph.Spec(dep)
			fmt.Printf("  %q -> %q;\n", addr, fmt.Sprintf("%s.%s", depSpec.Kind, dep))
		}
	}

	fmt.Println("}")
	return nil
}
