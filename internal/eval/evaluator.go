// Package eval loads PKL deployment manifests into IR types.
package eval

import (
	"context"
	"fmt"
	"net/url"

	"github.com/apple/pkl-go/pkl"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// Evaluator evaluates PKL manifests rooted at a project directory.
type Evaluator struct {
	projectDir string
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{
		projectDir: projectDir,
	}
}

// LoadManifest evaluates the deployment manifest and returns the IR.
// External properties override manifest-level defaults.
func (e *Evaluator) LoadManifest(ctx context.Context, entryPoint string, properties map[string]string) (*ir.Manifest, error) {
	u, err := url.Parse("file://" + e.projectDir + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse project directory URL: %w", err)
	}

	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewProjectEvaluator(ctx, u, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var manifest ir.Manifest
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(entryPoint), &manifest); err != nil {
		return nil, fmt.Errorf("failed to evaluate manifest: %w", err)
	}

	if err := validateManifest(&manifest); err != nil {
		return nil, err
	}

	return &manifest, nil
}

// validateManifest rejects structurally invalid manifests before the graph
// builder sees them.
func validateManifest(m *ir.Manifest) error {
	if m.Deployment == "" {
		return fmt.Errorf("manifest is missing a deployment name")
	}

	seen := make(map[string]bool, len(m.Resources))
	for _, spec := range m.Resources {
		if spec.Name == "" {
			return fmt.Errorf("resource with empty name")
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate resource name %q", spec.Name)
		}
		seen[spec.Name] = true

		if !spec.Kind.Valid() {
			return fmt.Errorf("resource %q has unknown kind %q", spec.Name, spec.Kind)
		}
		if spec.Count > 0 && len(spec.ForEach) > 0 {
			return fmt.Errorf("resource %q sets both count and forEach", spec.Name)
		}
	}

	return nil
}
