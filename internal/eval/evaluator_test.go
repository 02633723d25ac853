package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// Evaluating a real manifest needs the pkl binary, so evaluator-level tests
// live with integration tooling; validation is covered here.

func validManifest() *ir.Manifest {
	return &ir.Manifest{
		Deployment: "prod",
		Provider:   "aws",
		Resources: []*ir.ResourceSpec{
			{Name: "vpc", Kind: ir.KindNetwork},
			{Name: "subnet", Kind: ir.KindSubnet, DependsOn: []string{"vpc"}},
		},
	}
}

func TestValidateManifest_Valid(t *testing.T) {
	require.NoError(t, validateManifest(validManifest()))
}

func TestValidateManifest_MissingDeployment(t *testing.T) {
	m := validManifest()
	m.Deployment = ""

	err := validateManifest(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment name")
}

func TestValidateManifest_DuplicateNames(t *testing.T) {
	m := validManifest()
	m.Resources = append(m.Resources, &ir.ResourceSpec{Name: "vpc", Kind: ir.KindNetwork})

	err := validateManifest(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate resource name "vpc"`)
}

func TestValidateManifest_UnknownKind(t *testing.T) {
	m := validManifest()
	m.Resources[0].Kind = "quantum-tunnel"

	err := validateManifest(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestValidateManifest_CountAndForEachExclusive(t *testing.T) {
	m := validManifest()
	m.Resources[0].Count = 2
	m.Resources[0].ForEach = map[string]string{"a": "b"}

	err := validateManifest(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both count and forEach")
}

func TestValidateManifest_EmptyName(t *testing.T) {
	m := validManifest()
	m.Resources[0].Name = ""

	err := validateManifest(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty name")
}
