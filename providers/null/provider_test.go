package null

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/provider"
)

// Provider conformance: every provider must survive the full lifecycle
// Create -> Describe -> Update -> Describe -> Delete -> Describe.

func TestConformance_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	p := New()

	res, err := p.Create(ctx, ir.KindNetwork, map[string]any{"cidrBlock": "10.0.0.0/16"})
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	assert.Equal(t, provider.StatusReady, res.Status)
	assert.Equal(t, res.ID, res.Attrs["id"])

	status, err := p.Describe(ctx, res.ID, ir.KindNetwork)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusReady, status)

	status, err = p.Update(ctx, res.ID, ir.KindNetwork, map[string]any{"cidrBlock": "10.1.0.0/16"})
	require.NoError(t, err)
	assert.Equal(t, provider.StatusReady, status)

	status, err = p.Delete(ctx, res.ID, ir.KindNetwork)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusGone, status)

	status, err = p.Describe(ctx, res.ID, ir.KindNetwork)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusGone, status)
}

func TestCreate_UniqueIDs(t *testing.T) {
	ctx := context.Background()
	p := New()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		res, err := p.Create(ctx, ir.KindSubnet, nil)
		require.NoError(t, err)
		assert.False(t, seen[res.ID], "duplicate id %s", res.ID)
		seen[res.ID] = true
	}
}

func TestUpdate_UnknownResourceIsPermanent(t *testing.T) {
	p := New()

	_, err := p.Update(context.Background(), "null-network-999", ir.KindNetwork, nil)
	require.Error(t, err)
	assert.True(t, provider.IsPermanent(err))
	assert.False(t, provider.IsTransient(err))
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	p := New()

	res, err := p.Create(ctx, ir.KindNetwork, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		status, err := p.Delete(ctx, res.ID, ir.KindNetwork)
		require.NoError(t, err)
		assert.Equal(t, provider.StatusGone, status)
	}
}

func TestProvider_HonorsCancellation(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Create(ctx, ir.KindNetwork, nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = p.Describe(ctx, "any", ir.KindNetwork)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactory(t *testing.T) {
	p, err := Factory(map[string]string{"ignored": "option"})
	require.NoError(t, err)
	assert.NotNil(t, p)
}
