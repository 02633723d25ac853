package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/provider"
	"github.com/stackpilot-io/stackpilot/internal/state"
)

// pollProvider serves a scripted sequence of Describe responses, repeating
// the last one once the script runs out.
type pollProvider struct {
	fakeProvider
	mu       sync.Mutex
	statuses []provider.Status
	errs     []error
	polls    int
}

func (p *pollProvider) Describe(ctx context.Context, id string, kind ir.Kind) (provider.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.polls
	if i >= len(p.statuses) {
		i = len(p.statuses) - 1
	}
	p.polls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return p.statuses[i], err
}

func verifyEngine(t *testing.T, prov provider.Provider, policy *ReadinessPolicy) *Engine {
	t.Helper()
	return New(prov, state.NewFileStore(t.TempDir()), Options{Readiness: policy})
}

func fastReadiness() *ReadinessPolicy {
	return &ReadinessPolicy{Interval: time.Millisecond, Deadline: 50 * time.Millisecond}
}

func readyState(name string) *ir.ResourceState {
	return &ir.ResourceState{
		Name:       name,
		Kind:       ir.KindComputeInstance,
		ProviderID: name + "-id",
		Status:     ir.StatusReady,
	}
}

func TestVerify_ImmediatelyReady(t *testing.T) {
	prov := &pollProvider{statuses: []provider.Status{provider.StatusReady}}
	eng := verifyEngine(t, prov, fastReadiness())

	err := eng.Verify(context.Background(), readyState("instance"))
	require.NoError(t, err)
	assert.Equal(t, 1, prov.polls)
}

func TestVerify_EventuallyReady(t *testing.T) {
	prov := &pollProvider{statuses: []provider.Status{
		provider.StatusProvisioning,
		provider.StatusProvisioning,
		provider.StatusReady,
	}}
	eng := verifyEngine(t, prov, fastReadiness())

	err := eng.Verify(context.Background(), readyState("instance"))
	require.NoError(t, err)
	assert.Equal(t, 3, prov.polls)
}

func TestVerify_DeadlineExceeded(t *testing.T) {
	prov := &pollProvider{statuses: []provider.Status{provider.StatusProvisioning}}
	eng := verifyEngine(t, prov, fastReadiness())

	err := eng.Verify(context.Background(), readyState("instance"))
	require.Error(t, err)

	var vte *ValidationTimeoutError
	require.ErrorAs(t, err, &vte)
	assert.Equal(t, "instance", vte.Resource)
	assert.Equal(t, string(provider.StatusProvisioning), vte.LastStatus)
}

func TestVerify_DescribeErrorsAreNotFatal(t *testing.T) {
	prov := &pollProvider{
		statuses: []provider.Status{"", provider.StatusReady},
		errs:     []error{errors.New("throttled")},
	}
	eng := verifyEngine(t, prov, fastReadiness())

	err := eng.Verify(context.Background(), readyState("instance"))
	require.NoError(t, err)
	assert.Equal(t, 2, prov.polls)
}

func TestVerifyAll_ReportsTimeoutsWithoutFailing(t *testing.T) {
	prov := &pollProvider{statuses: []provider.Status{provider.StatusDegraded}}
	eng := verifyEngine(t, prov, fastReadiness())

	ds := ir.NewDeploymentState("test")
	ds.Resources["a"] = readyState("a")
	ds.Resources["b"] = readyState("b")
	// Non-ready resources are not polled.
	ds.Resources["c"] = &ir.ResourceState{Name: "c", Status: ir.StatusFailed, ProviderID: "c-id"}

	timeouts := eng.VerifyAll(context.Background(), ds)
	require.Len(t, timeouts, 2)
	assert.Equal(t, "a", timeouts[0].Resource)
	assert.Equal(t, "b", timeouts[1].Resource)
}

func TestVerifyAll_AllReady(t *testing.T) {
	prov := &pollProvider{statuses: []provider.Status{provider.StatusReady}}
	eng := verifyEngine(t, prov, fastReadiness())

	ds := ir.NewDeploymentState("test")
	ds.Resources["a"] = readyState("a")

	assert.Empty(t, eng.VerifyAll(context.Background(), ds))
}
