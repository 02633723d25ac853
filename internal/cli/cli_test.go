package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/ir"
)

func TestEngineOptions_Defaults(t *testing.T) {
	opts, err := engineOptions(&ir.Manifest{Deployment: "prod"})
	require.NoError(t, err)

	assert.Zero(t, opts.Workers)
	assert.Nil(t, opts.Retry)
	assert.Nil(t, opts.Readiness)
}

func TestEngineOptions_FromManifest(t *testing.T) {
	m := &ir.Manifest{
		Deployment: "prod",
		Workers:    5,
		Retry: &ir.RetryConfig{
			MaxAttempts: 7,
			BaseDelay:   "500ms",
			MaxDelay:    "1m",
		},
		Validation: &ir.ValidateConfig{
			Interval: "2s",
			Deadline: "90s",
		},
	}

	opts, err := engineOptions(m)
	require.NoError(t, err)

	assert.Equal(t, 5, opts.Workers)
	assert.Equal(t, 7, opts.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.Retry.BaseDelay)
	assert.Equal(t, time.Minute, opts.Retry.MaxDelay)
	assert.Equal(t, 2*time.Second, opts.Readiness.Interval)
	assert.Equal(t, 90*time.Second, opts.Readiness.Deadline)
}

func TestEngineOptions_BadDuration(t *testing.T) {
	m := &ir.Manifest{
		Deployment: "prod",
		Retry:      &ir.RetryConfig{BaseDelay: "not-a-duration"},
	}

	_, err := engineOptions(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry.baseDelay")
}

func TestEngineOptions_PartialRetryKeepsDefaults(t *testing.T) {
	m := &ir.Manifest{
		Deployment: "prod",
		Retry:      &ir.RetryConfig{MaxAttempts: 2},
	}

	opts, err := engineOptions(m)
	require.NoError(t, err)

	assert.Equal(t, 2, opts.Retry.MaxAttempts)
	assert.Equal(t, engine.DefaultRetryPolicy().BaseDelay, opts.Retry.BaseDelay)
}

func TestActionSymbols(t *testing.T) {
	assert.Equal(t, "+", actionSymbol(ir.ActionCreate))
	assert.Equal(t, "~", actionSymbol(ir.ActionUpdate))
	assert.Equal(t, "-", actionSymbol(ir.ActionDelete))
	assert.Equal(t, " ", actionSymbol(ir.ActionSkip))
}

func TestRenderRunResult_ExitCodes(t *testing.T) {
	ok := &engine.RunResult{Status: engine.RunSucceeded}
	assert.Equal(t, ExitOK, renderRunResult(ok))

	partial := &engine.RunResult{
		Status: engine.RunPartialFailure,
		Outcomes: []*engine.Outcome{
			{Name: "b", Status: ir.StatusFailed, Err: errors.New("boom")},
			{Name: "c", Status: ir.StatusBlocked, Err: errors.New("blocked")},
		},
	}
	assert.Equal(t, ExitPartialFailure, renderRunResult(partial))
}

func TestExitError(t *testing.T) {
	plain := &exitError{code: ExitPartialFailure}
	assert.Equal(t, "exit code 1", plain.Error())

	wrapped := fatalConfig(errors.New("bad manifest"))
	var ee *exitError
	require.ErrorAs(t, wrapped, &ee)
	assert.Equal(t, ExitFatal, ee.code)
	assert.Equal(t, "bad manifest", ee.Error())
}

func TestResolveWorkdir_Default(t *testing.T) {
	wd, entryPoint, err := resolveWorkdir(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, wd)
	assert.Equal(t, defaultEntryPoint, entryPoint)
}

func TestResolveWorkdir_Directory(t *testing.T) {
	dir := t.TempDir()

	wd, entryPoint, err := resolveWorkdir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, wd)
	assert.Equal(t, defaultEntryPoint, entryPoint)
}

func TestResolveWorkdir_MissingPath(t *testing.T) {
	_, _, err := resolveWorkdir([]string{"/does/not/exist"})
	require.Error(t, err)
}
