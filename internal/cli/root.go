package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackpilot-io/stackpilot/internal/engine"
	"github.com/stackpilot-io/stackpilot/internal/logging"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitPartialFailure = 1
	ExitFatal          = 2
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "stackpilot",
	Short: "Declarative cloud deployment orchestration",
	Long: `Stackpilot provisions interdependent cloud resources from a declarative
manifest. It builds a dependency graph, diffs it against recorded state,
and applies only the changes needed, in order, with bounded concurrency.

A failed resource never takes the rest of the deployment down with it:
independent branches keep going, dependents are blocked and recorded, and
the next run resumes exactly where this one stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// exitError carries an explicit process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fatalConfig(err error) error {
	return &exitError{code: ExitFatal, err: err}
}

// Execute runs the root command and returns the process exit code:
// 0 success, 1 partial failure, 2 fatal configuration or graph error.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "Error:", ee.err)
			}
			return ee.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		if engine.IsGraphError(err) {
			return ExitFatal
		}
		return ExitPartialFailure
	}
	return ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(versionCmd)
}
