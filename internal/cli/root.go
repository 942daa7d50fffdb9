// Package cli implements the cacheload command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Exit codes.
const (
	ExitPassed  = 0
	ExitFailed  = 1
	ExitAborted = 2
)

// ExitError carries a process exit code out of a command.
// A nil Err means the command already reported the problem.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "cacheload",
		Short:   "Load driver for a caching reverse proxy",
		Version: version,
		Long: `cacheload drives a caching reverse proxy with paired JSON and image GETs
over a cyclic pool of identifiers, checking every response for its status,
a non-empty body and the cache-status header.

The run is gated by a health probe and aborts on the first critical
transport error (connection refused, reset, timeout, unreachable host).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newProbeCmd())
	root.AddCommand(newValidateCmd())

	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:])
}

func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitPassed
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}

	fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	return ExitFailed
}
