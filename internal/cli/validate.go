package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/executor"
)

func newValidateCmd() *cobra.Command {
	flags := &configFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration without sending any request",
		Long: `Load the configuration the same way "run" does, apply defaults and
validate it. Every problem is reported, not just the first.

` + executorHelp(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, flags)
		},
	}

	flags.registerTarget(cmd)
	flags.registerLoad(cmd)

	return cmd
}

func runValidate(cmd *cobra.Command, flags *configFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: fmt.Errorf("loading config: %w", err)}
	}

	out := cmd.OutOrStdout()
	if err := cfg.Validate(); err != nil {
		var verrs *config.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ExitError{Code: ExitFailed, Err: err}
		}
		for _, e := range verrs.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %s\n", e.Field, e.Message)
		}
		if !executor.IsValidExecutorType(cfg.Load.Executor) {
			fmt.Fprintln(cmd.ErrOrStderr())
			writeExecutors(cmd.ErrOrStderr())
		}
		return &ExitError{Code: ExitFailed, Err: fmt.Errorf("%d validation error(s)", len(verrs.Errors))}
	}

	fmt.Fprintf(out, "✓ %s is valid (%s, %d stream(s), %d request(s) per iteration)\n",
		cfg.Name, cfg.Load.Executor, cfg.Load.VUs, len(cfg.Requests))
	if d := executor.GetExecutorDescription(executor.Type(cfg.Load.Executor)); d != nil {
		fmt.Fprintf(out, "  %s: %s\n", d.Name, d.Description)
	}
	return nil
}

func executorHelp() string {
	var b strings.Builder
	writeExecutors(&b)
	return strings.TrimRight(b.String(), "\n")
}

// writeExecutors lists every supported executor with its description.
func writeExecutors(w io.Writer) {
	fmt.Fprintln(w, "Executors:")
	for _, typ := range executor.GetSupportedExecutors() {
		d := executor.GetExecutorDescription(typ)
		fmt.Fprintf(w, "  %-18s %s\n", typ, d.Description)
	}
}
