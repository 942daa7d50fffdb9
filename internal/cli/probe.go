package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/cacheload/internal/loadtest/engine"
	"github.com/wesleyorama2/cacheload/internal/loadtest/output"
)

type probeOptions struct {
	config     configFlags
	jsonOutput bool
	noColor    bool
}

func newProbeCmd() *cobra.Command {
	opts := &probeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run only the health probe",
		Long: `Send the health GET once, with the configured Host header and timeout,
and report the outcome. Exit code 0 when healthy, 2 otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, opts)
		},
	}

	opts.config.registerTarget(cmd)
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the probe result as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")

	return cmd
}

func runProbe(cmd *cobra.Command, opts *probeOptions) error {
	cfg, err := loadConfig(cmd, &opts.config)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: fmt.Errorf("loading config: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: ExitFailed, Err: fmt.Errorf("invalid configuration: %w", err)}
	}

	result := engine.Probe(cmdContext(cmd), engine.NewClient(cfg), cfg)

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return &ExitError{Code: ExitFailed, Err: fmt.Errorf("marshaling result: %w", err)}
		}
		fmt.Fprintln(out, string(data))
	} else {
		output.NewConsole(output.ConsoleConfig{
			Writer: out,
			Colors: output.UseColors(out, opts.noColor),
		}).PrintHealth(result)
	}

	if !result.Healthy {
		return &ExitError{Code: ExitAborted}
	}
	return nil
}
