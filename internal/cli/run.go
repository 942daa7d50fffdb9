package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/cacheload/internal/loadtest/engine"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
	"github.com/wesleyorama2/cacheload/internal/loadtest/output"
)

type runOptions struct {
	config configFlags

	metricsAddr string
	jsonOutput  bool
	outputPath  string
	quiet       bool
	noColor     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive load through the proxy",
		Long: `Run the health gate, then issue the configured GETs for every iteration.

Configuration precedence, lowest first: built-in defaults, the config file,
the env file, CACHELOAD_* variables, flags.

  cacheload run
  cacheload run -c cacheload.yaml --vus 4 --executor per-vu-iterations
  cacheload run --base-url http://localhost:8889 --metrics-addr :9100 --json -o result.json

The first interrupt lets in-flight requests finish and prints the summary;
a second one cancels them.

Exit codes: 0 passed, 1 thresholds failed or error, 2 aborted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts)
		},
	}

	opts.config.registerTarget(cmd)
	opts.config.registerLoad(cmd)

	fs := cmd.Flags()
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address, e.g. :9100")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the final result as JSON")
	fs.StringVarP(&opts.outputPath, "output", "o", "", "Write the JSON result to this file")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Drop per-request lines, keep warnings, errors and the summary")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")

	return cmd
}

// runLoad executes a run and maps its outcome onto an exit code.
func runLoad(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig(cmd, &opts.config)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: fmt.Errorf("loading config: %w", err)}
	}

	// Keep stdout clean when it carries the JSON result.
	out := cmd.OutOrStdout()
	if opts.jsonOutput && opts.outputPath == "" {
		out = cmd.ErrOrStderr()
	}
	colors := output.UseColors(out, opts.noColor)

	logger := output.NewLogger(output.LoggerConfig{
		Writer:    out,
		ErrWriter: cmd.ErrOrStderr(),
		Quiet:     opts.quiet,
		Colors:    colors,
	})
	console := output.NewConsole(output.ConsoleConfig{
		Writer: out,
		Quiet:  opts.quiet,
		Colors: colors,
	})

	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	engineOpts := []engine.Option{
		engine.WithObserver(logger),
		engine.WithHealthReporter(console.PrintHealth),
	}

	if opts.metricsAddr != "" {
		exporter := metrics.NewPrometheusExporter()
		serveCtx, cancelServe := context.WithCancel(context.Background())
		defer cancelServe()

		addr, serveErrs, err := exporter.Serve(serveCtx, opts.metricsAddr)
		if err != nil {
			return &ExitError{Code: ExitFailed, Err: err}
		}
		go reportServeError(cmd.ErrOrStderr(), serveErrs)
		if !opts.quiet {
			fmt.Fprintf(out, "Metrics: http://%s/metrics\n", addr)
		}
		engineOpts = append(engineOpts, engine.WithExporter(exporter))
	}

	eng, err := engine.NewEngine(cfg, engineOpts...)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go handleSignals(ctx, sigs, eng, cancel)

	console.PrintHeader(cfg)

	result, runErr := eng.Run(ctx)
	if result == nil {
		return &ExitError{Code: ExitFailed, Err: runErr}
	}

	console.PrintSummary(result)

	if opts.jsonOutput || opts.outputPath != "" {
		if err := writeJSONResult(cmd.OutOrStdout(), result, opts.outputPath); err != nil {
			return &ExitError{Code: ExitFailed, Err: err}
		}
	}

	return exitForResult(result, runErr)
}

type stopper interface {
	Stop(ctx context.Context) error
}

// handleSignals stops the run gracefully on the first signal and cancels it
// on the second.
func handleSignals(ctx context.Context, sigs <-chan os.Signal, eng stopper, cancel context.CancelFunc) {
	select {
	case <-ctx.Done():
		return
	case <-sigs:
	}
	go func() { _ = eng.Stop(ctx) }()

	select {
	case <-ctx.Done():
	case <-sigs:
		cancel()
	}
}

// reportServeError logs a metrics server failure. The run goes on without it.
func reportServeError(w io.Writer, errs <-chan error) {
	if err, ok := <-errs; ok && err != nil {
		fmt.Fprintf(w, "✗ metrics server: %v\n", err)
	}
}

// exitForResult maps a finished run onto an exit code.
func exitForResult(result *engine.TestResult, runErr error) error {
	switch {
	case result.Aborted:
		// already printed by the logger and the summary
		return &ExitError{Code: ExitAborted}
	case runErr != nil:
		return &ExitError{Code: ExitFailed, Err: runErr}
	case !result.Passed:
		return &ExitError{Code: ExitFailed}
	}
	return nil
}

// writeJSONResult writes the indented result to path, or to w when path is empty.
func writeJSONResult(w io.Writer, result *engine.TestResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if path == "" {
		_, err := fmt.Fprintln(w, string(data))
		return err
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
