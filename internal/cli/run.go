package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifegraph/lifegraph/internal/config"
	"github.com/lifegraph/lifegraph/internal/export"
	"github.com/lifegraph/lifegraph/internal/generator"
	"github.com/lifegraph/lifegraph/internal/loader"
	"github.com/lifegraph/lifegraph/internal/metrics"
	"github.com/lifegraph/lifegraph/internal/store"
)

// RunReport is the run command's output payload.
type RunReport struct {
	Entities  int            `json:"entities"`
	Deceased  int            `json:"deceased"`
	Completed map[string]int `json:"completed,omitempty"`
	Duration  string         `json:"duration"`
}

// runFlags are the config fields the command line may override.
type runFlags struct {
	seed       int64
	population int
	workers    int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var configPath string
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a population from a run configuration",
		Long: `Runs every top-level module against a generated population.

The run configuration names the module directory, the population size,
the simulated date range, and the output sinks (SQLite store, document
export directory, metrics address). Command-line flags override the
corresponding config fields.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(rootOpts, configPath, flags, cmd)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "run configuration file (required)")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "override the configured seed")
	cmd.Flags().IntVar(&flags.population, "population", 0, "override the configured population")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "override the configured worker count")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runGenerate(opts *RootOptions, configPath string, flags runFlags, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if flags.seed != 0 {
		cfg.Seed = flags.seed
	}
	if flags.population > 0 {
		cfg.Population = flags.population
	}
	if flags.workers > 0 {
		cfg.Workers = flags.workers
	}

	lib, loadErrs := loader.LoadDirectory(cfg.ModuleDir)
	if lib == nil {
		_ = formatter.Error(loadErrs[0].Error(), nil)
		return WrapExitError(ExitCommandError, "load modules", loadErrs[0])
	}
	for _, err := range loadErrs {
		_ = formatter.Error(err.Error(), nil)
	}
	if len(loadErrs) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d module(s) failed to load", len(loadErrs)))
	}
	formatter.VerboseLog("Loaded %d module(s) from %s", lib.Len(), cfg.ModuleDir)

	var overrides []loader.Override
	if cfg.OverrideFile != "" {
		data, err := os.ReadFile(cfg.OverrideFile)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "read overrides", err)
		}
		overrides, err = loader.ParseOverrides(data)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "parse overrides", err)
		}
		formatter.VerboseLog("Applying %d override(s)", len(overrides))
	}

	genOpts := generator.Options{
		Config:    cfg,
		Library:   lib,
		Overrides: overrides,
		Log:       commandLogger(cmd, opts),
	}

	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "open store", err)
		}
		defer st.Close()
		genOpts.Store = st
	}
	if cfg.ExportDir != "" {
		exporter, err := export.NewExporter(cfg.ExportDir)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "open export directory", err)
		}
		genOpts.Exporter = exporter
	}
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		genOpts.Metrics = m
		server := metrics.NewServer(cfg.MetricsAddr, m)
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				formatter.VerboseLog("metrics server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		}()
	}

	g, err := generator.New(genOpts)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "build generator", err)
	}

	began := time.Now()
	summary, err := g.Run(cmd.Context())
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "generation failed", err)
	}

	report := RunReport{
		Entities:  summary.Entities,
		Deceased:  summary.Deceased,
		Completed: summary.Completed,
		Duration:  time.Since(began).Round(time.Millisecond).String(),
	}
	return outputRunReport(formatter, report)
}

func outputRunReport(formatter *OutputFormatter, report RunReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "Generated %d entities (%d deceased) in %s\n",
		report.Entities, report.Deceased, report.Duration)

	names := make([]string, 0, len(report.Completed))
	for name := range report.Completed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(formatter.Writer, "  %s: %d completed\n", name, report.Completed[name])
	}
	return nil
}
