package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"weft/internal/config"
	"weft/internal/observ"
	"weft/internal/pass"
	"weft/internal/stress"
	"weft/internal/trace"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Generate random worlds and run the pipeline over them",
	Long: `stress generates independent random worlds in parallel, runs the
configured pass pipeline and cleanup over each, verifies the result and
reports per-world statistics. A failing world is reported with its seed.`,
	Args: cobra.NoArgs,
	RunE: runStress,
}

func init() {
	f := stressCmd.Flags()
	f.Int("universes", 0, "number of worlds (default from config)")
	f.Int("lams", 0, "blocks per world (default from config)")
	f.Int("ops", 0, "operations per block (default from config)")
	f.Uint64("seed", 0, "seed of the first world (default from config)")
	f.Int("jobs", 0, "parallel workers, 0 means GOMAXPROCS")
	f.StringSlice("passes", nil, "comma-separated pass pipeline (default from config)")
	f.Int("max-iterations", 0, "fixpoint iteration cap (default from config)")
	f.Bool("no-cleanup", false, "skip cleanup after the pipeline")
	f.String("report", "", "write a msgpack report to file")
	f.String("format", "pretty", "output format (pretty|json)")
	f.String("ui", "auto", "progress view (auto|on|off), pretty format only")
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := overlayStressFlags(cmd, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	opts := stress.Options{
		Universes:     cfg.Stress.Universes,
		Blocks:        cfg.Stress.Lams,
		Ops:           cfg.Stress.Ops,
		Seed:          cfg.Stress.Seed,
		Jobs:          cfg.Stress.Jobs,
		Passes:        cfg.Pipeline.Passes,
		MaxIterations: cfg.Pipeline.MaxIterations,
		Cleanup:       cfg.Pipeline.Cleanup,
		Registry:      stress.DefaultRegistry(),
		Done:          new(atomic.Int64),
	}
	heartbeat.SetReporter(func() string {
		return fmt.Sprintf("%d/%d worlds", opts.Done.Load(), opts.Universes)
	})
	out := cmd.OutOrStdout()
	var report *stress.Report
	if format == "pretty" && shouldUseTUI(mode, out) {
		report, err = runStressWithUI(cmd.Context(), out, opts)
	} else {
		report, err = stress.Run(cmd.Context(), opts)
	}
	if err != nil {
		dumpRing(cmd.ErrOrStderr(), trace.FromContext(cmd.Context()))
		if errors.Is(err, pass.ErrNoFixpoint) {
			return fmt.Errorf("%w (raise [pipeline].max_iterations or drop a pass)", err)
		}
		return err
	}

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := stress.WriteReport(path, report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStressReport(out, report)
	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		printTimings(out, report)
	}
	return nil
}

// overlayStressFlags copies explicitly set flags over the config file.
func overlayStressFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("universes") {
		if cfg.Stress.Universes, err = f.GetInt("universes"); err != nil {
			return err
		}
	}
	if f.Changed("lams") {
		if cfg.Stress.Lams, err = f.GetInt("lams"); err != nil {
			return err
		}
	}
	if f.Changed("ops") {
		if cfg.Stress.Ops, err = f.GetInt("ops"); err != nil {
			return err
		}
	}
	if f.Changed("seed") {
		if cfg.Stress.Seed, err = f.GetUint64("seed"); err != nil {
			return err
		}
	}
	if f.Changed("jobs") {
		if cfg.Stress.Jobs, err = f.GetInt("jobs"); err != nil {
			return err
		}
	}
	if f.Changed("passes") {
		if cfg.Pipeline.Passes, err = f.GetStringSlice("passes"); err != nil {
			return err
		}
	}
	if f.Changed("max-iterations") {
		if cfg.Pipeline.MaxIterations, err = f.GetInt("max-iterations"); err != nil {
			return err
		}
	}
	if f.Changed("no-cleanup") {
		noCleanup, err := f.GetBool("no-cleanup")
		if err != nil {
			return err
		}
		cfg.Pipeline.Cleanup = !noCleanup
	}
	return nil
}

func printStressReport(out io.Writer, r *stress.Report) {
	header := color.New(color.Bold)
	fmt.Fprintf(out, "%s %s\n", header.Sprint("pipeline:"), strings.Join(r.Passes, ", "))
	fmt.Fprintf(out, "%-6s %-10s %8s %8s %6s %8s %6s %6s\n",
		"world", "seed", "before", "after", "iters", "rewrites", "swept", "depth")
	for _, u := range r.Universes {
		fmt.Fprintf(out, "%-6d %-10d %8d %8d %6d %8d %6d %6d\n",
			u.Index, u.Seed, u.DefsBefore, u.DefsAfter, u.Iterations, u.Replacements, u.UnreachableLams, u.DomDepth)
	}
	fmt.Fprintf(out, "%s %d worlds, %d iterations, %d nodes removed in %s\n",
		color.GreenString("ok:"), len(r.Universes), r.Iterations, r.Removed, r.Duration.Round(time.Millisecond))
}

// printTimings merges the per-world phase reports into one table.
func printTimings(out io.Writer, r *stress.Report) {
	var all observ.Report
	for _, u := range r.Universes {
		all.Add(u.Timings)
	}
	fmt.Fprintln(out, color.New(color.Bold).Sprint("timings:"))
	all.Merge().Print(out)
}
