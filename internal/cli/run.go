package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pollsched/internal/loader"
	"pollsched/internal/record"
	"pollsched/internal/report"
	"pollsched/internal/sched"
	"pollsched/internal/task"
)

type runOptions struct {
	csvPath    string
	dbPath     string
	horizon    int
	fixHorizon bool
	stream     bool
	noGantt    bool
	noSummary  bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <taskset>",
		Short: "Analyze a task set and simulate one hyperperiod",
		Long: `Loads a task set (text or YAML), checks the horizon against the hyperperiod
and the utilization bound, then simulates the polling server tick by tick.
The trace is printed as a text chart followed by a summary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("csv") {
				opts.csvPath = cfg.CSVPath
			}
			if !cmd.Flags().Changed("db") {
				opts.dbPath = cfg.DBPath
			}
			if !cmd.Flags().Changed("fix-horizon") {
				opts.fixHorizon = cfg.FixHorizon
			}
			if !cmd.Flags().Changed("no-gantt") {
				opts.noGantt = !cfg.Gantt
			}
			if !cmd.Flags().Changed("no-summary") {
				opts.noSummary = !cfg.Summary
			}
			return runTaskSet(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Write the trace as CSV to this file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.horizon, "horizon", 0, "Override the horizon from the task set")
	cmd.Flags().BoolVar(&opts.fixHorizon, "fix-horizon", false, "On a horizon mismatch, simulate one hyperperiod instead")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Print every tick as it is simulated")
	cmd.Flags().BoolVar(&opts.noGantt, "no-gantt", false, "Do not print the text chart")
	cmd.Flags().BoolVar(&opts.noSummary, "no-summary", false, "Do not print the summary")

	return cmd
}

func runTaskSet(ctx context.Context, out io.Writer, path string, opts runOptions) error {
	set, horizon, err := loader.Load(path)
	if err != nil {
		return err
	}
	if opts.horizon > 0 {
		horizon = opts.horizon
	}
	logger.Info("task set loaded", "path", path,
		"periodic", len(set.Periodic), "aperiodic", len(set.Aperiodic), "horizon", horizon)

	engineOpts := []sched.Option{sched.WithLogger(logger.With("component", "engine"))}
	if opts.stream {
		engineOpts = append(engineOpts, sched.WithObserver(func(e sched.Entry) {
			fmt.Fprintln(out, e)
		}))
	}

	log, analysis, err := sched.Simulate(set, horizon, engineOpts...)
	if err != nil && opts.fixHorizon && analysis.Feasible && errors.Is(err, sched.ErrHorizonMismatch) {
		logger.Warn("horizon does not match the hyperperiod, retrying",
			"horizon", horizon, "hyperperiod", analysis.Hyperperiod)
		log, analysis, err = sched.Simulate(set, analysis.Hyperperiod, engineOpts...)
	}
	if err != nil {
		return reportRejection(out, analysis, err)
	}
	logger.Info("simulation finished", "run_id", log.RunID.String(), "ticks", log.Len())

	if !opts.noGantt {
		if err := report.WriteGantt(out, set, log); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	if !opts.noSummary {
		if err := report.WriteSummary(out, log, sched.ComputeMetrics(set, log)); err != nil {
			return err
		}
	}

	if opts.csvPath != "" {
		if err := writeCSVFile(opts.csvPath, log); err != nil {
			return err
		}
		logger.Info("trace written", "path", opts.csvPath)
	}
	if opts.dbPath != "" {
		if err := saveRun(ctx, opts.dbPath, path, analysis, log); err != nil {
			return err
		}
		logger.Info("run recorded", "db", opts.dbPath, "run_id", log.RunID.String())
	}

	return nil
}

func reportRejection(out io.Writer, a sched.Analysis, err error) error {
	if errors.Is(err, sched.ErrHyperperiodOverflow) {
		logger.Warn("hyperperiod does not fit in an int", "horizon", a.Horizon)
	}
	if errors.Is(err, sched.ErrHorizonMismatch) {
		logger.Warn("horizon is not one hyperperiod", "horizon", a.Horizon, "hyperperiod", a.Hyperperiod)
	}
	if errors.Is(err, sched.ErrInfeasible) {
		logger.Warn("task set fails the utilization bound", "utilization", a.Utilization, "bound", a.Bound)
	}
	if werr := report.WriteAnalysis(out, a); werr != nil {
		return errors.Join(err, fmt.Errorf("write analysis: %w", werr))
	}
	return err
}

func writeCSVFile(path string, log *sched.Log) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := report.WriteCSV(f, log); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func saveRun(ctx context.Context, dbPath, source string, a sched.Analysis, log *sched.Log) error {
	st, err := record.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	return st.SaveRun(ctx, source, a, log)
}

func newAnalyzeCmd() *cobra.Command {
	var horizon int

	cmd := &cobra.Command{
		Use:   "analyze <taskset>",
		Short: "Check the horizon and the utilization bound without simulating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, h, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			if horizon > 0 {
				h = horizon
			}

			describeSet(cmd.OutOrStdout(), set)
			fmt.Fprintln(cmd.OutOrStdout())

			a := sched.Analyze(set, h)
			if err := a.Err(); err != nil {
				return reportRejection(cmd.OutOrStdout(), a, err)
			}
			return report.WriteAnalysis(cmd.OutOrStdout(), a)
		},
	}

	cmd.Flags().IntVar(&horizon, "horizon", 0, "Override the horizon from the task set")
	return cmd
}

func newHyperperiodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hyperperiod <taskset>",
		Short: "Print the hyperperiod of a task set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, _, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			h, err := sched.Hyperperiod(set)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

// describeSet lists the tasks of set, one per line.
func describeSet(out io.Writer, set *task.Set) {
	for _, t := range set.Tasks() {
		fmt.Fprintln(out, t)
	}
}
