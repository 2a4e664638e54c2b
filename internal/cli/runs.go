package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"pollsched/internal/record"
	"pollsched/internal/report"
)

func openStore(cmd *cobra.Command, dbPath string) (*record.Store, error) {
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		return nil, errors.New("no database: pass --db or set db_path")
	}
	st, err := record.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newRunsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tHORIZON\tU")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\n",
					r.ID, r.CreatedAt.Format(time.DateTime), r.Source, r.Horizon, r.Utilization)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database with recorded runs")
	return cmd
}

func newShowCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a recorded run as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := xid.FromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			st, err := openStore(cmd, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			log, err := st.LoadLog(cmd.Context(), id)
			if err != nil {
				return err
			}
			return report.WriteCSV(cmd.OutOrStdout(), log)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database with recorded runs")
	return cmd
}
