package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ehrqa/internal/app"
	"ehrqa/internal/runstore"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded QA runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Storage.Enabled {
				return fmt.Errorf("run history is disabled; set storage.enabled in the config")
			}

			return ctx.withApplication(cmd, func(runCtx context.Context, a *app.Application) error {
				runs, err := a.QAService.ListRuns(runCtx, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Run", "Created", "Input", "Rows", "Cols", "Dups", "Missing", "Outliers"},
					buildHistoryRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", runstore.DefaultListLimit, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func buildHistoryRows(runs []runstore.RunRecord) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.CreatedAt.Local().Format(time.DateTime),
			run.InputFile,
			strconv.Itoa(run.Rows),
			strconv.Itoa(run.Columns),
			strconv.Itoa(run.DuplicateRows),
			formatRate(run.OverallMissingRate),
			strconv.Itoa(run.OutliersFound),
		})
	}
	return rows
}
