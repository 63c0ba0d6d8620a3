package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ehrqa/internal/app"
	"ehrqa/internal/config"
	"ehrqa/internal/operations"
	"ehrqa/internal/services"
	"ehrqa/pkg/contracts/domain"
)

type runFlags struct {
	input       string
	outDir      string
	timeCol     string
	ageCol      string
	idCols      []string
	outlierCols []string
	iqrK        float64
	savePlots   bool
	workers     int
	json        bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the QA pipeline over a CSV, TSV or XLSX file",
		Example: "  ehrqa run --input admissions.csv --age-col age --time-col admit_time \\\n" +
			"    --id-cols patient_id,encounter_id --outlier-cols weight_kg,sbp --save-plots",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			qa, err := flags.resolve(cmd, cfg)
			if err != nil {
				return err
			}

			return ctx.withApplication(cmd, func(runCtx context.Context, a *app.Application) error {
				resp, err := a.QAService.Execute(runCtx, services.ExecuteRequest{
					InputPath: flags.input,
					OutputDir: qa.OutputDir,
					Options:   runOptions(qa),
					SavePlots: qa.SavePlots,
				})
				if err != nil {
					return err
				}
				if flags.json {
					return writeJSON(cmd, resp)
				}
				printRunSummary(cmd, resp)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.input, "input", "i", "", "Path to input CSV, TSV or XLSX file")
	f.StringVarP(&flags.outDir, "outdir", "o", "", "Output directory (default from config, \"outputs\")")
	f.StringVar(&flags.timeCol, "time-col", "", "Name of the time-of-day column")
	f.StringVar(&flags.ageCol, "age-col", "", "Name of the age column")
	f.StringSliceVar(&flags.idCols, "id-cols", nil, "Comma-separated identifier columns for duplicate checks")
	f.StringSliceVar(&flags.outlierCols, "outlier-cols", nil, "Comma-separated numeric columns to check for outliers (default: all numeric)")
	f.Float64Var(&flags.iqrK, "iqr-k", 0, "IQR multiplier (default from config, 1.5)")
	f.BoolVar(&flags.savePlots, "save-plots", false, "Write qa_plots.xlsx with missingness and age charts")
	f.IntVar(&flags.workers, "workers", 0, "Columns checked for outliers concurrently (default from config, 1)")
	f.BoolVar(&flags.json, "json", false, "Print the run result as JSON")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// resolve overlays the flags that were set on the qa section of cfg and
// validates the result with the config rules
func (f *runFlags) resolve(cmd *cobra.Command, cfg *config.Config) (config.QAConfig, error) {
	merged := *cfg
	qa := cfg.QA
	changed := cmd.Flags().Changed

	if changed("outdir") {
		qa.OutputDir = strings.TrimSpace(f.outDir)
	}
	if changed("time-col") {
		qa.TimeColumn = strings.TrimSpace(f.timeCol)
	}
	if changed("age-col") {
		qa.AgeColumn = strings.TrimSpace(f.ageCol)
	}
	if changed("id-cols") {
		qa.IdentifierColumns = splitColumns(f.idCols)
	}
	if changed("outlier-cols") {
		qa.OutlierColumns = splitColumns(f.outlierCols)
	}
	if changed("iqr-k") {
		qa.IQRMultiplier = f.iqrK
	}
	if changed("save-plots") {
		qa.SavePlots = f.savePlots
	}
	if changed("workers") {
		qa.Workers = f.workers
	}

	merged.QA = qa
	if err := merged.Validate(); err != nil {
		return qa, fmt.Errorf("invalid run options: %w", err)
	}
	return qa, nil
}

func splitColumns(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func runOptions(qa config.QAConfig) operations.Options {
	return operations.Options{
		AgeColumn:         qa.AgeColumn,
		TimeColumn:        qa.TimeColumn,
		IdentifierColumns: qa.IdentifierColumns,
		OutlierColumns:    qa.OutlierColumns,
		IQRMultiplier:     qa.IQRMultiplier,
		Workers:           qa.Workers,
	}
}

func printRunSummary(cmd *cobra.Command, resp *services.ExecuteResponse) {
	out := cmd.OutOrStdout()
	report := resp.Report

	fmt.Fprint(out, renderTable([]string{"Check", "Result"}, summaryRows(report), []columnAlignment{alignLeft, alignRight}))

	if len(report.OutliersIQR) > 0 {
		rows := make([][]string, 0, len(report.OutliersIQR))
		for _, o := range report.OutliersIQR {
			rows = append(rows, []string{o.Column, strconv.Itoa(o.OutlierCount), formatRate(o.OutlierRate)})
		}
		fmt.Fprint(out, renderTable([]string{"Column", "IQR Outliers", "Rate"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
	}

	fmt.Fprintf(out, "Run %s\n", resp.RunID)
	fmt.Fprintf(out, "QA complete. Report written to: %s\n", resp.ReportPath)
}

func summaryRows(report *domain.Report) [][]string {
	rows := [][]string{
		{"Input", report.InputFile},
		{"Rows", strconv.Itoa(report.Rows)},
		{"Columns", strconv.Itoa(report.Columns)},
		{"Overall missing rate", formatRate(report.Missingness.OverallMissingRate)},
		{"Duplicate rows", strconv.Itoa(report.Duplicates.DuplicateRows)},
	}
	if d := report.Duplicates.DuplicateByIDCols; d != nil {
		rows = append(rows, []string{"Duplicates by " + strings.Join(d.IDCols, ","), strconv.Itoa(d.DuplicateCount)})
	}
	if age := report.AgeHandling; age != nil {
		maxAge := "-"
		if age.MaxAgeAfterParse != nil {
			maxAge = strconv.FormatFloat(*age.MaxAgeAfterParse, 'f', -1, 64)
		}
		rows = append(rows,
			[]string{"Age missing after parse (" + age.AgeCol + ")", strconv.Itoa(age.NumMissingAfterParse)},
			[]string{"Max age after parse", maxAge})
	}
	if tf := report.TimeFeatures; tf != nil {
		rows = append(rows,
			[]string{"Time parsed as (" + tf.TimeCol + ")", tf.ParsedAs},
			[]string{"Invalid time values", strconv.Itoa(tf.NumInvalidTimeValues)})
	}
	return rows
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 2, 64) + "%"
}
