package integration

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"ehrqa/internal/config"
	"ehrqa/internal/dataset"
	"ehrqa/internal/operations"
	"ehrqa/internal/runstore"
	"ehrqa/internal/services"
	"ehrqa/internal/shared/testutil"
	"ehrqa/pkg/contracts/domain"
)

// PipelineIntegrationTestSuite runs the QA service against real files and a
// real run history and checks that every output agrees with the others
type PipelineIntegrationTestSuite struct {
	suite.Suite
	tempDir string
	store   *runstore.Store
	service *services.QAService
	opts    operations.Options
}

func TestPipelineIntegration(t *testing.T) {
	suite.Run(t, new(PipelineIntegrationTestSuite))
}

func (s *PipelineIntegrationTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()

	store, err := runstore.Open(context.Background(), filepath.Join(s.tempDir, "runs.db"))
	s.Require().NoError(err)
	s.store = store

	logger, _ := testutil.NewTestLogger(s.T())
	s.service = services.NewQAService(operations.NewPipeline(logger, nil), store, logger)
	s.opts = operations.Options{
		AgeColumn:         "age",
		TimeColumn:        "admit_time",
		IdentifierColumns: []string{"patient_id"},
		OutlierColumns:    []string{"weight_kg", "heart_rate"},
		IQRMultiplier:     1.5,
	}
}

func (s *PipelineIntegrationTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *PipelineIntegrationTestSuite) execute(input, outDir string, opts operations.Options, plots bool) *services.ExecuteResponse {
	resp, err := s.service.Execute(context.Background(), services.ExecuteRequest{
		InputPath: input,
		OutputDir: outDir,
		Options:   opts,
		SavePlots: plots,
	})
	s.Require().NoError(err)
	return resp
}

func (s *PipelineIntegrationTestSuite) TestOutputsAgreeWithReport() {
	input := testutil.WriteFixture(s.T(), s.tempDir, "ehr.csv", testutil.EHRSampleCSV)
	outDir := filepath.Join(s.tempDir, "out")

	resp := s.execute(input, outDir, s.opts, true)
	report := resp.Report

	s.Run("cleaned csv", func() {
		cleaned, err := dataset.LoadCSVFile(resp.Outputs.CleanedCSV)
		s.Require().NoError(err)
		s.Equal(report.Rows, cleaned.Rows())
		s.Equal(append(append([]string{}, report.ColumnNames...), "hour_of_day"), cleaned.ColumnNames())

		age, ok := cleaned.Column("age")
		s.Require().True(ok)
		s.Equal(report.AgeHandling.NumMissingAfterParse, age.MissingCount())
		s.True(age.IsNumeric())
	})

	s.Run("outlier flags csv", func() {
		f, err := os.Open(resp.Outputs.OutlierFlagsCSV)
		s.Require().NoError(err)
		defer f.Close()

		records, err := csv.NewReader(f).ReadAll()
		s.Require().NoError(err)
		s.Require().Len(records, report.Rows+1)
		s.Equal([]string{"weight_kg_iqr_outlier", "heart_rate_iqr_outlier"}, records[0])

		for col, header := range records[0] {
			flagged := 0
			for _, rec := range records[1:] {
				if rec[col] == "true" {
					flagged++
				}
			}
			summary, ok := report.OutliersIQR.Get(strings.TrimSuffix(header, "_iqr_outlier"))
			s.Require().True(ok)
			s.Equal(summary.OutlierCount, flagged, header)
		}
	})

	s.Run("report json", func() {
		data, err := os.ReadFile(resp.ReportPath)
		s.Require().NoError(err)

		var doc domain.ReportDocument
		s.Require().NoError(json.Unmarshal(data, &doc))
		s.Equal(resp.RunID, doc.RunID)
		s.Equal(report, doc.Report)
		s.Equal(resp.Outputs.Workbook, doc.Outputs.Workbook)
		s.Equal(resp.Plots, doc.Plots)
	})

	s.Run("workbook", func() {
		f, err := excelize.OpenFile(filepath.Join(outDir, config.WorkbookName))
		s.Require().NoError(err)
		defer f.Close()
		s.Contains(f.GetSheetList(), "Missingness")
		s.Contains(f.GetSheetList(), "Age")
	})

	s.Run("run history", func() {
		rec, err := s.store.Get(context.Background(), resp.RunID)
		s.Require().NoError(err)
		s.Equal(input, rec.InputFile)
		s.Equal(report.Rows, rec.Rows)
		s.Equal(report.Duplicates.DuplicateRows, rec.DuplicateRows)
		s.InDelta(report.Missingness.OverallMissingRate, rec.OverallMissingRate, 1e-12)
		s.Equal(report, rec.Report)
	})
}

func (s *PipelineIntegrationTestSuite) TestXLSXMatchesCSV() {
	csvPath := testutil.WriteFixture(s.T(), s.tempDir, "ehr.csv", testutil.EHRSampleCSV)
	xlsxPath := filepath.Join(s.tempDir, "ehr.xlsx")
	s.writeWorkbook(xlsxPath, testutil.EHRSampleCSV)

	fromCSV := s.execute(csvPath, filepath.Join(s.tempDir, "csv"), s.opts, false).Report
	fromXLSX := s.execute(xlsxPath, filepath.Join(s.tempDir, "xlsx"), s.opts, false).Report

	s.Equal(xlsxPath, fromXLSX.InputFile)
	fromXLSX.InputFile = fromCSV.InputFile
	s.Equal(fromCSV, fromXLSX)
}

func (s *PipelineIntegrationTestSuite) TestWorkersProduceIdenticalReports() {
	input := testutil.WriteFixture(s.T(), s.tempDir, "ehr.csv", testutil.EHRSampleCSV)

	sequential := s.opts
	sequential.OutlierColumns = nil
	parallel := sequential
	parallel.Workers = 4

	a := s.execute(input, filepath.Join(s.tempDir, "seq"), sequential, false)
	b := s.execute(input, filepath.Join(s.tempDir, "par"), parallel, false)
	s.Equal(a.Report, b.Report)

	seqFlags, err := os.ReadFile(a.Outputs.OutlierFlagsCSV)
	s.Require().NoError(err)
	parFlags, err := os.ReadFile(b.Outputs.OutlierFlagsCSV)
	s.Require().NoError(err)
	s.Equal(string(seqFlags), string(parFlags))

	runs, err := s.store.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.Equal(b.RunID, runs[0].ID)
}

func (s *PipelineIntegrationTestSuite) writeWorkbook(path, content string) {
	records, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	s.Require().NoError(err)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, rec := range records {
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		s.Require().NoError(err)
		s.Require().NoError(f.SetSheetRow(sheet, cell, &row))
	}
	s.Require().NoError(f.SaveAs(path))
}
