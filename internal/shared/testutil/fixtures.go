package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// EHRSampleCSV is a small extract with the problems the QA pipeline looks for:
// a censored age, an exact duplicate row, a repeated patient id, missing cells,
// a time column that needs the seconds format and one numeric outlier.
const EHRSampleCSV = `patient_id,encounter_id,age,admit_time,weight_kg,heart_rate,notes
P001,E01,34,08:30:00,70.5,72,
P002,E02,>89,09:15:10,82.0,80,follow-up
P003,E03,57,23:59:59,,76,NA
P004,E04,41,07:05:00,68.2,74,
P004,E05,N/A,12:00:00,69.0,71,repeat visit
P001,E01,34,08:30:00,70.5,72,
P006,E07,63,not recorded,250.0,78,
`

// TimeHHMMCSV only carries hour:minute times
const TimeHHMMCSV = `id,time
1,08:30
2,09:15
3,23:59
`

// ConstantColumnCSV has a numeric column with zero spread
const ConstantColumnCSV = `id,value
1,5
2,5
3,5
4,5
`

// WriteFixture writes content to dir/name and returns the path
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}
