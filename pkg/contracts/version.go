package contracts

import (
	"fmt"
	"runtime"
)

const (
	Version = "0.3.0"

	// ReportFormatVersion versions the qa_report.json layout
	ReportFormatVersion = "v1"

	// APIVersion versions the /api routes
	APIVersion = "v1"
)

// Set with -ldflags "-X ehrqa/pkg/contracts.BuildTime=..." by build.go
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is printed by "ehrqa version --json" and served by /api/version
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	ReportFormat string `json:"report_format"`
	APIVersion   string `json:"api_version"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		ReportFormat: ReportFormatVersion,
		APIVersion:   APIVersion,
	}
}

// GetFullVersionString is the one-line form of GetVersionInfo
func GetFullVersionString() string {
	v := GetVersionInfo()
	return fmt.Sprintf("ehrqa v%s (commit %s, built %s, %s %s/%s)",
		v.Version, v.GitCommit, v.BuildTime, v.GoVersion, v.OS, v.Architecture)
}
