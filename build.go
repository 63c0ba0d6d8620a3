//go:build ignore

// build.go - ehrqa build system
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: build, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	module  = "ehrqa"
	mainPkg = "./cmd/ehrqa"
)

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	RootDir string
	DistDir string
	Commit  string
}

// release targets as GOOS/GOARCH
var releaseTargets = []string{
	"linux/amd64",
	"linux/arm64",
	"darwin/arm64",
	"windows/amd64",
}

var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "build", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	rootDir, err := os.Getwd()
	if err != nil {
		printError(fmt.Sprintf("Failed to get current directory: %v", err))
		os.Exit(1)
	}
	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); err != nil {
		printError("build.go must be run from the module root")
		os.Exit(1)
	}

	ctx := &BuildContext{
		Verbose: *verbose,
		RootDir: rootDir,
		DistDir: filepath.Join(rootDir, "dist"),
		Commit:  gitCommit(rootDir),
	}

	printHeader()
	startTime := time.Now()

	switch *target {
	case "build":
		build(ctx, "", "")
	case "test":
		runTests(ctx)
	case "clean":
		clean(ctx)
	case "release":
		release(ctx)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        ehrqa - Build System               " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func ldflags(ctx *BuildContext) string {
	pkg := module + "/pkg/contracts"
	return fmt.Sprintf("-s -w -X %s.BuildTime=%s -X %s.GitCommit=%s",
		pkg, time.Now().UTC().Format(time.RFC3339), pkg, ctx.Commit)
}

// build compiles the CLI into dist/. Empty goos and goarch build for the host.
func build(ctx *BuildContext, goos, goarch string) {
	name := module
	if goos != "" {
		name = fmt.Sprintf("%s-%s-%s", module, goos, goarch)
	}
	if goos == "windows" {
		name += ".exe"
	}
	outputPath := filepath.Join(ctx.DistDir, name)

	printInfo(fmt.Sprintf("Building %s...", name))

	args := []string{"build", "-trimpath", "-ldflags", ldflags(ctx), "-o", outputPath, mainPkg}
	if ctx.Verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
	}

	cmd := exec.Command("go", args...)
	cmd.Dir = ctx.RootDir
	cmd.Env = os.Environ()
	if goos != "" {
		cmd.Env = append(cmd.Env, "GOOS="+goos, "GOARCH="+goarch, "CGO_ENABLED=0")
	}
	if ctx.Verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", name, sizeMB))
	}
}

func runTests(ctx *BuildContext) {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = ctx.RootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

func clean(ctx *BuildContext) {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(ctx.DistDir); err != nil {
		printError(fmt.Sprintf("Failed to clean dist directory: %v", err))
		return
	}
	printSuccess("Build artifacts cleaned")
}

// release cross-compiles every release target and writes VERSION.txt
func release(ctx *BuildContext) {
	printInfo("Building release version...")
	clean(ctx)

	for _, t := range releaseTargets {
		goos, goarch, _ := strings.Cut(t, "/")
		build(ctx, goos, goarch)
	}

	content := fmt.Sprintf("ehrqa\nCommit: %s\nBuilt: %s\n", ctx.Commit, time.Now().Format("2006-01-02 15:04:05"))
	if err := os.WriteFile(filepath.Join(ctx.DistDir, "VERSION.txt"), []byte(content), 0644); err != nil {
		printWarning(fmt.Sprintf("Failed to write VERSION.txt: %v", err))
	}
	printSuccess("Release build completed")
}

func gitCommit(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  build             Build ehrqa for the host into dist/ (default)")
	fmt.Println("  test              Run all tests with the race detector")
	fmt.Println("  clean             Remove dist/")
	fmt.Println("  release           Cross-compile release binaries")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v                Verbose output")
}
