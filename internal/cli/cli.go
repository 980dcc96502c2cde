package cli

import (
	"flag"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/vk/fabr/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating the program should exit cleanly
// (help requested, no workspace given), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("fabr", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
fabr - a declarative, incremental build-rule interpreter.

Usage:
  fabr [options] [WORKSPACE_ROOT]

Arguments:
  WORKSPACE_ROOT
    Directory walked for BUILD.hcl rule files.

Options:
`)
		flagSet.PrintDefaults()
	}

	rootFlag := flagSet.String("C", "", "Workspace root directory.")
	outFlag := flagSet.String("out", "fabr-out", "Artifact output directory.")
	cacheFlag := flagSet.String("cache", "fabr-out/.cache", "Incremental cache directory.")
	summaryFlag := flagSet.String("summary", "", "Write the JSON build summary to this file instead of stdout.")
	workersFlag := flagSet.Int("workers", runtime.NumCPU(), "Number of concurrently building targets.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Per-target wall-clock limit. 0 disables it.")
	ccFlag := flagSet.String("cc", "", "Compiler driver. Defaults to gcc.")
	arFlag := flagSet.String("ar", "", "Archiver. Defaults to ar.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	root := *rootFlag
	if root == "" && flagSet.NArg() > 0 {
		root = flagSet.Arg(0)
	}
	if root == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *timeoutFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "timeout cannot be negative"}
	}

	config, err := app.NewConfig(app.Config{
		WorkspaceRoot: root,
		OutDir:        *outFlag,
		CacheDir:      *cacheFlag,
		SummaryPath:   *summaryFlag,
		CC:            *ccFlag,
		AR:            *arFlag,
		WorkerCount:   *workersFlag,
		TargetTimeout: *timeoutFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, false, nil
}
