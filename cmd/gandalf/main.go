// Gandalf is an MCP sidecar that aggregates conversation history from
// local agentic tools (Cursor, Claude Code, Windsurf) and serves it to
// MCP clients over stdio, together with project file intelligence.
//
// Usage:
//
//	gandalf run [--project-root DIR] [--debug] [--http-addr ADDR]
//	gandalf install [--client cursor|claude-code|windsurf|all] [--dry-run]
//	gandalf uninstall [--client ...] [--keep-home]
//	gandalf status [--json]
//	gandalf monitor [--interval 2s]
//	gandalf version
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Exit codes per the CLI contract.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitInterrupt = 130
)

// errInterrupted marks a SIGINT shutdown so main can exit 130.
var errInterrupted = errors.New("interrupted")

// usageError marks argument-level failures so main can exit 2.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

var rootCmd = &cobra.Command{
	Use:           "gandalf",
	Short:         "MCP sidecar for conversation recall and project context",
	Long:          "gandalf aggregates conversation history from local agentic tools\nand serves it to MCP clients over stdio, together with project file\nintelligence (relevance-ranked listings, git metadata, exports).",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gandalf\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	if !errors.Is(err, errInterrupted) {
		fmt.Fprintf(os.Stderr, "gandalf: %v\n", err)
	}
	return classify(err)
}

// classify maps an execution error onto the CLI exit codes.
func classify(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errInterrupted) {
		return exitInterrupt
	}
	var uerr *usageError
	if errors.As(err, &uerr) || strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	return exitFailure
}
