package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gandalf-mcp/gandalf/internal/config"
	"github.com/gandalf-mcp/gandalf/internal/home"
	"github.com/gandalf-mcp/gandalf/internal/sources"
	"github.com/gandalf-mcp/gandalf/internal/sources/claudecode"
	"github.com/gandalf-mcp/gandalf/internal/sources/cursor"
	"github.com/gandalf-mcp/gandalf/internal/sources/windsurf"
)

const statusProbeTimeout = 10 * time.Second

var flagStatusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the environment and write the readiness file",
	Long: `Probe the gandalf home directory, the configuration, and the
conversation sources, then write the summary to <home>/readiness.json.
Exits non-zero when the environment is not ready to serve.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusJSON, "json", false, "print the readiness summary as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	layout := home.New(cfg.Home)

	readiness := buildReadiness(cfg, layout)

	if err := layout.Ensure(); err == nil {
		if err := layout.WriteReadiness(readiness); err != nil {
			fmt.Fprintf(os.Stderr, "warning: writing readiness file: %v\n", err)
		}
	}

	if flagStatusJSON {
		data, err := json.MarshalIndent(readiness, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		printReadiness(readiness)
	}

	if !readiness.Ready {
		return fmt.Errorf("environment is not ready")
	}
	return nil
}

// buildReadiness runs every probe and assembles the summary. Detection
// failures are reported per check; only config and home problems make
// the environment unready, a host without any conversation stores can
// still serve project tools.
func buildReadiness(cfg *config.Config, layout *home.Layout) *home.Readiness {
	ctx, cancel := context.WithTimeout(context.Background(), statusProbeTimeout)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := cfg.Validate(); err != nil {
		checks["config"] = err.Error()
		ready = false
	} else {
		checks["config"] = "ok"
	}

	if err := layout.Ensure(); err != nil {
		checks["home"] = err.Error()
		ready = false
	} else {
		checks["home"] = "ok"
	}

	zl := zap.NewNop()
	for _, src := range []sources.Source{
		cursor.New(nil, zl),
		claudecode.New("", zl),
		windsurf.New(nil, zl),
	} {
		name := "source:" + string(src.Name())
		if src.Detect(ctx) {
			checks[name] = fmt.Sprintf("detected (%d stores)", len(src.Stores(ctx)))
		} else {
			checks[name] = "not detected"
		}
	}

	return &home.Readiness{
		CheckedAt: time.Now().UTC(),
		Version:   version,
		Home:      layout.Root,
		Ready:     ready,
		Checks:    checks,
	}
}

func printReadiness(r *home.Readiness) {
	state := "ready"
	if !r.Ready {
		state = "not ready"
	}
	fmt.Printf("gandalf %s (%s)\n", r.Version, state)
	fmt.Printf("home: %s\n", r.Home)
	for name, result := range r.Checks {
		fmt.Printf("  %-22s %s\n", name, result)
	}
}
