package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gandalf-mcp/gandalf/internal/config"
	"github.com/gandalf-mcp/gandalf/internal/home"
	"github.com/gandalf-mcp/gandalf/internal/monitor"
)

var flagInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Terminal dashboard over the session logs",
	Long: `Tail the newest session log under the gandalf home and render
tool call activity as a live terminal dashboard. Run it alongside a
serving gandalf process; the dashboard never touches the MCP transport.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&flagInterval, "interval", 2*time.Second, "refresh interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if flagInterval <= 0 {
		return usagef("interval must be positive, got %s", flagInterval)
	}
	cfg := config.Load()
	layout := home.New(cfg.Home)

	model := monitor.NewModel(layout.LogsDir(), flagInterval)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
