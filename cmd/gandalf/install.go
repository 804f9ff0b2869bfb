package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/gandalf-mcp/gandalf/internal/config"
	"github.com/gandalf-mcp/gandalf/internal/home"
	"github.com/gandalf-mcp/gandalf/internal/mcp"
)

// serverEntryName is the key gandalf registers under in client configs.
const serverEntryName = "gandalf"

// registrationFile is the installer record under <home>/servers/.
const registrationFile = "gandalf.json"

var (
	flagClient  string
	flagDryRun  bool
	flagKeepHub bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register gandalf in MCP client configurations",
	Long: `Register the gandalf server in the MCP configuration of supported
clients. Existing config files are backed up under the gandalf home
before modification; other registered servers are preserved.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove gandalf from MCP client configurations",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func init() {
	installCmd.Flags().StringVar(&flagClient, "client", "all", "client to configure: cursor, claude-code, windsurf, or all")
	installCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print planned changes without writing anything")
	uninstallCmd.Flags().StringVar(&flagClient, "client", "all", "client to deregister: cursor, claude-code, windsurf, or all")
	uninstallCmd.Flags().BoolVar(&flagKeepHub, "keep-home", false, "keep the gandalf home directory (cache, logs, exports)")
}

// clientConfigPath returns the global MCP config file for a canonical
// client name.
func clientConfigPath(client, userHome string) (string, error) {
	switch client {
	case "cursor":
		return filepath.Join(userHome, ".cursor", "mcp.json"), nil
	case "claude_code":
		return filepath.Join(userHome, ".claude.json"), nil
	case "windsurf":
		return filepath.Join(userHome, ".codeium", "windsurf", "mcp_config.json"), nil
	}
	return "", fmt.Errorf("unknown client %q", client)
}

// resolveClients expands the --client flag to canonical client names.
func resolveClients(flag string) ([]string, error) {
	if flag == "all" || flag == "" {
		return []string{"cursor", "claude_code", "windsurf"}, nil
	}
	name := config.NormalizeSourceName(flag)
	switch name {
	case "cursor", "claude_code", "windsurf":
		return []string{name}, nil
	}
	return nil, usagef("unknown client %q (want cursor, claude-code, windsurf, or all)", flag)
}

func runInstall(cmd *cobra.Command, args []string) error {
	clients, err := resolveClients(flagClient)
	if err != nil {
		return err
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	cfg := config.Load()
	layout := home.New(cfg.Home)
	if !flagDryRun {
		if err := layout.Ensure(); err != nil {
			return fmt.Errorf("preparing home directory: %w", err)
		}
	}

	entry := map[string]any{
		"command": exe,
		"args":    []any{"run"},
	}

	var configured []string
	for _, client := range clients {
		path, err := clientConfigPath(client, userHome)
		if err != nil {
			return err
		}
		if flagDryRun {
			fmt.Printf("would register %q in %s\n", serverEntryName, path)
			continue
		}
		if err := installIntoConfig(path, entry, layout.BackupsDir(), client); err != nil {
			return fmt.Errorf("configuring %s: %w", client, err)
		}
		configured = append(configured, client)
		fmt.Printf("registered %q in %s\n", serverEntryName, path)
	}

	if flagDryRun {
		return nil
	}
	if err := writeRegistration(layout, configured); err != nil {
		return err
	}
	fmt.Printf("done; restart the clients to pick up the server\n")
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	clients, err := resolveClients(flagClient)
	if err != nil {
		return err
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	cfg := config.Load()
	layout := home.New(cfg.Home)

	for _, client := range clients {
		path, err := clientConfigPath(client, userHome)
		if err != nil {
			return err
		}
		removed, err := removeFromConfig(path)
		if err != nil {
			return fmt.Errorf("deconfiguring %s: %w", client, err)
		}
		if removed {
			fmt.Printf("removed %q from %s\n", serverEntryName, path)
		}
	}

	_ = os.Remove(filepath.Join(layout.ServersDir(), registrationFile))
	if !flagKeepHub {
		if err := os.RemoveAll(layout.Root); err != nil {
			return fmt.Errorf("removing home directory: %w", err)
		}
		fmt.Printf("removed %s\n", layout.Root)
	}
	return nil
}

// installIntoConfig merges the gandalf entry into one client config,
// backing up the previous file first.
func installIntoConfig(path string, entry map[string]any, backupDir, client string) error {
	cfg, existed, err := readOrCreateConfig(path)
	if err != nil {
		return err
	}
	if existed {
		if err := backupFile(path, backupDir, client); err != nil {
			return err
		}
	}
	mergeServerEntry(cfg, serverEntryName, entry)
	return writeConfigAtomic(path, cfg)
}

// removeFromConfig deletes the gandalf entry from one client config.
// A missing file or entry is not an error.
func removeFromConfig(path string) (bool, error) {
	cfg, existed, err := readOrCreateConfig(path)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if !removeServerEntry(cfg, serverEntryName) {
		return false, nil
	}
	return true, writeConfigAtomic(path, cfg)
}

// readOrCreateConfig loads a client config as a generic map. A missing
// file yields an empty config and existed=false.
func readOrCreateConfig(path string) (map[string]any, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	return cfg, true, nil
}

// mergeServerEntry sets servers[name] under "mcpServers", preserving
// every other key and server.
func mergeServerEntry(cfg map[string]any, name string, entry map[string]any) {
	servers, ok := cfg["mcpServers"].(map[string]any)
	if !ok {
		servers = map[string]any{}
	}
	servers[name] = entry
	cfg["mcpServers"] = servers
}

// removeServerEntry deletes servers[name]; reports whether it existed.
func removeServerEntry(cfg map[string]any, name string) bool {
	servers, ok := cfg["mcpServers"].(map[string]any)
	if !ok {
		return false
	}
	if _, ok := servers[name]; !ok {
		return false
	}
	delete(servers, name)
	cfg["mcpServers"] = servers
	return true
}

func writeConfigAtomic(path string, cfg map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mcp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// backupFile copies a client config into the backups directory with a
// timestamped name before it is rewritten.
func backupFile(path, backupDir, client string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s%s", client, time.Now().Format("20060102-150405"), filepath.Ext(path))
	return os.WriteFile(filepath.Join(backupDir, name), data, 0o600)
}

// InstallRecord is the registration state under <home>/servers/.
type InstallRecord struct {
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installed_at"`
	Clients     []string  `json:"clients"`
	Tools       []string  `json:"tools"`
}

func writeRegistration(layout *home.Layout, clients []string) error {
	sort.Strings(clients)
	record := InstallRecord{
		Version:     version,
		InstalledAt: time.Now().UTC(),
		Clients:     clients,
		Tools:       mcp.ToolNames(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registration: %w", err)
	}
	path := filepath.Join(layout.ServersDir(), registrationFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing registration: %w", err)
	}
	return nil
}
