package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"bugboard/internal/app"
	"bugboard/internal/credential"
	"bugboard/internal/export"
	"bugboard/internal/model"
	"bugboard/internal/source/bugzilla"
	"bugboard/internal/store"
)

var (
	flagConfigPath string
	flagDBPath     string
)

func main() {
	root := &cobra.Command{
		Use:   "bugboard",
		Short: "Terminal dashboard for Bugzilla bugs",
		Long: "bugboard polls one or more Bugzilla instances, caches bugs " +
			"locally, and presents them in a terminal UI. It can also export " +
			"bugs as taskwarrior import records.",
		RunE: runTUI,
	}

	root.PersistentFlags().StringVar(
		&flagConfigPath, "config", model.DefaultConfigPath(),
		"path to the YAML configuration file",
	)
	root.PersistentFlags().StringVar(
		&flagDBPath, "db", model.DefaultDatabasePath(),
		"path to the SQLite cache database",
	)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export bugs as taskwarrior import records",
		Long: "Fetches bugs from every enabled target in the configuration " +
			"file and writes a JSON array of taskwarrior import records to stdout.",
		RunE: runExport,
	}

	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runTUI opens the local cache, merges file-configured targets into the
// store, and starts the Bubble Tea program.
func runTUI(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(filepath.Dir(flagDBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	s, err := store.NewSQLiteStore(flagDBPath)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer s.Close()

	cfg, err := model.LoadConfig(flagConfigPath)
	if err != nil {
		return err
	}

	// Targets declared in the config file are merged into the store so
	// they show up alongside targets added through the UI.
	ctx := context.Background()
	for _, src := range cfg.Sources {
		if err := s.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("registering target %q: %w", src.Name, err)
		}
	}

	p := tea.NewProgram(app.New(s), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}

	return nil
}

// runExport fetches bugs from every enabled target and writes
// taskwarrior import records to stdout.
func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := model.LoadConfig(flagConfigPath)
	if err != nil {
		return err
	}

	var records []export.Record
	ctx := cmd.Context()

	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}

		bzCfg, err := targetConfig(src)
		if err != nil {
			return fmt.Errorf("target %q: %w", src.Name, err)
		}

		adapter := bugzilla.NewAdapter(bzCfg, src.ID)
		issues, err := adapter.Issues(ctx)
		if err != nil {
			return fmt.Errorf("target %q: %w", src.Name, err)
		}

		for _, issue := range issues {
			records = append(records, issue.TaskwarriorRecord())
		}
	}

	return export.Write(os.Stdout, records)
}

// targetConfig builds a validated Bugzilla configuration from a config
// file entry. Secrets may live directly in the file (password/api_key
// keys) or in the system keyring.
func targetConfig(src model.SourceConfig) (bugzilla.Config, error) {
	cfg := bugzilla.Config{
		BaseURI: src.BaseURL,
	}

	if src.Config != nil {
		cfg.Username = src.Config["username"]
		cfg.Password = src.Config["password"]
		cfg.APIKey = src.Config["api_key"]
		cfg.OnlyIfAssigned = src.Config["only_if_assigned"]
		cfg.AlsoUnassigned = src.Config["also_unassigned"] == "true"
	}

	if cfg.Password == "" && cfg.APIKey == "" {
		secret, err := credential.Get("bugzilla-" + src.ID)
		if err == nil && secret != "" {
			if src.Config["auth"] == "api_key" {
				cfg.APIKey = secret
			} else {
				cfg.Password = secret
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return bugzilla.Config{}, err
	}

	return cfg, nil
}
