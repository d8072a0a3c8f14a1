package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/distill/internal/config"
)

var providersProbeTimeout time.Duration

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		return output(providerRows(cm.Get()))
	},
}

// providerRows renders the configured providers sorted by name.
func providerRows(cfg *config.Config) []map[string]any {
	names := make([]string, 0, len(cfg.LLMProviders))
	for name := range cfg.LLMProviders {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		pc := cfg.LLMProviders[name]
		rows = append(rows, map[string]any{
			"name":       name,
			"type":       pc.Type,
			"model":      pc.Model,
			"enabled":    pc.Enabled,
			"rate_limit": pc.RateLimit,
		})
	}
	return rows
}

var providersCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe enabled providers for readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		reg, err := cm.Get().BuildRegistry()
		if err != nil {
			return err
		}
		reg.SetLogger(logger)

		for _, name := range reg.ListLLM() {
			if err := reg.WaitReady(cmd.Context(), name, providersProbeTimeout); err != nil {
				return fmt.Errorf("provider %s not ready: %w", name, err)
			}
			logger.Info("provider ready", "name", name)
		}
		return nil
	},
}

func init() {
	providersCheckCmd.Flags().DurationVar(
		&providersProbeTimeout, "timeout", 30*time.Second, "total time to wait for readiness",
	)
	providersCmd.AddCommand(providersCheckCmd)
}
