package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/distill/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "distill",
	Short: "Schema-guided structured extraction from LLM output",
	Long: `Distill turns free-text LLM responses into validated, strongly-typed
structured records.

Given a schema document, a prompt, and a model endpoint, distill:
  - renders the schema into the request
  - decodes the response, tolerating formatting noise
  - validates structure, references, and cross-field invariants
  - feeds violations back into bounded corrective retries`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.distill/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(configCmd)
}
