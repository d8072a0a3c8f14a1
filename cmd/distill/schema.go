package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/distill/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect schema documents",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print the prompt-facing description of a schema document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := schema.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Print(desc.Describe())
		return nil
	},
}

var schemaRenderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Print the JSON Schema a schema document compiles to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := schema.LoadFile(args[0])
		if err != nil {
			return err
		}
		raw, err := desc.JSONSchema()
		if err != nil {
			return err
		}
		return output(raw)
	},
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaRenderCmd)
}
