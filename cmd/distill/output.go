package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// output writes data to stdout in the format selected by --output.
func output(data any) error {
	return outputTo(os.Stdout, data)
}

func outputTo(w io.Writer, data any) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml", "":
		// yaml.v2 cannot marshal map[string]any values directly; round-trip
		// through JSON so decoded documents render cleanly.
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(jsonBytes, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}
