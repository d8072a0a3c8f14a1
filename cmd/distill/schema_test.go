package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

const testSchemaDoc = `
name: receipt
root:
  fields:
    - name: merchant
      type: string
      required: true
    - name: subtotal
      type: number
      required: true
`

func writeSchemaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(testSchemaDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	old := os.Stdout
	os.Stdout = w
	runErr := fn()
	os.Stdout = old
	w.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatal(err)
	}
	return buf.String(), runErr
}

func TestSchemaRenderCmd(t *testing.T) {
	path := writeSchemaFile(t)
	outputFormat = "json"
	t.Cleanup(func() { outputFormat = "yaml" })

	out, err := captureStdout(t, func() error {
		return schemaRenderCmd.RunE(schemaRenderCmd, []string{path})
	})
	if err != nil {
		t.Fatalf("render error = %v", err)
	}

	var s map[string]any
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("render output is not JSON: %v\n%s", err, out)
	}
	if s["type"] != "object" {
		t.Errorf("rendered schema type = %v", s["type"])
	}
	props, ok := s["properties"].(map[string]any)
	if !ok {
		t.Fatal("rendered schema has no properties")
	}
	if _, ok := props["merchant"]; !ok {
		t.Error("rendered schema missing merchant")
	}
}

func TestSchemaShowCmd(t *testing.T) {
	path := writeSchemaFile(t)

	out, err := captureStdout(t, func() error {
		return schemaShowCmd.RunE(schemaShowCmd, []string{path})
	})
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if len(out) == 0 {
		t.Fatal("show produced no output")
	}
	for _, want := range []string{"Output shape: receipt", "merchant (string, required)"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("show output missing %q\n%s", want, out)
		}
	}
}

func TestSchemaRenderCmdMissingFile(t *testing.T) {
	err := schemaRenderCmd.RunE(schemaRenderCmd, []string{filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil {
		t.Error("expected error for missing schema file")
	}
}
