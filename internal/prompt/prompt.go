// Package prompt renders schema descriptors and user instructions into
// chat requests, including the corrective retry prompt that embeds prior
// violations.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/schema"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

//go:embed retry.tmpl
var retryPromptTmpl string

var (
	userTemplate  = template.Must(template.New("user").Parse(userPromptTmpl))
	retryTemplate = template.Must(template.New("retry").Parse(retryPromptTmpl))
)

// maxEchoedOutput caps how much of the prior raw response is echoed back
// into a retry prompt.
const maxEchoedOutput = 12000

// Input carries the caller's side of a compiled request.
type Input struct {
	Instructions string
	// Images are optional binary attachments, data-URI encoded by the
	// transport.
	Images [][]byte
}

// SystemPrompt returns the extraction system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// Initial compiles the first request of an extraction: rendered schema,
// guidance, instructions, and the structured output directive.
func Initial(desc *schema.Descriptor, in Input) (*providers.ChatRequest, error) {
	body, err := renderUser(desc, in)
	if err != nil {
		return nil, err
	}
	return buildRequest(desc, in, body)
}

// Retry compiles a corrective follow-up request embedding the prior raw
// response and a rendering of every violation, steering the model to fix
// exactly the flagged fields.
func Retry(desc *schema.Descriptor, in Input, lastRaw string, violations []schema.Violation) (*providers.ChatRequest, error) {
	lastRaw = strings.TrimSpace(lastRaw)
	if len(lastRaw) > maxEchoedOutput {
		lastRaw = lastRaw[:maxEchoedOutput] + "\n...[truncated]"
	}

	var buf bytes.Buffer
	data := struct {
		SchemaText   string
		Guidance     string
		Instructions string
		LastOutput   string
		Violations   []schema.Violation
	}{
		SchemaText:   desc.Describe(),
		Guidance:     strings.TrimSpace(desc.Guidance),
		Instructions: in.Instructions,
		LastOutput:   lastRaw,
		Violations:   violations,
	}
	if err := retryTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render retry prompt: %w", err)
	}
	return buildRequest(desc, in, buf.String())
}

func renderUser(desc *schema.Descriptor, in Input) (string, error) {
	var buf bytes.Buffer
	data := struct {
		SchemaText   string
		Guidance     string
		Instructions string
	}{
		SchemaText:   desc.Describe(),
		Guidance:     strings.TrimSpace(desc.Guidance),
		Instructions: in.Instructions,
	}
	if err := userTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render user prompt: %w", err)
	}
	return buf.String(), nil
}

func buildRequest(desc *schema.Descriptor, in Input, userBody string) (*providers.ChatRequest, error) {
	rf, err := desc.ResponseFormat()
	if err != nil {
		return nil, err
	}

	userMsg := providers.Message{Role: "user", Content: userBody}
	if len(in.Images) > 0 {
		userMsg.Images = in.Images
	}

	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			userMsg,
		},
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: rf,
		},
	}, nil
}
