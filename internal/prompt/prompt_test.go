package prompt

import (
	"strings"
	"testing"

	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/testutil"
)

func TestInitial(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	in := Input{Instructions: "Extract the receipt from the attached scan."}

	req, err := Initial(desc, in)
	if err != nil {
		t.Fatalf("Initial() error = %v", err)
	}

	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first message role = %q", req.Messages[0].Role)
	}
	if req.Messages[0].Content != SystemPrompt() {
		t.Error("system message does not carry the system prompt")
	}

	user := req.Messages[1]
	if user.Role != "user" {
		t.Errorf("second message role = %q", user.Role)
	}
	for _, want := range []string{
		desc.Describe(),
		"Extract the receipt from the attached scan.",
		"Amounts are in the receipt's own currency",
	} {
		if !strings.Contains(user.Content, want) {
			t.Errorf("user message missing %q", want)
		}
	}

	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response format = %+v", req.ResponseFormat)
	}
	if !strings.Contains(string(req.ResponseFormat.JSONSchema), `"strict":true`) {
		t.Error("response format schema is not strict")
	}
}

func TestInitialAttachesImages(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	img := []byte{0xff, 0xd8, 0xff}
	in := Input{Instructions: "Extract.", Images: [][]byte{img}}

	req, err := Initial(desc, in)
	if err != nil {
		t.Fatalf("Initial() error = %v", err)
	}
	user := req.Messages[1]
	if len(user.Images) != 1 || len(user.Images[0]) != 3 {
		t.Errorf("images = %v", user.Images)
	}
}

func TestRetry(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	in := Input{Instructions: "Extract the receipt."}
	lastRaw := `{"merchant": "Corner Store", "category": "snacks"}`
	violations := []schema.Violation{
		{FieldPath: "category", Rule: "enum", Message: `value must be one of "grocery", "restaurant", "other"`},
		{FieldPath: "subtotal", Rule: "required", Message: "required field is missing"},
	}

	req, err := Retry(desc, in, lastRaw, violations)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	user := req.Messages[1].Content
	for _, want := range []string{
		desc.Describe(),
		"Extract the receipt.",
		lastRaw,
		"category: enum",
		"subtotal: required",
		"required field is missing",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("retry prompt missing %q", want)
		}
	}

	// Retries carry the same structured output directive.
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response format = %+v", req.ResponseFormat)
	}
}

func TestRetryTruncatesLongOutput(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	in := Input{Instructions: "Extract."}
	lastRaw := strings.Repeat("x", maxEchoedOutput+500)

	req, err := Retry(desc, in, lastRaw, []schema.Violation{
		{FieldPath: "merchant", Rule: "required", Message: "required field is missing"},
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	user := req.Messages[1].Content
	if !strings.Contains(user, "[truncated]") {
		t.Error("oversized prior output was not truncated")
	}
	if strings.Contains(user, lastRaw) {
		t.Error("full prior output should not be echoed")
	}
}
