// Package extract orchestrates schema-guided extraction: it compiles
// prompts, invokes the model endpoint, decodes and validates responses,
// and feeds violations back into bounded corrective retries.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/distill/internal/decode"
	"github.com/jackzampolin/distill/internal/identity"
	"github.com/jackzampolin/distill/internal/metrics"
	"github.com/jackzampolin/distill/internal/prompt"
	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/validate"
)

// DefaultMaxRetries bounds corrective retries when the caller does not
// say otherwise. Total invocations never exceed MaxRetries+1.
const DefaultMaxRetries = 3

// RuleDecode is the pseudo-violation rule synthesized when a response
// cannot be decoded, so the corrective prompt can describe the parse
// failure the same way it describes semantic ones.
const RuleDecode = "decode_error"

// Options configure one extraction call.
type Options struct {
	// Model overrides the client's default model.
	Model string
	// MaxRetries bounds corrective retries (default DefaultMaxRetries).
	// Negative means zero retries.
	MaxRetries int
	// TimeoutPerAttempt bounds each model invocation. Zero means no
	// per-attempt timeout beyond the client's own.
	TimeoutPerAttempt time.Duration
	// Rules are extra validation rules appended after the descriptor's
	// registered rules.
	Rules []schema.Rule
	// Images are binary attachments sent with the instructions.
	Images [][]byte

	Temperature float64
	MaxTokens   int
}

func (o Options) maxRetries() int {
	if o.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		return 0
	}
	return o.MaxRetries
}

// AttemptRecord traces one request/response/validate cycle.
type AttemptRecord struct {
	Attempt     int                `json:"attempt"`
	RawResponse string             `json:"raw_response,omitempty"`
	DecodeOK    bool               `json:"decode_ok"`
	Violations  []schema.Violation `json:"violations,omitempty"`
	// Transport holds the transport failure for attempts that never
	// produced a response body.
	Transport string        `json:"transport,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Result is a successful extraction.
type Result struct {
	// Value conforms to the descriptor; numbers are json.Number.
	Value map[string]any `json:"value"`
	// Attempts is the number of model invocations spent.
	Attempts int             `json:"attempts"`
	Trace    []AttemptRecord `json:"trace,omitempty"`
	Usage    metrics.Usage   `json:"usage"`

	ids *identity.Allocator
}

// Resolve looks up a shared-space id in this result.
func (r *Result) Resolve(space, id string) (identity.Node, bool) {
	if r.ids == nil {
		return identity.Node{}, false
	}
	return r.ids.Resolve(space, id)
}

// Reason classifies a terminal extraction failure.
type Reason string

const (
	DecodeExhausted     Reason = "decode_exhausted"
	ValidationExhausted Reason = "validation_exhausted"
	TransportExhausted  Reason = "transport_exhausted"
	Cancelled           Reason = "cancelled"
)

// ExtractionError is the only error type Extract returns: every
// per-attempt failure is converted into retry fuel, and only budget
// exhaustion or cancellation surfaces, carrying the full trace.
type ExtractionError struct {
	Reason Reason
	// LastRaw is the final attempt's raw response, when there was one.
	LastRaw string
	// LastViolations is the final attempt's violation list, when the
	// failure was semantic.
	LastViolations []schema.Violation
	Trace          []AttemptRecord
	Err            error
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + string(e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor runs extractions against one LLM client. Extractions are
// independent; an Extractor is safe for concurrent use.
type Extractor struct {
	client providers.LLMClient
	logger *slog.Logger
}

// New creates an extractor for the given client.
func New(client providers.LLMClient, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, logger: logger}
}

// Extract runs the full request/decode/validate/retry cycle and returns
// the first valid value or a terminal *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, desc *schema.Descriptor, instructions string, opts Options) (*Result, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	maxRetries := opts.maxRetries()
	in := prompt.Input{Instructions: instructions, Images: opts.Images}
	alloc := identity.NewAllocator()
	extractionID := uuid.New().String()
	logger := e.logger.With("extraction_id", extractionID, "schema", desc.Name)

	req, err := prompt.Initial(desc, in)
	if err != nil {
		return nil, err
	}
	applyOptions(req, opts)

	var (
		trace []AttemptRecord
		usage metrics.Usage
	)

	for attempt := 0; ; attempt++ {
		record := AttemptRecord{Attempt: attempt}
		start := time.Now()

		res, err := e.invoke(ctx, req, opts.TimeoutPerAttempt)
		record.Duration = time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				// Cancellation wins over whatever the attempt produced:
				// partially-assigned ids must never look like success.
				record.Transport = ctx.Err().Error()
				trace = append(trace, record)
				return nil, &ExtractionError{Reason: Cancelled, Trace: trace, Err: ctx.Err()}
			}
			record.Transport = err.Error()
			trace = append(trace, record)
			usage.AddFailure(record.Duration)
			logger.Warn("attempt failed in transport", "attempt", attempt, "error", err)

			if attempt < maxRetries {
				// Nothing to correct semantically: retry the unmodified
				// request under the same budget.
				continue
			}
			return nil, &ExtractionError{Reason: TransportExhausted, Trace: trace, Err: err}
		}

		usage.AddResult(res)
		record.RawResponse = res.Content

		// The response re-declares every node; stale bindings from the
		// previous attempt must not shadow it. Retired ids stay retired.
		alloc.Reset()

		doc, err := decode.Decode(res.Content, desc, alloc)
		if err != nil {
			var de *decode.DecodeError
			if !errors.As(err, &de) {
				trace = append(trace, record)
				return nil, err
			}
			pseudo := []schema.Violation{{
				FieldPath: "",
				Rule:      RuleDecode,
				Message:   de.Error(),
			}}
			record.Violations = pseudo
			trace = append(trace, record)
			logger.Warn("attempt failed to decode", "attempt", attempt, "error", de)

			if attempt < maxRetries {
				req, err = prompt.Retry(desc, in, res.Content, pseudo)
				if err != nil {
					return nil, err
				}
				applyOptions(req, opts)
				continue
			}
			return nil, &ExtractionError{
				Reason:  DecodeExhausted,
				LastRaw: res.Content,
				Trace:   trace,
				Err:     de,
			}
		}
		record.DecodeOK = true

		violations, err := validate.Validate(doc, desc, alloc, opts.Rules...)
		if err != nil {
			trace = append(trace, record)
			return nil, err
		}
		record.Violations = violations
		trace = append(trace, record)

		if len(violations) == 0 {
			if ctx.Err() != nil {
				return nil, &ExtractionError{Reason: Cancelled, Trace: trace, Err: ctx.Err()}
			}
			logger.Info("extraction succeeded", "attempts", attempt+1, "total_tokens", usage.TotalTokens)
			return &Result{
				Value:    doc.Root,
				Attempts: attempt + 1,
				Trace:    trace,
				Usage:    usage,
				ids:      alloc,
			}, nil
		}

		logger.Warn("attempt failed validation", "attempt", attempt, "violations", len(violations))

		if attempt < maxRetries {
			req, err = prompt.Retry(desc, in, res.Content, violations)
			if err != nil {
				return nil, err
			}
			applyOptions(req, opts)
			continue
		}
		return nil, &ExtractionError{
			Reason:         ValidationExhausted,
			LastRaw:        res.Content,
			LastViolations: violations,
			Trace:          trace,
		}
	}
}

// invoke runs one model invocation under the per-attempt timeout.
func (e *Extractor) invoke(ctx context.Context, req *providers.ChatRequest, timeout time.Duration) (*providers.ChatResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.client.Chat(ctx, req)
}

func applyOptions(req *providers.ChatRequest, opts Options) {
	req.Model = opts.Model
	req.Temperature = opts.Temperature
	req.MaxTokens = opts.MaxTokens
}
