package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/distill/internal/config"
	"github.com/jackzampolin/distill/internal/extract"
	"github.com/jackzampolin/distill/internal/schema"
)

var (
	extractSchemaFile string
	extractPrompt     string
	extractPromptFile string
	extractInputs     []string
	extractImages     []string
	extractProvider   string
	extractModel      string
	extractRetries    int
	extractTimeout    time.Duration
	extractJobs       int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run a structured extraction against the configured model endpoint",
	Long: `Extract reads a schema document and a prompt, invokes the model, and
prints the validated structured result.

With one or more --input files, the extraction runs once per file with the
file's content appended to the prompt; independent extractions fan out
across --jobs workers.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractSchemaFile, "schema", "", "schema document (YAML, required)")
	extractCmd.Flags().StringVarP(&extractPrompt, "prompt", "p", "", "extraction instructions")
	extractCmd.Flags().StringVar(&extractPromptFile, "prompt-file", "", "read instructions from a file")
	extractCmd.Flags().StringArrayVar(&extractInputs, "input", nil, "source text file (repeatable; one extraction per file)")
	extractCmd.Flags().StringArrayVar(&extractImages, "image", nil, "image attachment (repeatable)")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "", "provider name (default from config)")
	extractCmd.Flags().StringVar(&extractModel, "model", "", "model override")
	extractCmd.Flags().IntVar(&extractRetries, "max-retries", 0, "corrective retry budget (default from config)")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 0, "per-attempt timeout (default from config)")
	extractCmd.Flags().IntVar(&extractJobs, "jobs", 0, "concurrent extractions for batch input (default from config)")
	_ = extractCmd.MarkFlagRequired("schema")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	cfg := cm.Get()

	desc, err := schema.LoadFile(extractSchemaFile)
	if err != nil {
		return err
	}

	instructions, err := loadInstructions()
	if err != nil {
		return err
	}

	images := make([][]byte, 0, len(extractImages))
	for _, path := range extractImages {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", path, err)
		}
		images = append(images, data)
	}

	reg, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}
	reg.SetLogger(logger)

	providerName := extractProvider
	if providerName == "" {
		providerName = cfg.Defaults.LLMProvider
	}
	client, err := reg.GetLLM(providerName)
	if err != nil {
		return err
	}

	opts := extract.Options{
		Model:             extractModel,
		MaxRetries:        extractRetries,
		TimeoutPerAttempt: extractTimeout,
		Images:            images,
		Temperature:       cfg.Defaults.Temperature,
		MaxTokens:         cfg.Defaults.MaxTokens,
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = cfg.Defaults.MaxRetries
	}
	if opts.TimeoutPerAttempt == 0 {
		opts.TimeoutPerAttempt = time.Duration(cfg.Defaults.TimeoutPerAttempt) * time.Second
	}

	ex := extract.New(client, logger)

	// Single extraction when no input files are given.
	if len(extractInputs) == 0 {
		res, err := ex.Extract(ctx, desc, instructions, opts)
		if err != nil {
			return reportFailure(err)
		}
		return output(map[string]any{
			"value":    res.Value,
			"attempts": res.Attempts,
			"usage":    res.Usage,
		})
	}

	// Batch: one independent extraction per input file, each with its own
	// allocator, fanned out across workers.
	jobs := extractJobs
	if jobs == 0 {
		jobs = cfg.Defaults.MaxWorkers
	}
	if jobs <= 0 {
		jobs = 1
	}

	results := make([]map[string]any, len(extractInputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range extractInputs {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read input %s: %w", path, err)
			}
			body := instructions + "\n\nSource material:\n" + string(data)
			res, err := ex.Extract(gctx, desc, body, opts)
			if err != nil {
				results[i] = map[string]any{"input": path, "error": failureDetail(err)}
				return nil // batch continues past individual failures
			}
			results[i] = map[string]any{
				"input":    path,
				"value":    res.Value,
				"attempts": res.Attempts,
				"usage":    res.Usage,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return output(results)
}

func loadInstructions() (string, error) {
	if extractPrompt != "" {
		return extractPrompt, nil
	}
	if extractPromptFile != "" {
		data, err := os.ReadFile(extractPromptFile)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("either --prompt or --prompt-file is required")
}

// reportFailure prints terminal diagnostics before surfacing the error.
func reportFailure(err error) error {
	if detail := failureDetail(err); detail != nil {
		_ = output(detail)
	}
	return err
}

func failureDetail(err error) map[string]any {
	var ee *extract.ExtractionError
	if !errors.As(err, &ee) {
		return map[string]any{"error": err.Error()}
	}
	detail := map[string]any{
		"error":  ee.Error(),
		"reason": string(ee.Reason),
		"trace":  ee.Trace,
	}
	if ee.LastRaw != "" {
		detail["last_response"] = ee.LastRaw
	}
	if len(ee.LastViolations) > 0 {
		detail["last_violations"] = ee.LastViolations
	}
	return detail
}
