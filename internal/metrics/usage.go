// Package metrics aggregates per-extraction usage: model invocations,
// token counts, cost, and wall time summed over attempt records.
package metrics

import (
	"time"

	"github.com/jackzampolin/distill/internal/providers"
)

// Usage accumulates endpoint spend across the attempts of one extraction.
type Usage struct {
	Invocations      int           `json:"invocations"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	CostUSD          float64       `json:"cost_usd"`
	WallTime         time.Duration `json:"wall_time"`
}

// AddResult folds one successful chat result into the totals.
func (u *Usage) AddResult(res *providers.ChatResult) {
	if res == nil {
		return
	}
	u.Invocations++
	u.PromptTokens += res.PromptTokens
	u.CompletionTokens += res.CompletionTokens
	u.TotalTokens += res.TotalTokens
	u.CostUSD += res.CostUSD
	u.WallTime += res.ExecutionTime
}

// AddFailure counts an invocation that produced no result (transport
// failure) so the invocation total still reflects budget spend.
func (u *Usage) AddFailure(elapsed time.Duration) {
	u.Invocations++
	u.WallTime += elapsed
}
