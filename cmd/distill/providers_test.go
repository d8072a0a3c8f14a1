package main

import (
	"testing"

	"github.com/jackzampolin/distill/internal/config"
)

func TestProviderRowsSorted(t *testing.T) {
	cfg := &config.Config{LLMProviders: map[string]config.LLMProviderCfg{
		"zeta":  {Type: "openrouter", Model: "m1", Enabled: true, RateLimit: 10},
		"alpha": {Type: "openai", Model: "m2", Enabled: false, RateLimit: 20},
		"mid":   {Type: "openrouter", Model: "m3", Enabled: true, RateLimit: 30},
	}}

	for i := 0; i < 5; i++ {
		rows := providerRows(cfg)
		if len(rows) != 3 {
			t.Fatalf("rows = %d, want 3", len(rows))
		}
		wantNames := []string{"alpha", "mid", "zeta"}
		for j, want := range wantNames {
			if rows[j]["name"] != want {
				t.Fatalf("run %d: rows[%d] = %v, want %q", i, j, rows[j]["name"], want)
			}
		}
	}

	row := providerRows(cfg)[0]
	if row["type"] != "openai" || row["enabled"] != false || row["rate_limit"] != 20 {
		t.Errorf("alpha row = %v", row)
	}
}
