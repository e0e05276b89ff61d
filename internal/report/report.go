// Package report assembles the end-of-run bandwidth report and renders or
// exports it.
package report

import (
	"time"

	"sessionq/internal/config"
	"sessionq/internal/runner"
	"sessionq/internal/stats"
)

// TierCost is the price of some volume of traffic under one tier, in USD
// and in the configured local currency.
type TierCost struct {
	Tier       string  `json:"tier" yaml:"tier"`
	PricePerGB float64 `json:"price_per_gb" yaml:"price_per_gb"`
	USD        float64 `json:"usd" yaml:"usd"`
	Local      float64 `json:"local" yaml:"local"`
}

// Report is the final summary of a run. Stats is nil when no session
// produced usage data.
type Report struct {
	RunID        string                `json:"run_id" yaml:"run_id"`
	GeneratedAt  time.Time             `json:"generated_at" yaml:"generated_at"`
	Target       string                `json:"target" yaml:"target"`
	Progress     runner.Progress       `json:"progress" yaml:"progress"`
	SuccessRate  float64               `json:"success_rate" yaml:"success_rate"`
	Stats        *stats.AggregateStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	RunCost      []TierCost            `json:"run_cost,omitempty" yaml:"run_cost,omitempty"`
	Per1000Cost  []TierCost            `json:"per_1000_cost,omitempty" yaml:"per_1000_cost,omitempty"`
	Currency     string                `json:"currency" yaml:"currency"`
	ExchangeRate float64               `json:"exchange_rate" yaml:"exchange_rate"`
}

// Summary is the compact form kept in run history.
type Summary struct {
	Completed   int     `json:"completed"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
	TotalMB     float64 `json:"total_mb"`
	AvgMB       float64 `json:"avg_mb"`
	P90MB       float64 `json:"p90_mb"`
}

// Build assembles the report from the final progress and, when present,
// the aggregator's snapshot. agg may be nil.
func Build(runID string, cfg config.Config, p runner.Progress, agg *stats.Aggregator) Report {
	r := Report{
		RunID:        runID,
		GeneratedAt:  time.Now(),
		Target:       target(cfg),
		Progress:     p,
		SuccessRate:  stats.Round2(p.SuccessRate()),
		Currency:     cfg.Currency,
		ExchangeRate: cfg.ExchangeRate,
	}
	if agg == nil {
		return r
	}
	snap, ok := agg.Snapshot()
	if !ok {
		return r
	}
	r.Stats = &snap
	r.RunCost = tierCosts(snap.TotalMB, cfg)
	r.Per1000Cost = tierCosts(snap.Projections.Per1000, cfg)
	return r
}

// Summary returns the compact history form of r.
func (r Report) Summary() Summary {
	s := Summary{
		Completed:   r.Progress.Completed,
		Succeeded:   r.Progress.Succeeded,
		Failed:      r.Progress.Failed,
		SuccessRate: r.SuccessRate,
	}
	if r.Stats != nil {
		s.TotalMB = r.Stats.TotalMB
		s.AvgMB = r.Stats.AvgMB
		s.P90MB = r.Stats.P90MB
	}
	return s
}

// tierCosts prices totalMB under every configured tier, keeping config order.
// Each tier is priced on its own so equal names cannot share a price.
func tierCosts(totalMB float64, cfg config.Config) []TierCost {
	rate := cfg.ExchangeRate
	if rate <= 0 {
		rate = 1
	}
	costs := make([]TierCost, 0, len(cfg.Pricing))
	for _, t := range cfg.Pricing {
		usd := stats.CostEstimate(totalMB, map[string]float64{t.Name: t.PricePerGB})[t.Name]
		costs = append(costs, TierCost{
			Tier:       t.Name,
			PricePerGB: t.PricePerGB,
			USD:        usd,
			Local:      stats.Round2(usd * rate),
		})
	}
	return costs
}

func target(cfg config.Config) string {
	journey := cfg.Journey()
	if len(journey) == 0 {
		return ""
	}
	return journey[0].URL
}
