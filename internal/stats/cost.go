package stats

// Tier is a named bandwidth price in currency units per GB.
type Tier struct {
	Name       string  `json:"name" yaml:"name" mapstructure:"name"`
	PricePerGB float64 `json:"price_per_gb" yaml:"price_per_gb" mapstructure:"price_per_gb"`
}

// DefaultTiers are low, mid and premium residential proxy bandwidth prices in USD.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "proxy-cheap", PricePerGB: 2.5},
		{Name: "iproyal", PricePerGB: 7},
		{Name: "bright-data", PricePerGB: 12.5},
	}
}

// TierPrices converts tiers to the name -> price mapping used by CostEstimate.
func TierPrices(tiers []Tier) map[string]float64 {
	prices := make(map[string]float64, len(tiers))
	for _, t := range tiers {
		prices[t.Name] = t.PricePerGB
	}
	return prices
}

// CostEstimate prices totalMB under every tier: (totalMB / 1024) * pricePerGB,
// rounded to two decimals.
func CostEstimate(totalMB float64, pricePerGB map[string]float64) map[string]float64 {
	costs := make(map[string]float64, len(pricePerGB))
	totalGB := totalMB / 1024
	for name, price := range pricePerGB {
		costs[name] = Round2(totalGB * price)
	}
	return costs
}
