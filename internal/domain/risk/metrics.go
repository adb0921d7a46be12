package risk

import (
	"math"
	"sort"
	"time"
)

// Defaults for the sampling model: hourly snapshots over US trading
// hours, and an annual risk-free rate of 4%.
const (
	DefaultPeriodsPerYear = 252 * 6.5
	DefaultRiskFreeRate   = 0.04
)

// Point is one equity observation in the historical series.
type Point struct {
	Timestamp time.Time
	Equity    float64
}

// Metrics are the derived historical risk figures. All values are zero
// when the series holds fewer than two points.
type Metrics struct {
	SharpeRatio    float64 `json:"sharpe_ratio"`
	VolatilityPct  float64 `json:"volatility_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	VaR95          float64 `json:"var_95"`
	Beta           float64 `json:"beta"`
}

// Config tunes the annualization model.
type Config struct {
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	PeriodsPerYear float64 `yaml:"periods_per_year"`
}

// DefaultConfig returns the standard sampling configuration.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:   DefaultRiskFreeRate,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
}

// Calculate derives Sharpe ratio, annualized volatility, max drawdown
// and VaR(95%) from an ordered equity series. Insufficient history is
// not an error: fewer than two points yields all-zero metrics.
func Calculate(series []Point, currentEquity float64, cfg Config) Metrics {
	if len(series) < 2 {
		return Metrics{}
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultPeriodsPerYear
	}

	returns := periodReturns(series)
	if len(returns) == 0 {
		return Metrics{}
	}

	mean := meanOf(returns)
	stdDev := stdDevOf(returns, mean)

	var m Metrics

	if stdDev > 0 {
		periodRiskFree := cfg.RiskFreeRate / cfg.PeriodsPerYear
		m.SharpeRatio = (mean - periodRiskFree) / stdDev * math.Sqrt(cfg.PeriodsPerYear)
	}

	m.VolatilityPct = stdDev * math.Sqrt(cfg.PeriodsPerYear) * 100
	m.MaxDrawdownPct = maxDrawdownPct(series)
	m.VaR95 = valueAtRisk95(returns, currentEquity)

	return m
}

// periodReturns computes r_i = (e_i - e_{i-1}) / e_{i-1}, skipping
// intervals whose base equity is not positive.
func periodReturns(series []Point) []float64 {
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (series[i].Equity-prev)/prev)
	}
	return returns
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDevOf uses the population formula, matching the return series
// being the full observed history rather than a sample.
func stdDevOf(xs []float64, mean float64) float64 {
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// maxDrawdownPct is the worst peak-to-trough decline over the series,
// as a percentage of the running peak.
func maxDrawdownPct(series []Point) float64 {
	var peak, maxDD float64
	for _, p := range series {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// valueAtRisk95 is the nearest-rank 5th percentile loss scaled to the
// current equity.
func valueAtRisk95(returns []float64, currentEquity float64) float64 {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(len(sorted)) * 0.05))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return currentEquity * math.Abs(sorted[idx])
}
