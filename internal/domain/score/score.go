package score

import (
	"math"
	"time"
)

// Component weights of the total score. Return dominates; activity is
// a minor tiebreaker.
const (
	weightReturn      = 0.50
	weightRisk        = 0.25
	weightConsistency = 0.15
	weightActivity    = 0.10
)

const (
	returnBaseline      = 50.0
	returnGainSlope     = 3.0
	returnLossSlope     = 9.0 // losses penalized 3x harder than gains reward
	sharpeCeiling       = 3.0
	consistencyHalfLife = 14 * 24 * time.Hour
	activityDecay       = 7 * 24 * time.Hour
)

// SnapshotPoint is the slice of snapshot history the scorer consumes.
type SnapshotPoint struct {
	Timestamp    time.Time
	PeriodReturn float64
}

// Inputs bundles everything the composite score is derived from.
type Inputs struct {
	TotalReturnPct float64
	SharpeRatio    float64
	MaxDrawdownPct float64
	VolatilityPct  float64

	TradeTimes    []time.Time
	UniqueSymbols int
	Snapshots     []SnapshotPoint

	Now time.Time
}

// Score is the 0-100 competition ranking with its sub-scores, each
// clamped to [0,100] and rounded to the nearest integer.
type Score struct {
	ReturnScore      int `json:"return_score"`
	RiskScore        int `json:"risk_score"`
	ConsistencyScore int `json:"consistency_score"`
	ActivityScore    int `json:"activity_score"`
	TotalScore       int `json:"total_score"`
}

// Calculate computes the weighted composite competition score.
func Calculate(in Inputs) Score {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	returnScore := returnComponent(in.TotalReturnPct)
	riskScore := riskComponent(in.SharpeRatio, in.MaxDrawdownPct)
	consistencyScore := consistencyComponent(in.Snapshots, in.VolatilityPct, now)
	activityScore := activityComponent(in.TradeTimes, in.UniqueSymbols, now)

	total := returnScore*weightReturn +
		riskScore*weightRisk +
		consistencyScore*weightConsistency +
		activityScore*weightActivity

	return Score{
		ReturnScore:      roundClamped(returnScore),
		RiskScore:        roundClamped(riskScore),
		ConsistencyScore: roundClamped(consistencyScore),
		ActivityScore:    roundClamped(activityScore),
		TotalScore:       roundClamped(total),
	}
}

// returnComponent maps total return asymmetrically around a baseline
// of 50 at 0%: gains climb with slope 3, losses fall with slope 9.
func returnComponent(totalReturnPct float64) float64 {
	if totalReturnPct >= 0 {
		return math.Min(100, returnBaseline+totalReturnPct*returnGainSlope)
	}
	return math.Max(0, returnBaseline+totalReturnPct*returnLossSlope)
}

// riskComponent rewards Sharpe up to a ceiling of 3.0 (70 points) and
// an absence of drawdown (30 points, fully eroded at 50% drawdown).
func riskComponent(sharpe, maxDrawdownPct float64) float64 {
	sharpePart := math.Min(math.Max(sharpe, 0)/sharpeCeiling*70, 70)
	drawdownPart := math.Max(0, 30-maxDrawdownPct*0.6)
	return clamp(sharpePart + drawdownPart)
}

// consistencyComponent blends the time-decayed share of positive
// periods (60 points, half-life 14 days) with a volatility penalty
// (40 points, fully eroded at 30% annualized volatility).
func consistencyComponent(snapshots []SnapshotPoint, volatilityPct float64, now time.Time) float64 {
	var weightSum, positiveSum float64
	halfLife := consistencyHalfLife.Seconds()

	for _, snap := range snapshots {
		age := now.Sub(snap.Timestamp).Seconds()
		if age < 0 {
			age = 0
		}
		w := math.Exp(-age / halfLife)
		weightSum += w
		if snap.PeriodReturn > 0 {
			positiveSum += w
		}
	}

	var positiveRatio float64
	if weightSum > 0 {
		positiveRatio = positiveSum / weightSum
	}

	volatilityPenalty := math.Min(volatilityPct/30, 1)

	return clamp(positiveRatio*60 + (1-volatilityPenalty)*40)
}

// activityComponent rewards recent trading (30 points at 10 trades in
// the last 7 days), decayed cumulative activity (20 points) and symbol
// diversification (50 points at 15 distinct symbols).
func activityComponent(tradeTimes []time.Time, uniqueSymbols int, now time.Time) float64 {
	var recentCount int
	var decayedSum float64
	decay := activityDecay.Seconds()

	for _, ts := range tradeTimes {
		age := now.Sub(ts)
		if age < 0 {
			age = 0
		}
		if age <= 7*24*time.Hour {
			recentCount++
		}
		decayedSum += math.Exp(-age.Seconds() / decay)
	}

	recentPart := math.Min(float64(recentCount)/10, 1) * 30
	cumulativePart := math.Min(decayedSum/50, 1) * 20
	diversificationPart := math.Min(float64(uniqueSymbols)/15, 1) * 50

	return clamp(recentPart + cumulativePart + diversificationPart)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func roundClamped(v float64) int {
	return int(math.Round(clamp(v)))
}
