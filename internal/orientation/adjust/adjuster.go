package adjust

import (
	"github.com/careops/valuemed/internal/orientation/domain"
)

const (
	ReasonMissingActual    = "missing actual value"
	ReasonMissingBenchmark = "missing benchmark"
	ReasonUndefinedRatio   = "undefined ratio"
	ReasonNoMatchingLadder = "no matching ladder"
	ReasonMatched          = "matched ladder"
)

// Input is one (node, rule) evaluation.
type Input struct {
	Weight    float64
	Workload  float64
	Actual    *float64
	Benchmark *float64
	Ladder    domain.Ladder
}

// Outcome is the result of one evaluation. AdjustedWeight always carries a
// usable weight: the matched adjustment when one applied, the original
// weight otherwise.
type Outcome struct {
	Ratio          *float64
	Matched        *domain.OrientationLadder
	Intensity      *float64
	AdjustedWeight float64
	AdjustedValue  float64
	IsAdjusted     bool
	Reason         string
}

// Evaluate compares actual to benchmark and applies the matched ladder
// intensity to the weight. Missing or zero benchmarks skip the adjustment
// rather than failing: gaps degrade, they never abort a task.
func Evaluate(in Input) Outcome {
	out := Outcome{
		AdjustedWeight: in.Weight,
		AdjustedValue:  in.Weight * in.Workload,
	}

	if in.Actual == nil {
		out.Reason = ReasonMissingActual
		return out
	}
	if in.Benchmark == nil {
		out.Reason = ReasonMissingBenchmark
		return out
	}
	if *in.Benchmark == 0 {
		out.Reason = ReasonUndefinedRatio
		return out
	}

	ratio := *in.Actual / *in.Benchmark
	out.Ratio = &ratio

	matched, ok := in.Ladder.Match(ratio)
	if !ok {
		out.Reason = ReasonNoMatchingLadder
		return out
	}

	intensity := matched.AdjustmentIntensity
	out.Matched = matched
	out.Intensity = &intensity
	out.AdjustedWeight = in.Weight * intensity
	out.AdjustedValue = out.AdjustedWeight * in.Workload
	out.IsAdjusted = intensity != 1
	out.Reason = ReasonMatched
	return out
}
