// Package planner decides how a source gets extended to the target
// duration: how many times it loops and which ffmpeg mechanism does the
// looping.
package planner

import (
	"math"

	"loopmix/internal/pkg/errors"
)

// Strategy selects the looping mechanism.
type Strategy string

const (
	// StrategyRepeat repeats the single input natively (-stream_loop).
	// One decode pass, O(1) extra inputs; used for large loop counts.
	StrategyRepeat Strategy = "repeat"
	// StrategyConcatenate builds an explicit N-way concatenation of N
	// copies of the input. Keeps frame boundaries explicit for small N.
	StrategyConcatenate Strategy = "concatenate"
)

// concatThreshold is the largest loop count still handled by explicit
// concatenation; anything above it uses native repetition.
const concatThreshold = 10

// RenderPlan is the derived, non-persisted invocation plan for one source.
type RenderPlan struct {
	InputPath     string
	TargetSeconds float64
	LoopCount     int
	Strategy      Strategy
}

// Plan computes the loop count and strategy for extending a source of
// sourceSeconds to minutes of output. Loop counts always overestimate
// (loops*d >= target), so every plan requires a subsequent trim to exactly
// TargetSeconds.
func Plan(inputPath string, sourceSeconds float64, minutes int) (RenderPlan, error) {
	if minutes <= 0 {
		return RenderPlan{}, errors.Planningf("target minutes must be positive, got %d", minutes)
	}
	if sourceSeconds <= 0 {
		return RenderPlan{}, errors.Planningf("source duration must be positive, got %.3fs", sourceSeconds)
	}

	target := float64(60 * minutes)
	loops := int(math.Ceil(target / sourceSeconds))

	strategy := StrategyConcatenate
	if loops > concatThreshold {
		strategy = StrategyRepeat
	}

	return RenderPlan{
		InputPath:     inputPath,
		TargetSeconds: target,
		LoopCount:     loops,
		Strategy:      strategy,
	}, nil
}
