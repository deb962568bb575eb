package analysis

import "math"

// ScoreInput carries everything the friendliness score depends on.
type ScoreInput struct {
	SubscriberCount   int
	ActiveUserCount   int
	InteractionRate   float64
	HighImpactRules   int
	MediumImpactRules int
	PostsPerDay       float64
}

// ScoreBreakdown records each term before rounding and clamping.
type ScoreBreakdown struct {
	Base       float64 `json:"base"`
	Size       float64 `json:"size"`
	Activity   float64 `json:"activity"`
	Engagement float64 `json:"engagement"`
	Frequency  float64 `json:"frequency"`
	Penalty    float64 `json:"penalty"`
}

// Raw is the unclamped sum of the terms.
func (b ScoreBreakdown) Raw() float64 {
	return b.Base + b.Size + b.Activity + b.Engagement + b.Frequency - b.Penalty
}

const (
	baseScore = 50.0

	// Saturation points
	sizeSaturation       = 1_000_000.0
	engagementSaturation = 100.0
	frequencySaturation  = 10.0

	// Weights
	wSize       = 15.0
	wActivity   = 15.0
	wEngagement = 30.0
	wFrequency  = 10.0

	highRulePenalty   = 4.0
	mediumRulePenalty = 2.0
)

// ComputeScore returns the 0-100 marketing friendliness score and its terms.
// Engagement is scored linearly: min(rate/100, 1) * 30.
func ComputeScore(in ScoreInput) (int, ScoreBreakdown) {
	b := ScoreBreakdown{Base: baseScore}

	b.Size = math.Min(float64(in.SubscriberCount)/sizeSaturation, 1) * wSize
	if in.SubscriberCount > 0 {
		b.Activity = math.Min(float64(in.ActiveUserCount)/float64(in.SubscriberCount), 1) * wActivity
	}
	b.Engagement = math.Min(in.InteractionRate/engagementSaturation, 1) * wEngagement
	b.Frequency = math.Min(in.PostsPerDay/frequencySaturation, 1) * wFrequency
	b.Penalty = float64(in.HighImpactRules)*highRulePenalty + float64(in.MediumImpactRules)*mediumRulePenalty

	return clampScore(math.Round(b.Raw())), b
}

func clampScore(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
