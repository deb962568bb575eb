package enrichment

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/models"
)

// Narrative is the validated form of a completion. Build it with ValidateNarrative;
// every field is guaranteed non-nil.
type Narrative struct {
	FriendlinessScore   int                      `json:"friendlinessScore"`
	Reasons             []string                 `json:"reasons"`
	Recommendations     []string                 `json:"recommendations"`
	PostingFrequency    string                   `json:"postingFrequency"`
	BestTimes           []string                 `json:"bestTimes"`
	ContentRestrictions []string                 `json:"contentRestrictions"`
	RecommendedTypes    []models.ContentType     `json:"recommendedTypes"`
	Topics              []string                 `json:"topics"`
	Dos                 []string                 `json:"dos"`
	Donts               []string                 `json:"donts"`
	TitleTemplates      models.TitleTemplates    `json:"titleTemplates"`
	StrategicAnalysis   models.StrategicAnalysis `json:"strategicAnalysis"`
	GamePlan            models.GamePlan          `json:"gamePlan"`
	// Fallbacks lists the fields that were missing or malformed, e.g. "titleTemplates.effectiveness".
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Fallback values used when a field is missing or has the wrong type.
// List fields not named here fall back to an empty list.
var (
	FallbackFriendlinessScore = 50
	FallbackPostingFrequency  = "No more than one promotional post per week"
	FallbackTopics            = []string{"Questions and discussion relevant to the community"}
	FallbackTitlePatterns     = []string{
		"How I [achieved result] with [approach]",
		"What's your experience with [topic]?",
	}
	FallbackEffectiveness = 75
	FallbackImmediate     = []string{"Read every community rule and the pinned posts"}
	FallbackShortTerm     = []string{"Comment helpfully on popular posts for two weeks before posting"}
	FallbackLongTerm      = []string{"Build a reputation as a regular contributor before sharing anything promotional"}
)

const maxMergedDonts = 5

type validator struct {
	fallbacks []string
}

// ValidateNarrative checks every field of a parsed completion against the expected
// schema and substitutes the documented fallback for each missing or malformed one.
func ValidateNarrative(raw map[string]any) Narrative {
	v := &validator{}

	friendliness := v.section(raw, "marketingFriendliness")
	limits := v.section(raw, "postingLimits")
	strategy := v.section(raw, "contentStrategy")
	titles := v.section(raw, "titleTemplates")
	analysis := v.section(raw, "strategicAnalysis")
	plan := v.section(raw, "gamePlan")

	n := Narrative{
		FriendlinessScore:   v.percent(friendliness, "marketingFriendliness", "score", FallbackFriendlinessScore),
		Reasons:             v.list(friendliness, "marketingFriendliness", "reasons", nil),
		Recommendations:     v.list(friendliness, "marketingFriendliness", "recommendations", nil),
		PostingFrequency:    v.text(limits, "postingLimits", "frequency", FallbackPostingFrequency),
		BestTimes:           v.list(limits, "postingLimits", "bestTimes", nil),
		ContentRestrictions: v.list(limits, "postingLimits", "contentRestrictions", nil),
		RecommendedTypes:    v.contentTypes(strategy, "contentStrategy", "recommendedTypes"),
		Topics:              v.list(strategy, "contentStrategy", "topics", FallbackTopics),
		Dos:                 v.list(strategy, "contentStrategy", "dos", nil),
		Donts:               v.list(strategy, "contentStrategy", "donts", nil),
		TitleTemplates: models.TitleTemplates{
			Patterns:      v.list(titles, "titleTemplates", "patterns", FallbackTitlePatterns),
			Examples:      v.list(titles, "titleTemplates", "examples", nil),
			Effectiveness: v.percent(titles, "titleTemplates", "effectiveness", FallbackEffectiveness),
		},
		StrategicAnalysis: models.StrategicAnalysis{
			Strengths:     v.list(analysis, "strategicAnalysis", "strengths", nil),
			Weaknesses:    v.list(analysis, "strategicAnalysis", "weaknesses", nil),
			Opportunities: v.list(analysis, "strategicAnalysis", "opportunities", nil),
			Risks:         v.list(analysis, "strategicAnalysis", "risks", nil),
		},
		GamePlan: models.GamePlan{
			Immediate: v.list(plan, "gamePlan", "immediate", FallbackImmediate),
			ShortTerm: v.list(plan, "gamePlan", "shortTerm", FallbackShortTerm),
			LongTerm:  v.list(plan, "gamePlan", "longTerm", FallbackLongTerm),
		},
		Fallbacks: v.fallbacks,
	}

	return n
}

func (v *validator) fallback(path string, value any) {
	v.fallbacks = append(v.fallbacks, path)
	logrus.WithFields(logrus.Fields{
		"field":    path,
		"fallback": value,
	}).Warn("Narrative field missing or malformed, using fallback")
}

// section returns the named object, or an empty one so each field reports its own fallback.
func (v *validator) section(raw map[string]any, key string) map[string]any {
	if sec, ok := raw[key].(map[string]any); ok {
		return sec
	}
	return map[string]any{}
}

func (v *validator) list(sec map[string]any, section, key string, fallback []string) []string {
	path := section + "." + key
	items, ok := sec[key].([]any)
	if !ok {
		v.fallback(path, fallback)
		return models.CopyStrings(fallback)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			v.fallback(path, fallback)
			return models.CopyStrings(fallback)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (v *validator) text(sec map[string]any, section, key, fallback string) string {
	s, ok := sec[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		v.fallback(section+"."+key, fallback)
		return fallback
	}
	return strings.TrimSpace(s)
}

// percent accepts a JSON number, rounded and clamped to [0,100].
func (v *validator) percent(sec map[string]any, section, key string, fallback int) int {
	f, ok := sec[key].(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		v.fallback(section+"."+key, fallback)
		return fallback
	}
	return int(math.Max(0, math.Min(100, math.Round(f))))
}

// contentTypes keeps the known types in order, dropping unknown values and duplicates.
func (v *validator) contentTypes(sec map[string]any, section, key string) []models.ContentType {
	names := v.list(sec, section, key, nil)
	types := []models.ContentType{}
	seen := make(map[models.ContentType]bool)
	for _, name := range names {
		t := models.ContentType(strings.ToLower(name))
		switch t {
		case models.ContentText, models.ContentImage, models.ContentVideo, models.ContentLink:
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	return types
}

// Merge returns a copy of the numeric report with the narrative applied. The local score,
// best times and recommended types stay authoritative; narrative-only sections are taken
// from the narrative and list fields shared by both are appended without duplicates.
func Merge(report *models.AnalysisReport, n Narrative) *models.AnalysisReport {
	merged := report.Clone()

	merged.Reasons = appendUnique(merged.Reasons, n.Reasons)
	merged.Recommendations = appendUnique(merged.Recommendations, n.Recommendations)
	merged.PostingGuidelines.Restrictions = appendUnique(merged.PostingGuidelines.Restrictions, n.ContentRestrictions)

	merged.ContentStrategy.Topics = models.CopyStrings(n.Topics)
	merged.ContentStrategy.Dos = appendUnique(merged.ContentStrategy.Dos, n.Dos)
	merged.ContentStrategy.Donts = appendUnique(merged.ContentStrategy.Donts, n.Donts)
	if len(merged.ContentStrategy.Donts) > maxMergedDonts {
		merged.ContentStrategy.Donts = merged.ContentStrategy.Donts[:maxMergedDonts]
	}

	merged.TitleTemplates = models.TitleTemplates{
		Patterns:      models.CopyStrings(n.TitleTemplates.Patterns),
		Examples:      models.CopyStrings(n.TitleTemplates.Examples),
		Effectiveness: n.TitleTemplates.Effectiveness,
	}
	merged.StrategicAnalysis = models.StrategicAnalysis{
		Strengths:     models.CopyStrings(n.StrategicAnalysis.Strengths),
		Weaknesses:    models.CopyStrings(n.StrategicAnalysis.Weaknesses),
		Opportunities: models.CopyStrings(n.StrategicAnalysis.Opportunities),
		Risks:         models.CopyStrings(n.StrategicAnalysis.Risks),
	}
	merged.GamePlan = models.GamePlan{
		Immediate: models.CopyStrings(n.GamePlan.Immediate),
		ShortTerm: models.CopyStrings(n.GamePlan.ShortTerm),
		LongTerm:  models.CopyStrings(n.GamePlan.LongTerm),
	}

	merged.Enriched = true
	merged.EnrichmentError = ""
	return merged
}

func appendUnique(base, extra []string) []string {
	out := models.CopyStrings(base)
	seen := make(map[string]bool, len(base)+len(extra))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		key := strings.ToLower(s)
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}
