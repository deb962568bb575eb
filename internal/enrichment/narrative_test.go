package enrichment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subscout/subreddit-analyzer/internal/analysis"
	"github.com/subscout/subreddit-analyzer/internal/models"
)

func TestParseCompletion(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantKey string
		skipKey string
		wantErr bool
	}{
		{
			name:    "Raw JSON",
			text:    `{"gamePlan": {"immediate": ["a"]}}`,
			wantKey: "gamePlan",
		},
		{
			name:    "Fenced json block",
			text:    "Here you go:\n```json\n{\"titleTemplates\": {\"effectiveness\": 70}}\n```\nGood luck!",
			wantKey: "titleTemplates",
		},
		{
			name:    "Plain fence",
			text:    "```\n{\"strategicAnalysis\": {}}\n```",
			wantKey: "strategicAnalysis",
		},
		{
			name:    "Embedded object",
			text:    `Sure! {"contentStrategy": {"topics": ["x"]}} Let me know if you need more.`,
			wantKey: "contentStrategy",
		},
		{
			name:    "First of two objects",
			text:    `{"postingLimits": {"frequency": "weekly"}} and also {"other": "}"}`,
			wantKey: "postingLimits",
		},
		{
			name:    "Prose between objects",
			text:    `Plan: {"gamePlan": {"immediate": ["a"]}} or maybe {"risks": []}`,
			wantKey: "gamePlan",
			skipKey: "risks",
		},
		{
			name:    "No JSON",
			text:    "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "Empty",
			text:    "   ",
			wantErr: true,
		},
		{
			name:    "Array is not an object",
			text:    `[1, 2, 3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ParseCompletion(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				assert.Nil(t, obj)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, obj, tt.wantKey)
			if tt.skipKey != "" {
				assert.NotContains(t, obj, tt.skipKey)
			}
		})
	}
}

func TestValidateNarrative_AllMissing(t *testing.T) {
	n := ValidateNarrative(map[string]any{})

	assert.Equal(t, FallbackFriendlinessScore, n.FriendlinessScore)
	assert.Equal(t, FallbackPostingFrequency, n.PostingFrequency)
	assert.Equal(t, FallbackTopics, n.Topics)
	assert.Equal(t, FallbackTitlePatterns, n.TitleTemplates.Patterns)
	assert.Equal(t, FallbackEffectiveness, n.TitleTemplates.Effectiveness)
	assert.Equal(t, FallbackImmediate, n.GamePlan.Immediate)
	assert.Equal(t, FallbackShortTerm, n.GamePlan.ShortTerm)
	assert.Equal(t, FallbackLongTerm, n.GamePlan.LongTerm)

	assert.NotNil(t, n.Reasons)
	assert.NotNil(t, n.StrategicAnalysis.Risks)
	assert.NotNil(t, n.TitleTemplates.Examples)
	assert.NotNil(t, n.RecommendedTypes)
	assert.Contains(t, n.Fallbacks, "strategicAnalysis.strengths")
	assert.Contains(t, n.Fallbacks, "titleTemplates.effectiveness")
}

func TestValidateNarrative_WrongTypes(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"marketingFriendliness": {"score": 140, "reasons": "not a list", "recommendations": [1, 2]},
		"postingLimits": {"frequency": 3},
		"titleTemplates": {"patterns": ["A"], "examples": [], "effectiveness": -5},
		"gamePlan": "later"
	}`), &raw))

	n := ValidateNarrative(raw)

	assert.Equal(t, 100, n.FriendlinessScore)
	assert.Equal(t, []string{}, n.Reasons)
	assert.Equal(t, []string{}, n.Recommendations)
	assert.Equal(t, FallbackPostingFrequency, n.PostingFrequency)
	assert.Equal(t, []string{"A"}, n.TitleTemplates.Patterns)
	assert.Equal(t, []string{}, n.TitleTemplates.Examples)
	assert.Equal(t, 0, n.TitleTemplates.Effectiveness)
	assert.Equal(t, FallbackImmediate, n.GamePlan.Immediate)

	assert.Contains(t, n.Fallbacks, "marketingFriendliness.reasons")
	assert.Contains(t, n.Fallbacks, "marketingFriendliness.recommendations")
	assert.Contains(t, n.Fallbacks, "postingLimits.frequency")
	assert.NotContains(t, n.Fallbacks, "titleTemplates.effectiveness")
	assert.NotContains(t, n.Fallbacks, "titleTemplates.patterns")
}

func TestMerge(t *testing.T) {
	report := &models.AnalysisReport{
		Community:       "golang",
		Score:           56,
		Reasons:         []string{"Established audience"},
		Recommendations: []string{"Schedule posts for 2:00 PM – 2:59 PM"},
		PostingGuidelines: models.PostingGuidelines{
			BestTimes:    []string{"2:00 PM – 2:59 PM"},
			Restrictions: []string{"Rule 1 (high impact): No self-promotion"},
		},
		ContentStrategy: models.ContentStrategy{
			RecommendedTypes: []models.ContentType{models.ContentText},
			Topics:           []string{},
			Dos:              []string{"Share text posts"},
			Donts:            []string{"No self-promotion", "Don't ask for upvotes or engagement"},
		},
	}

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(validNarrativeJSON), &raw))
	narrative := ValidateNarrative(raw)
	narrative.Reasons = append(narrative.Reasons, "established AUDIENCE")
	narrative.Donts = append(narrative.Donts, "a", "b", "c", "d")

	merged := Merge(report, narrative)

	assert.True(t, merged.Enriched)
	assert.Equal(t, 56, merged.Score)
	assert.Equal(t, []string{"2:00 PM – 2:59 PM"}, merged.PostingGuidelines.BestTimes)
	assert.Equal(t, []models.ContentType{models.ContentText}, merged.ContentStrategy.RecommendedTypes)
	assert.Equal(t, []string{"Established audience", "Active niche"}, merged.Reasons)
	assert.Equal(t, []string{"Rule 1 (high impact): No self-promotion", "No affiliate links"}, merged.PostingGuidelines.Restrictions)
	assert.Equal(t, []string{"Tooling", "Performance"}, merged.ContentStrategy.Topics)
	assert.Equal(t, []string{"Share text posts", "Share benchmarks"}, merged.ContentStrategy.Dos)
	assert.Len(t, merged.ContentStrategy.Donts, 5)
	assert.Equal(t, "No self-promotion", merged.ContentStrategy.Donts[0])
	assert.Equal(t, 80, merged.TitleTemplates.Effectiveness)
	assert.Equal(t, []string{"Mod removal"}, merged.StrategicAnalysis.Risks)
	assert.Equal(t, []string{"Read the rules"}, merged.GamePlan.Immediate)

	// the input report is left untouched
	assert.False(t, report.Enriched)
	assert.Equal(t, []string{"Established audience"}, report.Reasons)
	assert.Empty(t, report.ContentStrategy.Topics)
}

func TestMerge_EmptyListsStayArrays(t *testing.T) {
	// no body and no URL, so no content type is detected
	posts := []models.Post{{ID: "a", Title: "Untitled", Score: 1, CreatedAt: 1710000000}}
	metrics, err := analysis.Aggregate(posts, time.UTC)
	require.NoError(t, err)

	skeleton, err := analysis.Build(analysis.BuildInput{
		Metadata:    models.CommunityMetadata{Name: "golang", SubscriberCount: 10},
		Metrics:     metrics,
		Rules:       analysis.ClassifyRules(nil),
		Posts:       posts,
		PostsPerDay: analysis.PostsPerDay(posts),
	})
	require.NoError(t, err)
	require.Empty(t, skeleton.Report.ContentStrategy.RecommendedTypes)

	merged := Merge(skeleton.Report, ValidateNarrative(map[string]any{}))

	data, err := json.Marshal(merged)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
	assert.Contains(t, string(data), `"recommendedTypes":[]`)
	assert.Contains(t, string(data), `"rules":[]`)
}
