package models

import "time"

// Rule is a single community rule as published by the community
type Rule struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CommunityMetadata is a snapshot of a community fetched for one analysis
type CommunityMetadata struct {
	Name            string `json:"name"`
	SubscriberCount int    `json:"subscriber_count"`
	ActiveUserCount int    `json:"active_user_count"`
	Description     string `json:"description"`
	Rules           []Rule `json:"rules"`
}

// Post is one post from the recent sample of a community
type Post struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	Score        int    `json:"score"` // may be negative
	CommentCount int    `json:"comment_count"`
	CreatedAt    int64  `json:"created_at"` // unix seconds
	URL          string `json:"url"`
}

// EngagementMetrics is derived from a non-empty post sample
type EngagementMetrics struct {
	AvgComments     float64 `json:"avg_comments"`
	AvgScore        float64 `json:"avg_score"`
	PeakHours       []int   `json:"peak_hours"` // ascending
	InteractionRate float64 `json:"interaction_rate"`
	PostsPerHour    [24]int `json:"posts_per_hour"`
}

// MarketingImpact is how strongly a rule obstructs promotional posting
type MarketingImpact string

const (
	ImpactHigh   MarketingImpact = "high"
	ImpactMedium MarketingImpact = "medium"
	ImpactLow    MarketingImpact = "low"
)

// ClassifiedRule is a rule tagged with its marketing impact and 1-based priority
type ClassifiedRule struct {
	Rule
	MarketingImpact MarketingImpact `json:"marketingImpact"`
	Priority        int             `json:"priority"`
}

// ContentType is a kind of post a community accepts
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentLink  ContentType = "link"
)

type PostingGuidelines struct {
	BestTimes    []string `json:"bestTimes"`
	Restrictions []string `json:"restrictions"`
}

type ContentStrategy struct {
	RecommendedTypes []ContentType `json:"recommendedTypes"`
	Topics           []string      `json:"topics"`
	Dos              []string      `json:"dos"`
	Donts            []string      `json:"donts"`
}

type TitleTemplates struct {
	Patterns      []string `json:"patterns"`
	Examples      []string `json:"examples"`
	Effectiveness int      `json:"effectiveness"`
}

type StrategicAnalysis struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Risks         []string `json:"risks"`
}

type GamePlan struct {
	Immediate []string `json:"immediate"`
	ShortTerm []string `json:"shortTerm"`
	LongTerm  []string `json:"longTerm"`
}

// AnalysisReport is the result of one analysis. It is built once and then
// only copied; callers persist it as an opaque JSON blob.
type AnalysisReport struct {
	Community         string            `json:"community"`
	GeneratedAt       time.Time         `json:"generatedAt"`
	CommunityMetadata CommunityMetadata `json:"communityMetadata"`
	Posts             []Post            `json:"posts"`
	Score             int               `json:"score"`
	Reasons           []string          `json:"reasons"`
	Recommendations   []string          `json:"recommendations"`
	PostingGuidelines PostingGuidelines `json:"postingGuidelines"`
	ContentStrategy   ContentStrategy   `json:"contentStrategy"`
	TitleTemplates    TitleTemplates    `json:"titleTemplates"`
	StrategicAnalysis StrategicAnalysis `json:"strategicAnalysis"`
	GamePlan          GamePlan          `json:"gamePlan"`
	Enriched          bool              `json:"enriched"`
	EnrichmentError   string            `json:"enrichmentError,omitempty"`
}

// Clone returns a deep copy of the report
func (r *AnalysisReport) Clone() *AnalysisReport {
	if r == nil {
		return nil
	}
	c := *r
	c.CommunityMetadata = r.CommunityMetadata.Clone()
	c.Posts = CopySlice(r.Posts)
	c.Reasons = CopyStrings(r.Reasons)
	c.Recommendations = CopyStrings(r.Recommendations)
	c.PostingGuidelines = PostingGuidelines{
		BestTimes:    CopyStrings(r.PostingGuidelines.BestTimes),
		Restrictions: CopyStrings(r.PostingGuidelines.Restrictions),
	}
	c.ContentStrategy = ContentStrategy{
		RecommendedTypes: CopySlice(r.ContentStrategy.RecommendedTypes),
		Topics:           CopyStrings(r.ContentStrategy.Topics),
		Dos:              CopyStrings(r.ContentStrategy.Dos),
		Donts:            CopyStrings(r.ContentStrategy.Donts),
	}
	c.TitleTemplates = TitleTemplates{
		Patterns:      CopyStrings(r.TitleTemplates.Patterns),
		Examples:      CopyStrings(r.TitleTemplates.Examples),
		Effectiveness: r.TitleTemplates.Effectiveness,
	}
	c.StrategicAnalysis = StrategicAnalysis{
		Strengths:     CopyStrings(r.StrategicAnalysis.Strengths),
		Weaknesses:    CopyStrings(r.StrategicAnalysis.Weaknesses),
		Opportunities: CopyStrings(r.StrategicAnalysis.Opportunities),
		Risks:         CopyStrings(r.StrategicAnalysis.Risks),
	}
	c.GamePlan = GamePlan{
		Immediate: CopyStrings(r.GamePlan.Immediate),
		ShortTerm: CopyStrings(r.GamePlan.ShortTerm),
		LongTerm:  CopyStrings(r.GamePlan.LongTerm),
	}
	return &c
}

// Clone returns a deep copy of the metadata
func (m CommunityMetadata) Clone() CommunityMetadata {
	m.Rules = CopySlice(m.Rules)
	return m
}

// CopyStrings copies s, always returning a non-nil slice so reports
// serialise lists as [] rather than null.
func CopyStrings(s []string) []string {
	return CopySlice(s)
}

// CopySlice is CopyStrings for any element type
func CopySlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
