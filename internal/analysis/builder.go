package analysis

import (
	"fmt"
	"unicode/utf8"

	"github.com/subscout/subreddit-analyzer/internal/models"
)

const (
	maxDonts              = 5
	maxDescriptionRunes   = 500
	maxNarrativePosts     = 10
	defaultReportPostSize = 100
)

var staticDos = []string{
	"Reply to comments within the first hour after posting",
	"Contribute to existing discussions before sharing your own content",
}

var staticDonts = []string{
	"Don't post the same link across multiple communities",
	"Don't use clickbait or misleading titles",
	"Don't ask for upvotes or engagement",
}

// BuildInput is everything the builder needs. Metrics must come from Aggregate.
type BuildInput struct {
	Metadata    models.CommunityMetadata
	Metrics     *models.EngagementMetrics
	Rules       []models.ClassifiedRule
	Posts       []models.Post
	PostsPerDay float64
	// PostLimit caps the posts embedded in the report; 0 means 100.
	PostLimit int
}

// Skeleton is the numeric and structural part of a report plus the payload for
// narrative enrichment. Narrative fields of Report are empty placeholders.
type Skeleton struct {
	Report    *models.AnalysisReport
	Breakdown ScoreBreakdown
	Request   models.NarrativeRequest
}

// Build assembles the score, guidelines and content strategy skeleton.
func Build(in BuildInput) (*Skeleton, error) {
	if in.Metrics == nil || len(in.Posts) == 0 {
		return nil, ErrInsufficientData
	}

	high, medium := CountImpacts(in.Rules)
	score, breakdown := ComputeScore(ScoreInput{
		SubscriberCount:   in.Metadata.SubscriberCount,
		ActiveUserCount:   in.Metadata.ActiveUserCount,
		InteractionRate:   in.Metrics.InteractionRate,
		HighImpactRules:   high,
		MediumImpactRules: medium,
		PostsPerDay:       in.PostsPerDay,
	})

	types, counts := DetectContentTypes(in.Posts)
	top := topContentType(types, counts)
	bestTimes := BestTimes(in.Metrics.PeakHours)

	report := &models.AnalysisReport{
		Community:         in.Metadata.Name,
		CommunityMetadata: in.Metadata.Clone(),
		Posts:             truncatePosts(in.Posts, in.PostLimit),
		Score:             score,
		Reasons:           buildReasons(in, high, medium),
		Recommendations:   buildRecommendations(in, high, top, bestTimes),
		PostingGuidelines: models.PostingGuidelines{
			BestTimes:    bestTimes,
			Restrictions: buildRestrictions(in.Rules),
		},
		ContentStrategy: models.ContentStrategy{
			RecommendedTypes: types,
			Topics:           []string{},
			Dos:              buildDos(top, bestTimes),
			Donts:            buildDonts(in.Rules),
		},
		TitleTemplates: models.TitleTemplates{
			Patterns: []string{},
			Examples: []string{},
		},
		StrategicAnalysis: models.StrategicAnalysis{
			Strengths:     []string{},
			Weaknesses:    []string{},
			Opportunities: []string{},
			Risks:         []string{},
		},
		GamePlan: models.GamePlan{
			Immediate: []string{},
			ShortTerm: []string{},
			LongTerm:  []string{},
		},
	}

	return &Skeleton{
		Report:    report,
		Breakdown: breakdown,
		Request:   buildRequest(in, score, bestTimes, types),
	}, nil
}

func truncatePosts(posts []models.Post, limit int) []models.Post {
	if limit <= 0 {
		limit = defaultReportPostSize
	}
	if len(posts) < limit {
		limit = len(posts)
	}
	return models.CopySlice(posts[:limit])
}

func buildReasons(in BuildInput, high, medium int) []string {
	subs := in.Metadata.SubscriberCount
	reasons := []string{}

	switch {
	case subs >= 1_000_000:
		reasons = append(reasons, fmt.Sprintf("Large audience of %d subscribers", subs))
	case subs >= 100_000:
		reasons = append(reasons, fmt.Sprintf("Established audience of %d subscribers", subs))
	default:
		reasons = append(reasons, fmt.Sprintf("Small, niche audience of %d subscribers", subs))
	}

	if subs > 0 {
		ratio := float64(in.Metadata.ActiveUserCount) / float64(subs) * 100
		reasons = append(reasons, fmt.Sprintf("%.1f%% of subscribers are currently active", ratio))
	}

	reasons = append(reasons, fmt.Sprintf("Posts average %.0f upvotes and %.0f comments",
		in.Metrics.AvgScore, in.Metrics.AvgComments))

	if high > 0 || medium > 0 {
		reasons = append(reasons, fmt.Sprintf("%d high-impact and %d medium-impact rules restrict promotional content", high, medium))
	} else {
		reasons = append(reasons, "No rules directly restrict promotional content")
	}

	reasons = append(reasons, fmt.Sprintf("About %.1f new posts per day", in.PostsPerDay))
	return reasons
}

func buildRecommendations(in BuildInput, high int, top models.ContentType, bestTimes []string) []string {
	recs := []string{}

	if high > 0 {
		recs = append(recs, fmt.Sprintf("Read all %d high-impact rules before posting anything promotional", high))
	}
	if len(bestTimes) > 0 {
		recs = append(recs, fmt.Sprintf("Schedule posts for %s", bestTimes[0]))
	}
	if top != "" {
		recs = append(recs, fmt.Sprintf("Favour %s posts, the most common format in recent posts", top))
	}
	if in.Metrics.InteractionRate < 1 {
		recs = append(recs, "Lead with useful content; engagement per post is low")
	}
	if in.PostsPerDay >= frequencySaturation {
		recs = append(recs, "The feed moves quickly, so expect a short window of visibility")
	} else {
		recs = append(recs, "The feed moves slowly, so posts stay visible for longer")
	}
	return recs
}

func buildRestrictions(rules []models.ClassifiedRule) []string {
	restrictions := []string{}
	for _, rule := range rules {
		if rule.MarketingImpact == models.ImpactLow {
			continue
		}
		restrictions = append(restrictions, fmt.Sprintf("Rule %d (%s impact): %s", rule.Priority, rule.MarketingImpact, rule.Title))
	}
	return restrictions
}

func buildDos(top models.ContentType, bestTimes []string) []string {
	dos := []string{}
	if top != "" {
		dos = append(dos, fmt.Sprintf("Share %s posts, the format this community posts most", top))
	}
	if len(bestTimes) > 0 {
		dos = append(dos, fmt.Sprintf("Post during peak activity (%s)", bestTimes[0]))
	}
	return append(dos, staticDos...)
}

func buildDonts(rules []models.ClassifiedRule) []string {
	donts := []string{}
	for _, rule := range rules {
		if rule.MarketingImpact == models.ImpactHigh {
			donts = append(donts, rule.Title)
		}
	}
	donts = append(donts, staticDonts...)
	if len(donts) > maxDonts {
		donts = donts[:maxDonts]
	}
	return donts
}

func buildRequest(in BuildInput, score int, bestTimes []string, types []models.ContentType) models.NarrativeRequest {
	recent := make([]models.RecentPost, 0, maxNarrativePosts)
	for i, post := range in.Posts {
		if i >= maxNarrativePosts {
			break
		}
		recent = append(recent, models.RecentPost{
			Title:        post.Title,
			Score:        post.Score,
			CommentCount: post.CommentCount,
			Type:         ClassifyPost(post),
		})
	}

	return models.NarrativeRequest{
		Community:        in.Metadata.Name,
		SubscriberCount:  in.Metadata.SubscriberCount,
		ActiveUserCount:  in.Metadata.ActiveUserCount,
		Description:      truncateRunes(in.Metadata.Description, maxDescriptionRunes),
		Rules:            models.CopySlice(in.Rules),
		AvgComments:      in.Metrics.AvgComments,
		AvgScore:         in.Metrics.AvgScore,
		InteractionRate:  in.Metrics.InteractionRate,
		PostsPerDay:      in.PostsPerDay,
		PeakHours:        models.CopySlice(in.Metrics.PeakHours),
		BestTimes:        models.CopyStrings(bestTimes),
		RecommendedTypes: models.CopySlice(types),
		Score:            score,
		RecentPosts:      recent,
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
