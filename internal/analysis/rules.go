package analysis

import (
	"strings"

	"github.com/subscout/subreddit-analyzer/internal/models"
)

var highImpactKeywords = []string{
	"spam", "promotion", "advertising", "marketing", "self-promotion",
	"commercial", "business", "selling", "merchandise", "affiliate",
}

var mediumImpactKeywords = []string{
	"quality", "format", "title", "flair", "tags",
	"submission", "guidelines", "requirements", "posting",
}

// ClassifyRule assigns a marketing impact tier to a rule. High-impact keywords are
// checked first, so a rule mentioning both tiers is high.
func ClassifyRule(rule models.Rule) models.MarketingImpact {
	content := strings.ToLower(rule.Title + " " + rule.Description)

	for _, keyword := range highImpactKeywords {
		if strings.Contains(content, keyword) {
			return models.ImpactHigh
		}
	}

	for _, keyword := range mediumImpactKeywords {
		if strings.Contains(content, keyword) {
			return models.ImpactMedium
		}
	}

	return models.ImpactLow
}

// ClassifyRules classifies every rule, keeping source order and numbering priorities from 1.
func ClassifyRules(rules []models.Rule) []models.ClassifiedRule {
	classified := make([]models.ClassifiedRule, 0, len(rules))
	for i, rule := range rules {
		classified = append(classified, models.ClassifiedRule{
			Rule:            rule,
			MarketingImpact: ClassifyRule(rule),
			Priority:        i + 1,
		})
	}
	return classified
}

// CountImpacts returns the number of high and medium impact rules.
func CountImpacts(rules []models.ClassifiedRule) (high, medium int) {
	for _, rule := range rules {
		switch rule.MarketingImpact {
		case models.ImpactHigh:
			high++
		case models.ImpactMedium:
			medium++
		}
	}
	return high, medium
}
