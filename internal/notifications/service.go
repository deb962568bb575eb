package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/config"
	"github.com/subscout/subreddit-analyzer/internal/models"
	"gopkg.in/gomail.v2"
)

const (
	maxDigestItems = 3
	generatedFmt   = "2006-01-02 15:04:05 MST"
)

// Service sends digests and alerts to Teams and email
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// IsEnabled reports whether any notification channel is configured
func (s *Service) IsEnabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendDigest sends the digest via every configured channel
func (s *Service) SendDigest(digest *models.Digest) error {
	if !s.IsEnabled() {
		logrus.Debug("No notification channel configured, skipping digest")
		return nil
	}

	return s.send("digest",
		func() error { return s.postToTeams(s.buildTeamsDigest(digest)) },
		func() error { return s.sendDigestEmail(digest) },
	)
}

// SendAlert sends an operational alert via every configured channel
func (s *Service) SendAlert(alert *models.Alert) error {
	if !s.IsEnabled() {
		logrus.Warnf("Alert not delivered, no channel configured: %s - %s", alert.Type, alert.Title)
		return nil
	}

	return s.send("alert",
		func() error { return s.postToTeams(s.buildTeamsAlert(alert)) },
		func() error {
			return s.sendEmail(fmt.Sprintf("[Subreddit Analyzer] %s", alert.Title), buildAlertText(alert), "")
		},
	)
}

func (s *Service) send(kind string, teams, email func() error) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := teams(); err != nil {
			logrus.Errorf("Failed to send Teams %s: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Sent %s to Teams", kind)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := email(); err != nil {
			logrus.Errorf("Failed to send %s email: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Sent %s via email", kind)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (s *Service) postToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsDigest(digest *models.Digest) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Community Marketing Digest (%s)", digest.Period),
		Text: fmt.Sprintf("Analysed %d communities, %d failed. Generated %s.",
			len(digest.Reports), len(digest.Failures), digest.GeneratedAt.Format(generatedFmt)),
	}

	for _, report := range digest.Reports {
		facts := []TeamsFact{
			{Name: "Friendliness Score", Value: fmt.Sprintf("%d/100", report.Score)},
			{Name: "Subscribers", Value: fmt.Sprintf("%d", report.CommunityMetadata.SubscriberCount)},
			{Name: "Best Times", Value: joinOrNone(report.PostingGuidelines.BestTimes)},
			{Name: "Narrative", Value: enrichmentStatus(report)},
		}

		var lines []string
		for _, do := range head(report.ContentStrategy.Dos, maxDigestItems) {
			lines = append(lines, "✅ "+do)
		}
		for _, dont := range head(report.ContentStrategy.Donts, maxDigestItems) {
			lines = append(lines, "❌ "+dont)
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: fmt.Sprintf("**[r/%s](https://www.reddit.com/r/%s)**", report.Community, report.Community),
			ActivityText:  strings.Join(lines, "\n\n"),
			Facts:         facts,
			Markdown:      true,
		})
	}

	if len(digest.Failures) > 0 {
		var lines []string
		for _, failure := range digest.Failures {
			lines = append(lines, fmt.Sprintf("**r/%s**: %s", failure.Community, failure.Error))
		}
		message.ThemeColor = "d13438"
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Failed Analyses",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildTeamsAlert(alert *models.Alert) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      alert.Title,
		Text:       alert.Message,
	}
	if alert.Community != "" {
		message.Sections = []TeamsSection{{
			Facts: []TeamsFact{
				{Name: "Community", Value: "r/" + alert.Community},
				{Name: "Type", Value: alert.Type},
			},
		}}
	}
	return message
}

func (s *Service) sendDigestEmail(digest *models.Digest) error {
	subject := fmt.Sprintf("Community Marketing Digest (%s) - %d communities", digest.Period, len(digest.Reports))

	htmlBody, err := buildDigestHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	return s.sendEmail(subject, buildDigestText(digest), htmlBody)
}

func (s *Service) sendEmail(subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const digestTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Community Marketing Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #ff4500; color: white; padding: 20px; border-radius: 5px; }
        .community { border-left: 4px solid #ff4500; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .score { font-size: 1.4em; font-weight: bold; }
        .meta { color: #666; font-size: 0.9em; }
        .failure { border-left-color: #d13438; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Community Marketing Digest</h1>
        <p>{{.Period}} run generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>

    {{range .Reports}}
    <div class="community">
        <h2><a href="https://www.reddit.com/r/{{.Community}}" target="_blank">r/{{.Community}}</a></h2>
        <div class="score">{{.Score}}/100</div>
        <div class="meta">
            {{.CommunityMetadata.SubscriberCount}} subscribers | {{status .}}
        </div>
        {{if .PostingGuidelines.BestTimes}}<p><strong>Best times:</strong> {{join .PostingGuidelines.BestTimes}}</p>{{end}}
        {{with head .ContentStrategy.Dos}}<p><strong>Do:</strong></p><ul>{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
        {{with head .ContentStrategy.Donts}}<p><strong>Don't:</strong></p><ul>{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
    </div>
    {{end}}

    {{if .Failures}}
    <h2>Failed Analyses</h2>
    {{range .Failures}}
    <div class="community failure"><strong>r/{{.Community}}</strong>: {{.Error}}</div>
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by the Subreddit Analyzer.</small></p>
</body>
</html>
`

var digestTmpl = template.Must(template.New("digest").Funcs(template.FuncMap{
	"join":   joinOrNone,
	"status": enrichmentStatus,
	"head":   func(items []string) []string { return head(items, maxDigestItems) },
}).Parse(digestTemplate))

func buildDigestHTML(digest *models.Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildDigestText(digest *models.Digest) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Community Marketing Digest (%s)\n", digest.Period))
	text.WriteString(fmt.Sprintf("Generated: %s\n", digest.GeneratedAt.Format(generatedFmt)))

	for i, report := range digest.Reports {
		text.WriteString(fmt.Sprintf("\n%d. r/%s - score %d/100\n", i+1, report.Community, report.Score))
		text.WriteString(fmt.Sprintf("   Subscribers: %d | %s\n", report.CommunityMetadata.SubscriberCount, enrichmentStatus(report)))
		text.WriteString(fmt.Sprintf("   Best times: %s\n", joinOrNone(report.PostingGuidelines.BestTimes)))
		for _, do := range head(report.ContentStrategy.Dos, maxDigestItems) {
			text.WriteString(fmt.Sprintf("   + %s\n", do))
		}
		for _, dont := range head(report.ContentStrategy.Donts, maxDigestItems) {
			text.WriteString(fmt.Sprintf("   - %s\n", dont))
		}
	}

	if len(digest.Failures) > 0 {
		text.WriteString("\nFAILED\n")
		text.WriteString("======\n")
		for _, failure := range digest.Failures {
			text.WriteString(fmt.Sprintf("r/%s: %s\n", failure.Community, failure.Error))
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by the Subreddit Analyzer.\n")

	return text.String()
}

func buildAlertText(alert *models.Alert) string {
	var text strings.Builder
	text.WriteString(alert.Title + "\n\n")
	text.WriteString(alert.Message + "\n")
	if alert.Community != "" {
		text.WriteString(fmt.Sprintf("\nCommunity: r/%s\n", alert.Community))
	}
	text.WriteString(fmt.Sprintf("Type: %s\nRaised: %s\n", alert.Type, alert.CreatedAt.Format(generatedFmt)))
	return text.String()
}

func enrichmentStatus(report *models.AnalysisReport) string {
	switch {
	case report.Enriched:
		return "narrative included"
	case report.EnrichmentError != "":
		return "numeric only (narrative failed)"
	default:
		return "numeric only"
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
