package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subscout/subreddit-analyzer/internal/config"
	"github.com/subscout/subreddit-analyzer/internal/models"
)

func sampleDigest() *models.Digest {
	return &models.Digest{
		GeneratedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Period:      "weekly",
		Reports: []*models.AnalysisReport{
			{
				Community:         "golang",
				Score:             56,
				CommunityMetadata: models.CommunityMetadata{SubscriberCount: 250000},
				PostingGuidelines: models.PostingGuidelines{BestTimes: []string{"2:00 PM – 2:59 PM"}},
				ContentStrategy: models.ContentStrategy{
					Dos:   []string{"Share text posts", "Engage in comments", "Be transparent", "Read the rules"},
					Donts: []string{"No self-promotion"},
				},
				Enriched: true,
			},
			{
				Community:       "devops",
				Score:           31,
				EnrichmentError: "remote rate limited",
			},
		},
		Failures: []models.DigestFailure{{Community: "private_sub", Error: "community not found"}},
	}
}

func TestService_IsEnabled(t *testing.T) {
	assert.False(t, NewService(&config.Config{}).IsEnabled())
	assert.True(t, NewService(&config.Config{TeamsWebhookURL: "http://hook"}).IsEnabled())
	assert.True(t, NewService(&config.Config{NotificationEmail: "a@b.c"}).IsEnabled())
}

func TestService_SendDigestDisabledIsNoop(t *testing.T) {
	assert.NoError(t, NewService(&config.Config{}).SendDigest(sampleDigest()))
}

func TestService_buildTeamsDigest(t *testing.T) {
	service := NewService(&config.Config{})
	message := service.buildTeamsDigest(sampleDigest())

	assert.Equal(t, "MessageCard", message.Type)
	assert.Contains(t, message.Title, "weekly")
	assert.Contains(t, message.Text, "Analysed 2 communities, 1 failed")
	assert.Equal(t, "d13438", message.ThemeColor)
	require.Len(t, message.Sections, 3)

	golang := message.Sections[0]
	assert.Contains(t, golang.ActivityTitle, "r/golang")
	assert.Equal(t, TeamsFact{Name: "Friendliness Score", Value: "56/100"}, golang.Facts[0])
	assert.Contains(t, golang.ActivityText, "Be transparent")
	assert.NotContains(t, golang.ActivityText, "Read the rules")
	assert.Contains(t, golang.ActivityText, "No self-promotion")

	devops := message.Sections[1]
	assert.Equal(t, "numeric only (narrative failed)", devops.Facts[3].Value)
	assert.Equal(t, "none", devops.Facts[2].Value)

	assert.Equal(t, "Failed Analyses", message.Sections[2].ActivityTitle)
	assert.Contains(t, message.Sections[2].ActivityText, "private_sub")
}

func TestService_SendDigestToTeams(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	require.NoError(t, service.SendDigest(sampleDigest()))
	assert.Len(t, received.Sections, 3)
}

func TestService_SendAlertTeamsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad card"))
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	err := service.SendAlert(&models.Alert{Type: "quota", Title: "Quota exhausted", Message: "Top up"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestBuildDigestHTML(t *testing.T) {
	html, err := buildDigestHTML(sampleDigest())
	require.NoError(t, err)

	assert.Contains(t, html, "r/golang")
	assert.Contains(t, html, "56/100")
	assert.Contains(t, html, "2:00 PM – 2:59 PM")
	assert.Contains(t, html, "narrative included")
	assert.Contains(t, html, "private_sub")
	assert.NotContains(t, html, "Read the rules")
}

func TestBuildDigestText(t *testing.T) {
	text := buildDigestText(sampleDigest())

	assert.Contains(t, text, "1. r/golang - score 56/100")
	assert.Contains(t, text, "2. r/devops - score 31/100")
	assert.Contains(t, text, "   + Share text posts")
	assert.Contains(t, text, "   - No self-promotion")
	assert.Contains(t, text, "r/private_sub: community not found")
}
