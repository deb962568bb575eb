package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/models"
)

const (
	DefaultAuthURL   = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIURL    = "https://oauth.reddit.com"
	DefaultPublicURL = "https://www.reddit.com"

	maxPostLimit = 100
)

var communityNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]{1,20}$`)

// RedditSource reads community metadata and recent posts from Reddit. With
// client credentials it uses the OAuth API, otherwise the public JSON endpoints.
type RedditSource struct {
	clientID     string
	clientSecret string
	userAgent    string
	client       *resty.Client

	authURL   string
	apiURL    string
	publicURL string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Ensure RedditSource implements CommunityProvider
var _ CommunityProvider = (*RedditSource)(nil)

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditAboutResponse struct {
	Kind string `json:"kind"`
	Data struct {
		DisplayName       string `json:"display_name"`
		Subscribers       int    `json:"subscribers"`
		ActiveUserCount   int    `json:"active_user_count"`
		AccountsActive    int    `json:"accounts_active"`
		PublicDescription string `json:"public_description"`
		Description       string `json:"description"`
	} `json:"data"`
}

type redditRulesResponse struct {
	Rules []struct {
		ShortName   string `json:"short_name"`
		Description string `json:"description"`
	} `json:"rules"`
}

type redditListingResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(clientID, clientSecret, userAgent string) *RedditSource {
	if userAgent == "" {
		userAgent = "Subreddit-Analyzer/1.0"
	}
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		client:       resty.New().SetTimeout(30 * time.Second),
		authURL:      DefaultAuthURL,
		apiURL:       DefaultAPIURL,
		publicURL:    DefaultPublicURL,
	}
}

// SetEndpoints overrides the token, OAuth API and public base URLs. Empty values keep the current one.
func (r *RedditSource) SetEndpoints(authURL, apiURL, publicURL string) *RedditSource {
	if authURL != "" {
		r.authURL = authURL
	}
	if apiURL != "" {
		r.apiURL = strings.TrimRight(apiURL, "/")
	}
	if publicURL != "" {
		r.publicURL = strings.TrimRight(publicURL, "/")
	}
	return r
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

// IsEnabled is always true: without credentials the public endpoints are used.
func (r *RedditSource) IsEnabled() bool {
	return true
}

func (r *RedditSource) hasCredentials() bool {
	return r.clientID != "" && r.clientSecret != ""
}

// NormalizeCommunityName strips an "r/" prefix and surrounding slashes and
// checks the result is a plausible community name.
func NormalizeCommunityName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "/")
	if len(name) > 2 && strings.EqualFold(name[:2], "r/") {
		name = name[2:]
	}
	if !communityNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCommunityName, name)
	}
	return name, nil
}

// FetchCommunity returns the community's metadata and rules
func (r *RedditSource) FetchCommunity(ctx context.Context, name string) (*models.CommunityMetadata, error) {
	name, err := NormalizeCommunityName(name)
	if err != nil {
		return nil, err
	}

	var about redditAboutResponse
	if err := r.get(ctx, "/r/"+name+"/about", nil, &about); err != nil {
		return nil, err
	}
	// unknown communities redirect to a search listing instead of a 404
	if about.Kind != "" && about.Kind != "t5" {
		return nil, fmt.Errorf("%w: r/%s", ErrCommunityNotFound, name)
	}

	var rules redditRulesResponse
	if err := r.get(ctx, "/r/"+name+"/about/rules", nil, &rules); err != nil {
		return nil, err
	}

	meta := &models.CommunityMetadata{
		Name:            name,
		SubscriberCount: nonNegative(about.Data.Subscribers),
		ActiveUserCount: nonNegative(about.Data.ActiveUserCount),
		Description:     strings.TrimSpace(about.Data.PublicDescription),
		Rules:           make([]models.Rule, 0, len(rules.Rules)),
	}
	if about.Data.DisplayName != "" {
		meta.Name = about.Data.DisplayName
	}
	if meta.ActiveUserCount == 0 {
		meta.ActiveUserCount = nonNegative(about.Data.AccountsActive)
	}
	if meta.Description == "" {
		meta.Description = strings.TrimSpace(about.Data.Description)
	}

	for _, rule := range rules.Rules {
		meta.Rules = append(meta.Rules, models.Rule{
			Title:       strings.TrimSpace(rule.ShortName),
			Description: strings.TrimSpace(rule.Description),
		})
	}

	logrus.Debugf("Fetched r/%s: %d subscribers, %d rules", meta.Name, meta.SubscriberCount, len(meta.Rules))
	return meta, nil
}

// FetchPosts returns up to limit of the newest posts in the community
func (r *RedditSource) FetchPosts(ctx context.Context, name string, limit int) ([]models.Post, error) {
	name, err := NormalizeCommunityName(name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPostLimit {
		limit = maxPostLimit
	}

	var listing redditListingResponse
	query := url.Values{"limit": {fmt.Sprintf("%d", limit)}}
	if err := r.get(ctx, "/r/"+name+"/new", query, &listing); err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		post := models.Post{
			ID:           p.ID,
			Title:        p.Title,
			Body:         p.Selftext,
			Score:        p.Score,
			CommentCount: nonNegative(p.NumComments),
			CreatedAt:    int64(p.Created),
			URL:          p.URL,
		}
		posts = append(posts, post)
	}

	logrus.Debugf("Fetched %d posts from r/%s", len(posts), name)
	return posts, nil
}

func (r *RedditSource) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	req := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent)

	var endpoint string
	if r.hasCredentials() {
		token, err := r.token(ctx)
		if err != nil {
			return fmt.Errorf("reddit authentication failed: %w", err)
		}
		req.SetAuthToken(token)
		endpoint = r.apiURL + path
	} else {
		endpoint = r.publicURL + path + ".json"
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("reddit request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusForbidden:
		return fmt.Errorf("%w: %s (status %d)", ErrCommunityNotFound, path, resp.StatusCode())
	default:
		return fmt.Errorf("reddit API returned status %d for %s", resp.StatusCode(), path)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode reddit response for %s: %w", path, err)
	}
	return nil
}

// token returns a cached access token, requesting a new one shortly before expiry
func (r *RedditSource) token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.tokenExpiry) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.authURL)

	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
