package analyzer

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/subscout/subreddit-analyzer/internal/analysis"
	"github.com/subscout/subreddit-analyzer/internal/config"
	"github.com/subscout/subreddit-analyzer/internal/enrichment"
	"github.com/subscout/subreddit-analyzer/internal/models"
	"github.com/subscout/subreddit-analyzer/internal/sources"
	"github.com/subscout/subreddit-analyzer/internal/storage"
)

// MockStorage is a mock implementation of the storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(filename string, data []byte) error {
	args := m.Called(filename, data)
	return args.Error(0)
}

func (m *MockStorage) Retrieve(filename string) ([]byte, error) {
	args := m.Called(filename)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) List(prefix string) ([]string, error) {
	args := m.Called(prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) Delete(filename string) error {
	args := m.Called(filename)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendDigest(digest *models.Digest) error {
	args := m.Called(digest)
	return args.Error(0)
}

func (m *MockNotificationService) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

// MockProvider is a mock implementation of the community provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetName() string { return "mock" }

func (m *MockProvider) IsEnabled() bool { return true }

func (m *MockProvider) FetchCommunity(ctx context.Context, name string) (*models.CommunityMetadata, error) {
	args := m.Called(name)
	meta, _ := args.Get(0).(*models.CommunityMetadata)
	return meta, args.Error(1)
}

func (m *MockProvider) FetchPosts(ctx context.Context, name string, limit int) ([]models.Post, error) {
	args := m.Called(name, limit)
	posts, _ := args.Get(0).([]models.Post)
	return posts, args.Error(1)
}

type fakeEnricher struct {
	narrative enrichment.Narrative
	err       error
	started   chan struct{}
	unblock   chan struct{}
	calls     int32
}

func (f *fakeEnricher) Enrich(ctx context.Context, req models.NarrativeRequest) (enrichment.Narrative, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.unblock != nil {
		<-f.unblock
	}
	return f.narrative, f.err
}

var fixedNow = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		AnalysisSchedule: "weekly",
		TimeZone:         "UTC",
		PostSampleSize:   100,
	}
}

func newTestService(enricher enrichment.Enricher, store *MockStorage, notifier *MockNotificationService, provider *MockProvider) *Service {
	service := NewService(testConfig(), provider, enricher, store, nil, nil)
	if notifier != nil {
		service.notificationService = notifier
	}
	service.now = func() time.Time { return fixedNow }
	return service
}

func testMetadata(name string) models.CommunityMetadata {
	return models.CommunityMetadata{
		Name:            name,
		SubscriberCount: 50000,
		ActiveUserCount: 500,
		Description:     "A community",
		Rules: []models.Rule{
			{Title: "No self-promotion", Description: "Do not advertise"},
			{Title: "Be civil"},
		},
	}
}

func testPosts() []models.Post {
	base := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC).Unix()
	return []models.Post{
		{ID: "1", Title: "Question", Body: "text", Score: 10, CommentCount: 5, CreatedAt: base},
		{ID: "2", Title: "Link", URL: "https://example.com/a", Score: 4, CommentCount: 2, CreatedAt: base + 600},
		{ID: "3", Title: "Another", Body: "text", Score: 6, CommentCount: 1, CreatedAt: base + 3*3600},
	}
}

func stageRecorder() (*[]Stage, func(Stage)) {
	var stages []Stage
	return &stages, func(s Stage) { stages = append(stages, s) }
}

func TestService_ProduceAnalysis_NumericOnly(t *testing.T) {
	service := newTestService(nil, &MockStorage{}, nil, &MockProvider{})
	stages, record := stageRecorder()

	report, err := service.ProduceAnalysis(context.Background(), testMetadata("golang"), testPosts(), record)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, []Stage{StagePrepared, StageEngagementComputed}, *stages)
	assert.Equal(t, "golang", report.Community)
	assert.Equal(t, fixedNow, report.GeneratedAt)
	assert.False(t, report.Enriched)
	assert.Empty(t, report.EnrichmentError)
	assert.Equal(t, []string{"2:00 PM – 2:59 PM"}, report.PostingGuidelines.BestTimes)
}

func TestService_ProduceAnalysis_Enriched(t *testing.T) {
	narrative := enrichment.ValidateNarrative(map[string]any{})
	narrative.Topics = []string{"Release notes"}
	enricher := &fakeEnricher{narrative: narrative}

	service := newTestService(enricher, &MockStorage{}, nil, &MockProvider{})
	numeric, err := newTestService(nil, &MockStorage{}, nil, &MockProvider{}).
		ProduceAnalysis(context.Background(), testMetadata("golang"), testPosts(), nil)
	require.NoError(t, err)

	stages, record := stageRecorder()
	report, err := service.ProduceAnalysis(context.Background(), testMetadata("golang"), testPosts(), record)
	require.NoError(t, err)

	assert.Equal(t, []Stage{StagePrepared, StageEngagementComputed, StageRemoteStarted, StageRemoteCompleted}, *stages)
	assert.True(t, report.Enriched)
	assert.Equal(t, numeric.Score, report.Score)
	assert.Equal(t, []string{"Release notes"}, report.ContentStrategy.Topics)
	assert.Equal(t, enrichment.FallbackImmediate, report.GamePlan.Immediate)
	assert.Equal(t, int32(1), atomic.LoadInt32(&enricher.calls))
}

func TestService_ProduceAnalysis_EnrichmentFailureKeepsPartialReport(t *testing.T) {
	enricher := &fakeEnricher{err: &enrichment.Error{Kind: enrichment.ErrRemoteRateLimited, StatusCode: 429, Attempts: 4}}
	service := newTestService(enricher, &MockStorage{}, nil, &MockProvider{})
	stages, record := stageRecorder()

	report, err := service.ProduceAnalysis(context.Background(), testMetadata("golang"), testPosts(), record)
	require.Error(t, err)
	require.NotNil(t, report)

	assert.ErrorIs(t, err, enrichment.ErrRemoteRateLimited)
	assert.False(t, report.Enriched)
	assert.Contains(t, report.EnrichmentError, "remote rate limited")
	assert.NotZero(t, report.Score)
	assert.Equal(t, StageRemoteCompleted, (*stages)[len(*stages)-1])
}

func TestService_ProduceAnalysis_InsufficientData(t *testing.T) {
	enricher := &fakeEnricher{}
	service := newTestService(enricher, &MockStorage{}, nil, &MockProvider{})
	stages, record := stageRecorder()

	report, err := service.ProduceAnalysis(context.Background(), testMetadata("golang"), nil, record)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, analysis.ErrInsufficientData)
	assert.Equal(t, []Stage{StagePrepared}, *stages)
	assert.Equal(t, int32(0), atomic.LoadInt32(&enricher.calls))
}

func TestService_ProduceAnalysis_AlreadyInProgress(t *testing.T) {
	enricher := &fakeEnricher{
		narrative: enrichment.ValidateNarrative(map[string]any{}),
		started:   make(chan struct{}, 4),
		unblock:   make(chan struct{}),
	}
	service := newTestService(enricher, &MockStorage{}, nil, &MockProvider{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	run := func(i int, name string) {
		defer wg.Done()
		_, errs[i] = service.ProduceAnalysis(context.Background(), testMetadata(name), testPosts(), nil)
	}

	wg.Add(1)
	go run(0, "golang")
	<-enricher.started

	_, err := service.ProduceAnalysis(context.Background(), testMetadata("golang"), testPosts(), nil)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	_, err = service.ProduceAnalysis(context.Background(), testMetadata("GoLang"), testPosts(), nil)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	// a different community is not blocked
	wg.Add(1)
	go run(1, "rust")
	<-enricher.started

	close(enricher.unblock)
	wg.Wait()
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	_, err = service.ProduceAnalysis(context.Background(), testMetadata("golang"), testPosts(), nil)
	assert.NoError(t, err)
	assert.Contains(t, service.GetMetrics(), `"rejected_in_progress": 2`)
}

func TestService_AnalyzeCommunity(t *testing.T) {
	provider := &MockProvider{}
	meta := testMetadata("golang")
	provider.On("FetchCommunity", "golang").Return(&meta, nil)
	provider.On("FetchPosts", "golang", 100).Return(testPosts(), nil)

	var stored []byte
	store := &MockStorage{}
	store.On("Store", "reports/golang.json", mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).([]byte)
	}).Return(nil)

	service := newTestService(nil, store, nil, provider)

	report, err := service.AnalyzeCommunity(context.Background(), "r/golang")
	require.NoError(t, err)
	require.NotNil(t, report)

	var decoded models.AnalysisReport
	require.NoError(t, json.Unmarshal(stored, &decoded))
	assert.Equal(t, report.Score, decoded.Score)
	assert.Equal(t, "golang", decoded.Community)

	provider.AssertExpectations(t)
	store.AssertExpectations(t)
	assert.Contains(t, service.GetMetrics(), `"total_analyses": 1`)
}

func TestService_AnalyzeCommunity_QuotaAlert(t *testing.T) {
	provider := &MockProvider{}
	meta := testMetadata("golang")
	provider.On("FetchCommunity", "golang").Return(&meta, nil)
	provider.On("FetchPosts", "golang", 100).Return(testPosts(), nil)

	store := &MockStorage{}
	store.On("Store", "reports/golang.json", mock.Anything).Return(nil)

	notifier := &MockNotificationService{}
	notifier.On("SendAlert", mock.MatchedBy(func(a *models.Alert) bool {
		return a.Type == "enrichment_quota" && a.Community == "golang"
	})).Return(nil)

	enricher := &fakeEnricher{err: &enrichment.Error{Kind: enrichment.ErrRemoteQuotaExhausted, StatusCode: 402, Attempts: 1}}
	service := newTestService(enricher, store, notifier, provider)

	report, err := service.AnalyzeCommunity(context.Background(), "golang")
	require.NotNil(t, report)
	assert.ErrorIs(t, err, enrichment.ErrRemoteQuotaExhausted)
	assert.NotEmpty(t, report.EnrichmentError)

	notifier.AssertExpectations(t)
	store.AssertExpectations(t)
	assert.Contains(t, service.GetMetrics(), `"enrichment_failures": 1`)
}

func TestService_AnalyzeCommunity_InvalidName(t *testing.T) {
	service := newTestService(nil, &MockStorage{}, nil, &MockProvider{})
	_, err := service.AnalyzeCommunity(context.Background(), "../etc")
	assert.ErrorIs(t, err, sources.ErrInvalidCommunityName)
}

func TestService_RunWatched(t *testing.T) {
	provider := &MockProvider{}
	meta := testMetadata("golang")
	provider.On("FetchCommunity", "golang").Return(&meta, nil)
	provider.On("FetchPosts", "golang", 100).Return(testPosts(), nil)
	provider.On("FetchCommunity", "gone").Return(nil, sources.ErrCommunityNotFound)

	store := &MockStorage{}
	store.On("Store", storage.ReportKey("golang"), mock.Anything).Return(nil)

	notifier := &MockNotificationService{}
	notifier.On("SendDigest", mock.MatchedBy(func(d *models.Digest) bool {
		return d.Period == "weekly" &&
			len(d.Reports) == 1 && d.Reports[0].Community == "golang" &&
			len(d.Failures) == 1 && d.Failures[0].Community == "gone"
	})).Return(nil)

	service := newTestService(nil, store, notifier, provider)
	service.config.WatchedCommunities = []string{"golang", "gone"}

	require.NoError(t, service.RunWatched())
	notifier.AssertExpectations(t)

	metrics := service.GetMetrics()
	assert.Contains(t, metrics, `"total_analyses": 2`)
	assert.Contains(t, metrics, `"failed_analyses": 1`)
	assert.Contains(t, metrics, `"golang": `)
}

func TestService_RunWatched_NothingConfigured(t *testing.T) {
	notifier := &MockNotificationService{}
	service := newTestService(nil, &MockStorage{}, notifier, &MockProvider{})

	require.NoError(t, service.RunWatched())
	notifier.AssertNotCalled(t, "SendDigest", mock.Anything)
}

func TestService_StoredReport(t *testing.T) {
	store := &MockStorage{}
	store.On("Retrieve", "reports/golang.json").Return([]byte(`{"score": 56}`), nil)

	service := newTestService(nil, store, nil, &MockProvider{})
	data, err := service.StoredReport("GoLang")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 56}`, string(data))
}

func TestService_StoredCommunities(t *testing.T) {
	store := &MockStorage{}
	store.On("List", "reports/").Return([]string{"reports/rust.json", "reports/golang.json", "reports/tmp/x.json"}, nil)

	service := newTestService(nil, store, nil, &MockProvider{})
	communities, err := service.StoredCommunities()
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "rust"}, communities)

	empty := &MockStorage{}
	empty.On("List", "reports/").Return([]string(nil), nil)
	communities, err = newTestService(nil, empty, nil, &MockProvider{}).StoredCommunities()
	require.NoError(t, err)
	assert.NotNil(t, communities)
	assert.Empty(t, communities)
}

func TestService_DeleteReport(t *testing.T) {
	store := &MockStorage{}
	store.On("Delete", "reports/golang.json").Return(nil)

	service := newTestService(nil, store, nil, &MockProvider{})
	require.NoError(t, service.DeleteReport("r/GoLang"))
	assert.ErrorIs(t, service.DeleteReport("!"), sources.ErrInvalidCommunityName)
	store.AssertExpectations(t)
}
