package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/analysis"
	"github.com/subscout/subreddit-analyzer/internal/config"
	"github.com/subscout/subreddit-analyzer/internal/enrichment"
	"github.com/subscout/subreddit-analyzer/internal/models"
	"github.com/subscout/subreddit-analyzer/internal/notifications"
	"github.com/subscout/subreddit-analyzer/internal/sources"
	"github.com/subscout/subreddit-analyzer/internal/storage"
)

const (
	watchedRunTimeout = 30 * time.Minute
	watchedWorkers    = 3
)

// Service runs community analyses and persists their reports
type Service struct {
	config              *config.Config
	provider            sources.CommunityProvider
	enricher            enrichment.Enricher
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	guard               Guard
	metrics             *Metrics
	mu                  sync.RWMutex
	now                 func() time.Time
}

// Metrics holds analysis metrics
type Metrics struct {
	TotalAnalyses       int            `json:"total_analyses"`
	FailedAnalyses      int            `json:"failed_analyses"`
	EnrichmentFailures  int            `json:"enrichment_failures"`
	RejectedInProgress  int            `json:"rejected_in_progress"`
	LastRun             time.Time      `json:"last_run"`
	LastRunDuration     string         `json:"last_run_duration"`
	LastAnalysis        string         `json:"last_analysis_duration"`
	LatestScores        map[string]int `json:"latest_scores"`
	EnrichmentErrorKind map[string]int `json:"enrichment_error_kinds"`
}

// NewService creates a new analyzer. A nil enricher produces numeric-only reports,
// a nil guard defaults to an in-process MemoryGuard and a nil notification service
// disables digests and alerts.
func NewService(cfg *config.Config, provider sources.CommunityProvider, enricher enrichment.Enricher,
	storage storage.StorageInterface, notificationService notifications.NotificationInterface, guard Guard) *Service {
	if guard == nil {
		guard = NewMemoryGuard()
	}
	return &Service{
		config:              cfg,
		provider:            provider,
		enricher:            enricher,
		storage:             storage,
		notificationService: notificationService,
		guard:               guard,
		metrics: &Metrics{
			LatestScores:        make(map[string]int),
			EnrichmentErrorKind: make(map[string]int),
		},
		now: time.Now,
	}
}

// ProduceAnalysis turns a community snapshot and its recent posts into a report:
// engagement, rule classification, the numeric skeleton, then narrative enrichment.
//
// A sample without posts fails with analysis.ErrInsufficientData and no report. If
// enrichment fails the numeric-only report is returned together with the error, with
// EnrichmentError set. A second call for a community that is still being analysed
// fails with ErrAlreadyInProgress. progress may be nil.
func (s *Service) ProduceAnalysis(ctx context.Context, meta models.CommunityMetadata, posts []models.Post, progress func(Stage)) (*models.AnalysisReport, error) {
	notify := func(stage Stage) {
		if progress != nil {
			progress(stage)
		}
	}

	key := strings.ToLower(strings.TrimSpace(meta.Name))
	if key == "" {
		return nil, fmt.Errorf("%w: empty name", sources.ErrInvalidCommunityName)
	}

	release, err := s.guard.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, ErrAlreadyInProgress) {
			s.mu.Lock()
			s.metrics.RejectedInProgress++
			s.mu.Unlock()
		}
		return nil, err
	}
	defer release()

	notify(StagePrepared)

	metrics, err := analysis.Aggregate(posts, s.config.Location())
	if err != nil {
		return nil, fmt.Errorf("analysis of r/%s: %w", meta.Name, err)
	}
	notify(StageEngagementComputed)

	skeleton, err := analysis.Build(analysis.BuildInput{
		Metadata:    meta,
		Metrics:     metrics,
		Rules:       analysis.ClassifyRules(meta.Rules),
		Posts:       posts,
		PostsPerDay: analysis.PostsPerDay(posts),
		PostLimit:   s.config.ReportPostLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis of r/%s: %w", meta.Name, err)
	}

	report := skeleton.Report
	report.GeneratedAt = s.now().UTC()

	logrus.WithFields(logrus.Fields{
		"community":  meta.Name,
		"score":      report.Score,
		"base":       skeleton.Breakdown.Base,
		"size":       skeleton.Breakdown.Size,
		"activity":   skeleton.Breakdown.Activity,
		"engagement": skeleton.Breakdown.Engagement,
		"frequency":  skeleton.Breakdown.Frequency,
		"penalty":    skeleton.Breakdown.Penalty,
	}).Debug("Computed friendliness score")

	if s.enricher == nil {
		logrus.Debugf("Narrative enrichment disabled, returning numeric report for r/%s", meta.Name)
		return report, nil
	}

	notify(StageRemoteStarted)
	narrative, err := s.enricher.Enrich(ctx, skeleton.Request)
	notify(StageRemoteCompleted)

	if err != nil {
		report.EnrichmentError = err.Error()
		logrus.Warnf("Narrative enrichment failed for r/%s, keeping numeric report: %v", meta.Name, err)
		return report, fmt.Errorf("narrative enrichment for r/%s: %w", meta.Name, err)
	}

	if len(narrative.Fallbacks) > 0 {
		logrus.Infof("Narrative for r/%s used fallbacks for %d field(s)", meta.Name, len(narrative.Fallbacks))
	}

	return enrichment.Merge(report, narrative), nil
}

// AnalyzeCommunity fetches a community, analyses it and stores the report under
// storage.ReportKey. A non-nil report with a non-nil error is a usable partial
// result: the narrative failed or the report could not be stored.
func (s *Service) AnalyzeCommunity(ctx context.Context, name string) (*models.AnalysisReport, error) {
	start := time.Now()

	name, err := sources.NormalizeCommunityName(name)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Starting analysis of r/%s", name)

	meta, err := s.provider.FetchCommunity(ctx, name)
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("failed to fetch r/%s: %w", name, err)
	}

	posts, err := s.provider.FetchPosts(ctx, name, s.config.PostSampleSize)
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("failed to fetch posts of r/%s: %w", name, err)
	}

	report, err := s.ProduceAnalysis(ctx, *meta, posts, func(stage Stage) {
		logrus.Debugf("r/%s: %s", name, stage)
	})
	if report == nil {
		if !errors.Is(err, ErrAlreadyInProgress) {
			s.recordFailure()
		}
		return nil, err
	}

	if err != nil {
		s.recordEnrichmentFailure(err)
		s.alertOnQuota(name, err)
	}

	if storeErr := s.storeReport(report); storeErr != nil {
		logrus.Errorf("Failed to store report for r/%s: %v", name, storeErr)
		err = errors.Join(err, storeErr)
	}

	s.recordSuccess(report, time.Since(start))
	logrus.Infof("Analysis of r/%s completed in %v (score %d, enriched %t)", name, time.Since(start), report.Score, report.Enriched)

	return report, err
}

func (s *Service) storeReport(report *models.AnalysisReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return s.storage.Store(storage.ReportKey(report.Community), data)
}

// StoredReport returns the last stored report blob of a community
func (s *Service) StoredReport(name string) ([]byte, error) {
	name, err := sources.NormalizeCommunityName(name)
	if err != nil {
		return nil, err
	}
	return s.storage.Retrieve(storage.ReportKey(name))
}

// StoredCommunities lists the communities with a stored report, sorted by name
func (s *Service) StoredCommunities() ([]string, error) {
	keys, err := s.storage.List(storage.ReportPrefix)
	if err != nil {
		return nil, err
	}

	communities := []string{}
	for _, key := range keys {
		if community, ok := storage.CommunityFromKey(key); ok {
			communities = append(communities, community)
		}
	}
	sort.Strings(communities)
	return communities, nil
}

// DeleteReport removes the stored report of a community
func (s *Service) DeleteReport(name string) error {
	name, err := sources.NormalizeCommunityName(name)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(storage.ReportKey(name)); err != nil {
		return err
	}
	logrus.Infof("Deleted stored report of r/%s", name)
	return nil
}

// RunWatched analyses every watched community and sends a digest of the results
func (s *Service) RunWatched() error {
	start := time.Now()
	communities := s.config.WatchedCommunities
	if len(communities) == 0 {
		logrus.Info("No watched communities configured, skipping run")
		return nil
	}

	logrus.Infof("Starting watched run over %d communities", len(communities))

	ctx, cancel := context.WithTimeout(context.Background(), watchedRunTimeout)
	defer cancel()

	type result struct {
		report *models.AnalysisReport
		err    error
	}
	results := make([]result, len(communities))

	var wg sync.WaitGroup
	sem := make(chan struct{}, watchedWorkers)
	for i, name := range communities {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			report, err := s.AnalyzeCommunity(ctx, name)
			results[i] = result{report: report, err: err}
		}(i, name)
	}
	wg.Wait()

	digest := &models.Digest{
		GeneratedAt: s.now().UTC(),
		Period:      s.config.AnalysisSchedule,
	}
	for i, r := range results {
		if r.report != nil {
			digest.Reports = append(digest.Reports, r.report)
			continue
		}
		logrus.Errorf("Analysis of r/%s failed: %v", communities[i], r.err)
		digest.Failures = append(digest.Failures, models.DigestFailure{
			Community: communities[i],
			Error:     r.err.Error(),
		})
	}

	s.mu.Lock()
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = time.Since(start).String()
	s.mu.Unlock()

	logrus.Infof("Watched run completed in %v: %d analysed, %d failed", time.Since(start), len(digest.Reports), len(digest.Failures))

	if s.notificationService == nil {
		return nil
	}
	if err := s.notificationService.SendDigest(digest); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	return nil
}

func (s *Service) alertOnQuota(name string, err error) {
	if s.notificationService == nil || !errors.Is(err, enrichment.ErrRemoteQuotaExhausted) {
		return
	}
	alert := &models.Alert{
		Type:      "enrichment_quota",
		Title:     "Narrative enrichment quota exhausted",
		Message:   "The completion provider rejected the request for lack of quota. Reports are numeric-only until it is topped up.",
		Community: name,
		CreatedAt: s.now().UTC(),
	}
	if alertErr := s.notificationService.SendAlert(alert); alertErr != nil {
		logrus.Errorf("Failed to send quota alert: %v", alertErr)
	}
}

func (s *Service) recordSuccess(report *models.AnalysisReport, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalAnalyses++
	s.metrics.LatestScores[strings.ToLower(report.Community)] = report.Score
	s.metrics.LastAnalysis = duration.String()
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalAnalyses++
	s.metrics.FailedAnalyses++
}

func (s *Service) recordEnrichmentFailure(err error) {
	kind := "other"
	for _, sentinel := range []error{
		enrichment.ErrRemoteQuotaExhausted,
		enrichment.ErrRemoteRateLimited,
		enrichment.ErrRemoteServerError,
		enrichment.ErrRemoteTimeout,
		enrichment.ErrRemoteRejected,
		enrichment.ErrMalformedResponse,
	} {
		if errors.Is(err, sentinel) {
			kind = sentinel.Error()
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.EnrichmentFailures++
	s.metrics.EnrichmentErrorKind[kind]++
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
