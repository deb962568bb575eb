package analysis

import (
	"errors"
	"sort"
	"time"

	"github.com/subscout/subreddit-analyzer/internal/models"
)

// ErrInsufficientData is returned when there are no posts to derive engagement from.
// Nothing downstream of the aggregator may run after it.
var ErrInsufficientData = errors.New("insufficient data: post sample is empty")

const (
	peakHourNumerator   = 4
	peakHourDenominator = 5
	fallbackDayWindow   = 7.0
	secondsPerDay       = 24 * 60 * 60
)

// Aggregate reduces a post sample to engagement metrics. Hours are bucketed in loc;
// a nil loc means UTC.
func Aggregate(posts []models.Post, loc *time.Location) (*models.EngagementMetrics, error) {
	if len(posts) == 0 {
		return nil, ErrInsufficientData
	}
	if loc == nil {
		loc = time.UTC
	}

	metrics := &models.EngagementMetrics{}
	var totalComments, totalScore float64

	for _, post := range posts {
		totalComments += float64(post.CommentCount)
		totalScore += float64(post.Score)
		hour := time.Unix(post.CreatedAt, 0).In(loc).Hour()
		metrics.PostsPerHour[hour]++
	}

	n := float64(len(posts))
	metrics.AvgComments = totalComments / n
	metrics.AvgScore = totalScore / n
	metrics.InteractionRate = (metrics.AvgComments + metrics.AvgScore) / n
	metrics.PeakHours = peakHours(metrics.PostsPerHour)

	return metrics, nil
}

// peakHours returns every hour whose count is within 80% of the busiest hour, ties included.
func peakHours(perHour [24]int) []int {
	max := 0
	for _, count := range perHour {
		if count > max {
			max = count
		}
	}

	peaks := []int{}
	if max == 0 {
		return peaks
	}

	// count >= 0.8*max, kept in integers
	for hour, count := range perHour {
		if count*peakHourDenominator >= max*peakHourNumerator {
			peaks = append(peaks, hour)
		}
	}
	sort.Ints(peaks)
	return peaks
}

// PostsPerDay divides the sample size by the span between the oldest and newest post.
// When the span is unknown (fewer than two distinct timestamps) a fixed 7-day window is used.
func PostsPerDay(posts []models.Post) float64 {
	if len(posts) == 0 {
		return 0
	}

	oldest, newest := posts[0].CreatedAt, posts[0].CreatedAt
	for _, post := range posts[1:] {
		if post.CreatedAt < oldest {
			oldest = post.CreatedAt
		}
		if post.CreatedAt > newest {
			newest = post.CreatedAt
		}
	}

	spanDays := float64(newest-oldest) / secondsPerDay
	if spanDays <= 0 {
		return float64(len(posts)) / fallbackDayWindow
	}
	return float64(len(posts)) / spanDays
}
