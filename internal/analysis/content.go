package analysis

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/subscout/subreddit-analyzer/internal/models"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg"}

var videoExtensions = []string{".mp4", ".mov", ".webm", ".avi", ".mkv", ".m4v", ".gifv"}

// ClassifyPost returns the content type of a single post, or "" when it has neither
// a body nor an absolute URL. Checks run in order text, image, video, link.
func ClassifyPost(post models.Post) models.ContentType {
	if strings.TrimSpace(post.Body) != "" {
		return models.ContentText
	}

	u, err := url.Parse(strings.TrimSpace(post.URL))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ""
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if hasExtension(ext, imageExtensions) {
		return models.ContentImage
	}
	if hasExtension(ext, videoExtensions) {
		return models.ContentVideo
	}
	return models.ContentLink
}

func hasExtension(ext string, list []string) bool {
	if ext == "" {
		return false
	}
	for _, candidate := range list {
		if ext == candidate {
			return true
		}
	}
	return false
}

// DetectContentTypes returns the distinct content types in order of first discovery,
// along with how many posts fell into each.
func DetectContentTypes(posts []models.Post) ([]models.ContentType, map[models.ContentType]int) {
	types := []models.ContentType{}
	counts := make(map[models.ContentType]int)

	for _, post := range posts {
		contentType := ClassifyPost(post)
		if contentType == "" {
			continue
		}
		if counts[contentType] == 0 {
			types = append(types, contentType)
		}
		counts[contentType]++
	}

	return types, counts
}

// topContentType picks the most frequent type; ties go to the earlier discovered one.
func topContentType(types []models.ContentType, counts map[models.ContentType]int) models.ContentType {
	var top models.ContentType
	best := 0
	for _, contentType := range types {
		if counts[contentType] > best {
			top = contentType
			best = counts[contentType]
		}
	}
	return top
}

// FormatHourRange renders an hour of day as "2:00 PM – 2:59 PM".
func FormatHourRange(hour int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:00 %s – %d:59 %s", display, suffix, display, suffix)
}

// BestTimes formats peak hours in ascending hour order.
func BestTimes(peakHours []int) []string {
	sorted := models.CopySlice(peakHours)
	sort.Ints(sorted)

	times := make([]string, 0, len(sorted))
	for _, hour := range sorted {
		times = append(times, FormatHourRange(hour))
	}
	return times
}
