package storage

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by Retrieve when no object exists under the key
var ErrNotFound = errors.New("object not found")

// ReportPrefix is the key prefix under which analysis reports are stored
const ReportPrefix = "reports/"

// StorageInterface defines the contract for storage operations.
// Delete of a missing key succeeds.
type StorageInterface interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}

// CommunityFromKey is the inverse of ReportKey. ok is false for keys outside ReportPrefix.
func CommunityFromKey(key string) (community string, ok bool) {
	if !strings.HasPrefix(key, ReportPrefix) || !strings.HasSuffix(key, ".json") {
		return "", false
	}
	community = strings.TrimSuffix(strings.TrimPrefix(key, ReportPrefix), ".json")
	return community, community != "" && !strings.Contains(community, "/")
}

// ReportKey returns the storage key of a community's latest report
func ReportKey(community string) string {
	return ReportPrefix + strings.ToLower(community) + ".json"
}
