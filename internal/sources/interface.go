package sources

import (
	"context"
	"errors"

	"github.com/subscout/subreddit-analyzer/internal/models"
)

var (
	// ErrCommunityNotFound is returned when the community does not exist or is not readable
	ErrCommunityNotFound = errors.New("community not found")
	// ErrInvalidCommunityName is returned for names the upstream would never accept
	ErrInvalidCommunityName = errors.New("invalid community name")
)

// CommunityProvider defines the contract for upstream community data sources
type CommunityProvider interface {
	GetName() string
	IsEnabled() bool
	FetchCommunity(ctx context.Context, name string) (*models.CommunityMetadata, error)
	FetchPosts(ctx context.Context, name string, limit int) ([]models.Post, error)
}
