package storage

import (
	"context"
	"time"

	"github.com/autopost-bot/internal/models"
)

// Repository defines the interface for data persistence
type Repository interface {
	// Post operations
	SavePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, postID string) error
	// UpdatePostChannelStatus targets a single channel entry inside
	// the post's channel array; messageID 0 and deletedAt nil leave
	// those fields untouched.
	UpdatePostChannelStatus(ctx context.Context, postID string, channelID int64, status models.DeliveryStatus, messageID int, deletedAt *time.Time) error

	// Channel pool operations
	SaveChannel(ctx context.Context, channel *models.Channel) error
	DeleteChannel(ctx context.Context, channelID int64) error
	ListChannels(ctx context.Context) ([]*models.Channel, error)
	UpdateChannelSubscribers(ctx context.Context, channelID int64, subscribers int) error

	// Maintenance
	Close() error
	Migrate() error
}

// PostFilter defines filtering options for posts
type PostFilter struct {
	Status    *models.PostStatus
	CreatedBy *int64
	Limit     int
	Offset    int
	OrderBy   string // "created_at", "last_published_at"
	OrderDesc bool
}

// DefaultPostFilter returns a filter with sensible defaults
func DefaultPostFilter() PostFilter {
	return PostFilter{
		Limit:     50,
		OrderBy:   "created_at",
		OrderDesc: true,
	}
}
