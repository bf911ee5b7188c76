package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Post{},
		&models.Channel{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Post operations

func (r *Repository) SavePost(ctx context.Context, post *models.Post) error {
	// Upsert keyed by the stable post id
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}},
		UpdateAll: true,
	}).Create(post).Error
}

func (r *Repository) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (r *Repository) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.Post, error) {
	var posts []*models.Post
	query := r.db.WithContext(ctx).Model(&models.Post{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}

	orderCol := "created_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *Repository) UpdatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *Repository) DeletePost(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Post{}).Error
}

// UpdatePostChannelStatus rewrites the single matching entry of the
// post's channel array. The array lives in one JSON column, so the
// update is a read-modify-write of that field; concurrent writers
// resolve last-write-wins at the field level.
func (r *Repository) UpdatePostChannelStatus(ctx context.Context, postID string, channelID int64, status models.DeliveryStatus, messageID int, deletedAt *time.Time) error {
	post, err := r.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %s not found", postID)
	}

	found := false
	for i := range post.Channels {
		if post.Channels[i].ChannelID != channelID {
			continue
		}
		post.Channels[i].Status = status
		post.Channels[i].UpdatedAt = time.Now()
		if messageID != 0 {
			post.Channels[i].MessageID = messageID
		}
		if deletedAt != nil {
			post.Channels[i].DeletedAt = deletedAt
		}
		found = true
		break
	}
	if !found {
		return fmt.Errorf("channel %d not in post %s", channelID, postID)
	}

	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("post_id = ?", postID).
		Update("channels", post.Channels).Error
}

// Channel pool operations

func (r *Repository) SaveChannel(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		UpdateAll: true,
	}).Create(channel).Error
}

func (r *Repository) DeleteChannel(ctx context.Context, channelID int64) error {
	return r.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&models.Channel{}).Error
}

func (r *Repository) ListChannels(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *Repository) UpdateChannelSubscribers(ctx context.Context, channelID int64, subscribers int) error {
	return r.db.WithContext(ctx).Model(&models.Channel{}).
		Where("channel_id = ?", channelID).
		Update("subscribers", subscribers).Error
}
