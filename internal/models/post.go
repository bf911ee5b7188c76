package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PostStatus represents the current state of a post (informational)
type PostStatus string

const (
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
	PostStatusDeleted   PostStatus = "deleted"
)

// DeliveryStatus represents the per-channel state of a delivery
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusDeleted DeliveryStatus = "deleted"
)

// ChannelDelivery is the per-channel entry embedded in a post: the
// channel snapshot taken at save time plus the latest delivery state.
type ChannelDelivery struct {
	ChannelID int64          `json:"channel_id"`
	Name      string         `json:"name"`
	Status    DeliveryStatus `json:"status"`
	MessageID int            `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// ChannelDeliveries is the nested channel array stored as JSON,
// mirroring the one-document-per-post layout.
type ChannelDeliveries []ChannelDelivery

func (c ChannelDeliveries) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *ChannelDeliveries) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	}
	return nil
}

// Post is a persisted auto-post configuration. Created on draft save,
// read by the scheduler at fire time, mutated by the publisher and
// retractor as delivery outcomes land. Never deleted automatically.
type Post struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	PostID          string            `gorm:"uniqueIndex;not null" json:"post_id"`
	Text            string            `gorm:"type:text" json:"text"`
	ImageFileID     string            `json:"image_file_id"`
	Buttons         ButtonSpecs       `gorm:"type:json" json:"buttons"`
	Channels        ChannelDeliveries `gorm:"type:json" json:"channels"`
	Schedule        PostSchedule      `gorm:"type:json" json:"schedule"`
	Status          PostStatus        `gorm:"default:'scheduled';index" json:"status"`
	CreatedBy       int64             `json:"created_by"`
	LastPublishedAt *time.Time        `json:"last_published_at"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasContent reports whether the post carries at least text or an image.
func (p *Post) HasContent() bool {
	return p.Text != "" || p.ImageFileID != ""
}
