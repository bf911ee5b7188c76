package models

import (
	"time"
)

// Channel is a pool entry: a destination eligible for auto-posting.
// Channels are registered independently of any post and selected
// per-post by reference.
type Channel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChannelID   int64     `gorm:"uniqueIndex;not null" json:"channel_id"` // Telegram chat id
	Name        string    `gorm:"not null" json:"name"`
	Username    string    `json:"username"`
	Subscribers int       `json:"subscribers"` // best-effort, refreshed out-of-band
	AddedBy     int64     `json:"added_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
