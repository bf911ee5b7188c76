// Package channels curates the pool of destinations eligible for
// auto-posting.
package channels

import (
	"context"
	"fmt"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/internal/telegram"
	"github.com/autopost-bot/pkg/logger"
)

// Manager registers, removes and lists pool channels and keeps their
// subscriber counts fresh out-of-band
type Manager struct {
	repo    storage.Repository
	gateway telegram.Gateway
	log     *logger.Logger
}

// NewManager creates a channel pool manager
func NewManager(repo storage.Repository, gateway telegram.Gateway, log *logger.Logger) *Manager {
	return &Manager{
		repo:    repo,
		gateway: gateway,
		log:     log.WithComponent("channels"),
	}
}

// Register adds or updates a pool channel. The subscriber count is
// fetched best-effort; a lookup failure does not block registration.
func (m *Manager) Register(ctx context.Context, channel *models.Channel) error {
	if count, err := m.gateway.ChatMemberCount(ctx, channel.ChannelID); err == nil {
		channel.Subscribers = count
	} else {
		m.log.Warn().Err(err).Int64("channel_id", channel.ChannelID).Msg("Member count lookup failed")
	}

	if err := m.repo.SaveChannel(ctx, channel); err != nil {
		return fmt.Errorf("failed to save channel: %w", err)
	}

	m.log.Info().
		Int64("channel_id", channel.ChannelID).
		Str("name", channel.Name).
		Msg("Channel registered")
	return nil
}

// Remove drops a channel from the pool. Posts that already snapshot
// the channel keep their copy.
func (m *Manager) Remove(ctx context.Context, channelID int64) error {
	if err := m.repo.DeleteChannel(ctx, channelID); err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	m.log.Info().Int64("channel_id", channelID).Msg("Channel removed")
	return nil
}

// List returns the pool in registration order
func (m *Manager) List(ctx context.Context) ([]*models.Channel, error) {
	return m.repo.ListChannels(ctx)
}

// RefreshSubscribers updates every pool channel's subscriber count,
// continuing past individual failures. Returns how many were updated.
func (m *Manager) RefreshSubscribers(ctx context.Context) (int, error) {
	channels, err := m.repo.ListChannels(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, ch := range channels {
		count, err := m.gateway.ChatMemberCount(ctx, ch.ChannelID)
		if err != nil {
			m.log.Warn().Err(err).Int64("channel_id", ch.ChannelID).Msg("Member count lookup failed")
			continue
		}
		if err := m.repo.UpdateChannelSubscribers(ctx, ch.ChannelID, count); err != nil {
			m.log.Warn().Err(err).Int64("channel_id", ch.ChannelID).Msg("Failed to persist subscriber count")
			continue
		}
		updated++
	}

	m.log.Info().Int("updated", updated).Int("total", len(channels)).Msg("Subscriber refresh completed")
	return updated, nil
}
