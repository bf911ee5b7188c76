// Package publisher fans posts out across their channels and retracts
// them after their configured lifetime.
package publisher

import (
	"context"
	"time"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/internal/telegram"
	"github.com/autopost-bot/pkg/logger"
)

// Publisher sends a post to each of its channels independently
type Publisher struct {
	gateway telegram.Gateway
	repo    storage.Repository
	log     *logger.Logger
	now     func() time.Time
}

// New creates a publisher
func New(gateway telegram.Gateway, repo storage.Repository, log *logger.Logger) *Publisher {
	return &Publisher{
		gateway: gateway,
		repo:    repo,
		log:     log.WithComponent("publisher"),
		now:     time.Now,
	}
}

// Publish attempts delivery to every channel in persisted order. One
// channel's failure never aborts the rest. Each outcome is persisted
// immediately after its attempt so partial progress survives a crash
// mid-fan-out; a failed status write does not block the next send.
func (p *Publisher) Publish(ctx context.Context, post *models.Post) *PublishReport {
	report := &PublishReport{
		PostID: post.PostID,
		At:     p.now(),
	}

	for i := range post.Channels {
		ch := &post.Channels[i]
		outcome := p.sendToChannel(ctx, post, ch.ChannelID)
		outcome.ChannelName = ch.Name

		if outcome.Success {
			report.Succeeded++
			ch.Status = models.DeliveryStatusSent
			ch.MessageID = outcome.MessageID
			ch.Error = ""
		} else {
			report.Failed++
			ch.Status = models.DeliveryStatusFailed
			ch.Error = outcome.Error
		}
		ch.UpdatedAt = p.now()

		if err := p.repo.UpdatePostChannelStatus(ctx, post.PostID, ch.ChannelID, ch.Status, outcome.MessageID, nil); err != nil {
			p.log.Warn().
				Err(err).
				Str("post_id", post.PostID).
				Int64("channel_id", ch.ChannelID).
				Msg("Failed to persist delivery status")
		}

		report.Outcomes = append(report.Outcomes, outcome)
	}

	now := p.now()
	post.LastPublishedAt = &now
	if report.Succeeded > 0 {
		post.Status = models.PostStatusPublished
	} else {
		post.Status = models.PostStatusFailed
	}
	if err := p.repo.UpdatePost(ctx, post); err != nil {
		p.log.Warn().Err(err).Str("post_id", post.PostID).Msg("Failed to persist post status")
	}

	p.log.Info().
		Str("post_id", post.PostID).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Fan-out completed")

	return report
}

// sendToChannel chooses the send shape by content presence:
// image+caption, image only, or text only.
func (p *Publisher) sendToChannel(ctx context.Context, post *models.Post, channelID int64) DeliveryOutcome {
	outcome := DeliveryOutcome{ChannelID: channelID}

	var msgID int
	var err error
	if post.ImageFileID != "" {
		msgID, err = p.gateway.SendPhoto(ctx, channelID, post.ImageFileID, post.Text, post.Buttons)
	} else {
		msgID, err = p.gateway.SendText(ctx, channelID, post.Text, post.Buttons)
	}

	if err != nil {
		outcome.Error = err.Error()
		p.log.Error().
			Err(err).
			Str("post_id", post.PostID).
			Int64("channel_id", channelID).
			Msg("Send failed")
		return outcome
	}

	outcome.Success = true
	outcome.MessageID = msgID
	return outcome
}
