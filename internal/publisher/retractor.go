package publisher

import (
	"context"
	"time"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/internal/telegram"
	"github.com/autopost-bot/pkg/logger"
)

// Retractor deletes previously published messages after a post's
// configured lifetime
type Retractor struct {
	gateway telegram.Gateway
	repo    storage.Repository
	log     *logger.Logger
	now     func() time.Time
}

// NewRetractor creates a retractor
func NewRetractor(gateway telegram.Gateway, repo storage.Repository, log *logger.Logger) *Retractor {
	return &Retractor{
		gateway: gateway,
		repo:    repo,
		log:     log.WithComponent("retractor"),
		now:     time.Now,
	}
}

// Retract deletes the message from every channel whose publish
// succeeded. Failed publishes have nothing to delete and are skipped.
// Per-channel failures are isolated exactly as on the publish side.
func (r *Retractor) Retract(ctx context.Context, postID string, outcomes []DeliveryOutcome) *RetractReport {
	report := &RetractReport{
		PostID: postID,
		At:     r.now(),
	}

	for _, outcome := range outcomes {
		result := DeliveryOutcome{
			ChannelID:   outcome.ChannelID,
			ChannelName: outcome.ChannelName,
		}

		if !outcome.Success || outcome.MessageID == 0 {
			report.Skipped++
			continue
		}

		if err := r.gateway.DeleteMessage(ctx, outcome.ChannelID, outcome.MessageID); err != nil {
			report.Failed++
			result.Error = err.Error()
			report.Outcomes = append(report.Outcomes, result)
			r.log.Error().
				Err(err).
				Str("post_id", postID).
				Int64("channel_id", outcome.ChannelID).
				Msg("Delete failed")
			continue
		}

		report.Deleted++
		result.Success = true
		result.MessageID = outcome.MessageID
		report.Outcomes = append(report.Outcomes, result)

		deletedAt := r.now()
		if err := r.repo.UpdatePostChannelStatus(ctx, postID, outcome.ChannelID, models.DeliveryStatusDeleted, 0, &deletedAt); err != nil {
			r.log.Warn().
				Err(err).
				Str("post_id", postID).
				Int64("channel_id", outcome.ChannelID).
				Msg("Failed to persist deleted status")
		}
	}

	r.log.Info().
		Str("post_id", postID).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Retraction completed")

	return report
}
