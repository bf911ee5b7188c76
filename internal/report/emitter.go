// Package report turns publish/retract cycles into admin summaries.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/autopost-bot/internal/publisher"
	"github.com/autopost-bot/internal/telegram"
	"github.com/autopost-bot/pkg/logger"
)

// Emitter sends cycle summaries to the configured administrator.
// Purely presentational; a failure to send a report is logged, not
// retried.
type Emitter struct {
	gateway telegram.Gateway
	adminID int64
	log     *logger.Logger
}

// NewEmitter creates an emitter bound to the admin chat
func NewEmitter(gateway telegram.Gateway, adminID int64, log *logger.Logger) *Emitter {
	return &Emitter{
		gateway: gateway,
		adminID: adminID,
		log:     log.WithComponent("report"),
	}
}

// EmitPublish sends the publish summary
func (e *Emitter) EmitPublish(ctx context.Context, rep *publisher.PublishReport) {
	e.send(ctx, FormatPublish(rep))
}

// EmitRetract sends the retraction summary
func (e *Emitter) EmitRetract(ctx context.Context, rep *publisher.RetractReport) {
	e.send(ctx, FormatRetract(rep))
}

func (e *Emitter) send(ctx context.Context, text string) {
	if _, err := e.gateway.SendText(ctx, e.adminID, text, nil); err != nil {
		e.log.Error().Err(err).Msg("Failed to send report to admin")
	}
}

// FormatPublish renders counts plus a per-channel bullet list
func FormatPublish(rep *publisher.PublishReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📤 Post %s published\n", rep.PostID)
	fmt.Fprintf(&b, "✅ %d sent · ❌ %d failed\n\n", rep.Succeeded, rep.Failed)
	for _, o := range rep.Outcomes {
		if o.Success {
			fmt.Fprintf(&b, "• %s — ✅\n", channelLabel(o))
		} else {
			fmt.Fprintf(&b, "• %s — ❌ %s\n", channelLabel(o), o.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRetract renders counts plus a per-channel bullet list
func FormatRetract(rep *publisher.RetractReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗑 Post %s retracted\n", rep.PostID)
	fmt.Fprintf(&b, "✅ %d deleted · ❌ %d failed · %d skipped\n\n", rep.Deleted, rep.Failed, rep.Skipped)
	for _, o := range rep.Outcomes {
		if o.Success {
			fmt.Fprintf(&b, "• %s — ✅\n", channelLabel(o))
		} else {
			fmt.Fprintf(&b, "• %s — ❌ %s\n", channelLabel(o), o.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func channelLabel(o publisher.DeliveryOutcome) string {
	if o.ChannelName != "" {
		return o.ChannelName
	}
	return fmt.Sprintf("%d", o.ChannelID)
}
