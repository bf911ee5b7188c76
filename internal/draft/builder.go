package draft

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/schedule"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/pkg/logger"
)

// PublishScheduler registers the first run of a freshly saved post
type PublishScheduler interface {
	SchedulePublish(post *models.Post, at time.Time)
}

// Defaults are applied to the schedule of every fresh draft
type Defaults struct {
	Hour          int
	Minute        int
	Daily         bool
	DurationHours int
}

// Builder owns the per-admin authoring sessions: one draft per admin
// at a time, explicit lifecycle, no ambient global state.
type Builder struct {
	repo     storage.Repository
	sched    PublishScheduler
	defaults Defaults
	log      *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	drafts map[int64]*Draft
}

// NewBuilder creates a draft builder
func NewBuilder(repo storage.Repository, sched PublishScheduler, defaults Defaults, log *logger.Logger) *Builder {
	return &Builder{
		repo:     repo,
		sched:    sched,
		defaults: defaults,
		log:      log.WithComponent("draft"),
		now:      time.Now,
		drafts:   make(map[int64]*Draft),
	}
}

// StartDraft opens a fresh draft for the admin. Fails if one exists.
func (b *Builder) StartDraft(adminID int64) (*Draft, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.drafts[adminID]; ok {
		return nil, ErrAlreadyInProgress
	}

	now := b.now()
	d := &Draft{
		PostID:    fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString()[:8]),
		AdminID:   adminID,
		Selected:  make(map[int64]bool),
		Schedule:  models.DefaultSchedule(b.defaults.Hour, b.defaults.Minute, b.defaults.DurationHours, b.defaults.Daily, now),
		Step:      StepMenu,
		CreatedAt: now,
	}
	b.drafts[adminID] = d

	b.log.Info().Int64("admin_id", adminID).Str("post_id", d.PostID).Msg("Draft started")
	return d, nil
}

// Get returns the admin's current draft
func (b *Builder) Get(adminID int64) (*Draft, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(adminID)
}

func (b *Builder) get(adminID int64) (*Draft, error) {
	d, ok := b.drafts[adminID]
	if !ok {
		return nil, ErrNoDraft
	}
	return d, nil
}

// SetStep moves the session into a sub-flow without touching content
func (b *Builder) SetStep(adminID int64, step Step) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Step = step
	return nil
}

// SetText replaces the draft text and returns to the menu
func (b *Builder) SetText(adminID int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Text = text
	d.Step = StepMenu
	return nil
}

// SetImage replaces the draft image and returns to the menu
func (b *Builder) SetImage(adminID int64, fileID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.ImageID = fileID
	d.Step = StepMenu
	return nil
}

// BeginButton starts the two-turn button sub-flow: collect the display
// text first, then the URL or callback token.
func (b *Builder) BeginButton(adminID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.PendingButtonText = ""
	d.Step = StepButtonText
	return nil
}

// SetButtonText records the display text and advances to the value turn
func (b *Builder) SetButtonText(adminID int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.PendingButtonText = text
	d.Step = StepButtonValue
	return nil
}

// AddURLButton finishes the sub-flow with a URL button. An invalid URL
// re-prompts: the collected text stays, the step stays.
func (b *Builder) AddURLButton(adminID int64, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	if d.PendingButtonText == "" {
		return ErrNoButtonText
	}

	spec, err := models.NewURLButton(d.PendingButtonText, url)
	if err != nil {
		return err
	}

	d.Buttons = append(d.Buttons, spec)
	d.PendingButtonText = ""
	d.Step = StepMenu
	return nil
}

// AddCallbackButton finishes the sub-flow with a callback button. An
// oversized token re-prompts without discarding the collected text.
func (b *Builder) AddCallbackButton(adminID int64, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	if d.PendingButtonText == "" {
		return ErrNoButtonText
	}

	spec, err := models.NewCallbackButton(d.PendingButtonText, token)
	if err != nil {
		return err
	}

	d.Buttons = append(d.Buttons, spec)
	d.PendingButtonText = ""
	d.Step = StepMenu
	return nil
}

// EditButton replaces the display text of an existing button
func (b *Builder) EditButton(adminID int64, index int, newText string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(d.Buttons) {
		return ErrIndexOutOfRange
	}
	if newText == "" {
		return models.ErrEmptyButtonText
	}
	d.Buttons[index].Text = newText
	return nil
}

// RemoveButton removes the button at index
func (b *Builder) RemoveButton(adminID int64, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(d.Buttons) {
		return ErrIndexOutOfRange
	}
	d.Buttons = append(d.Buttons[:index], d.Buttons[index+1:]...)
	return nil
}

// ToggleChannel flips a pool channel in or out of the selection.
// Unknown channel ids are reported, not applied.
func (b *Builder) ToggleChannel(ctx context.Context, adminID int64, channelID int64) error {
	channels, err := b.repo.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	known := false
	for _, ch := range channels {
		if ch.ChannelID == channelID {
			known = true
			break
		}
	}
	if !known {
		return ErrChannelNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Selected[channelID] = !d.Selected[channelID]
	return nil
}

// SelectAll selects every channel currently in the pool
func (b *Builder) SelectAll(ctx context.Context, adminID int64) error {
	channels, err := b.repo.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		d.Selected[ch.ChannelID] = true
	}
	return nil
}

// DeselectAll clears the selection
func (b *Builder) DeselectAll(adminID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Selected = make(map[int64]bool)
	return nil
}

// SetHour sets the scheduled hour (0-23)
func (b *Builder) SetHour(adminID int64, hour int) error {
	if hour < 0 || hour > 23 {
		return ErrInvalidHour
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Schedule.Hour = hour
	return nil
}

// SetMinute sets the scheduled minute from the allowed marks
func (b *Builder) SetMinute(adminID int64, minute int) error {
	if !models.ValidMinute(minute) {
		return ErrInvalidMinute
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Schedule.Minute = minute
	return nil
}

// ToggleDaily flips daily mode
func (b *Builder) ToggleDaily(adminID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Schedule.Daily = !d.Schedule.Daily
	return nil
}

// ToggleDay flips a weekday; the set never goes empty
func (b *Builder) ToggleDay(adminID int64, day time.Weekday) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Schedule.ToggleDay(day, b.now())
	return nil
}

// SetDuration sets the publication lifetime from the allowed values
func (b *Builder) SetDuration(adminID int64, hours int) error {
	if !models.ValidDuration(hours) {
		return ErrInvalidDuration
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.get(adminID)
	if err != nil {
		return err
	}
	d.Schedule.DurationHours = hours
	return nil
}

// Preview renders the draft as a post without mutating the session.
// Requires content; channel selection is not required yet.
func (b *Builder) Preview(ctx context.Context, adminID int64) (*models.Post, error) {
	b.mu.Lock()
	d, err := b.get(adminID)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if !d.HasContent() {
		b.mu.Unlock()
		return nil, ErrInsufficientContent
	}
	b.mu.Unlock()

	return b.snapshot(ctx, d)
}

// Save validates the draft, persists the post snapshot, registers its
// first run and discards the session. On a persistence error the draft
// is kept so the admin can retry.
func (b *Builder) Save(ctx context.Context, adminID int64) (*models.Post, error) {
	b.mu.Lock()
	d, err := b.get(adminID)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if !d.HasContent() {
		b.mu.Unlock()
		return nil, ErrInsufficientContent
	}
	if d.SelectedCount() == 0 {
		b.mu.Unlock()
		return nil, ErrNoChannelsSelected
	}
	b.mu.Unlock()

	post, err := b.snapshot(ctx, d)
	if err != nil {
		return nil, err
	}

	if err := b.repo.SavePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to save post: %w", err)
	}

	firstRun := schedule.NextRun(post.Schedule, b.now())
	b.sched.SchedulePublish(post, firstRun)

	b.mu.Lock()
	delete(b.drafts, adminID)
	b.mu.Unlock()

	b.log.Info().
		Str("post_id", post.PostID).
		Int("channels", len(post.Channels)).
		Time("first_run", firstRun).
		Msg("Post saved")

	return post, nil
}

// Cancel discards the draft unconditionally
func (b *Builder) Cancel(adminID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.drafts[adminID]; !ok {
		return ErrNoDraft
	}
	delete(b.drafts, adminID)

	b.log.Info().Int64("admin_id", adminID).Msg("Draft abandoned")
	return nil
}

// snapshot freezes the draft into a post, resolving the selection
// against the pool in pool order.
func (b *Builder) snapshot(ctx context.Context, d *Draft) (*models.Post, error) {
	channels, err := b.repo.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	now := b.now()
	var deliveries models.ChannelDeliveries
	for _, ch := range channels {
		if !d.Selected[ch.ChannelID] {
			continue
		}
		deliveries = append(deliveries, models.ChannelDelivery{
			ChannelID: ch.ChannelID,
			Name:      ch.Name,
			Status:    models.DeliveryStatusPending,
			UpdatedAt: now,
		})
	}

	return &models.Post{
		PostID:      d.PostID,
		Text:        d.Text,
		ImageFileID: d.ImageID,
		Buttons:     d.Buttons,
		Channels:    deliveries,
		Schedule:    d.Schedule,
		Status:      models.PostStatusScheduled,
		CreatedBy:   d.AdminID,
	}, nil
}
