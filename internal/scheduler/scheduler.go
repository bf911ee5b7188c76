// Package scheduler owns the per-post timers: it fires publishes at
// their computed run times, chains retractions, and re-arms recurring
// posts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/publisher"
	"github.com/autopost-bot/internal/report"
	"github.com/autopost-bot/internal/schedule"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/pkg/logger"
)

type jobKind string

const (
	jobPublish jobKind = "publish"
	jobRetract jobKind = "retract"
)

// jobKey identifies a timer deterministically: one publish and one
// retract slot per post, never more.
type jobKey struct {
	postID string
	kind   jobKind
}

type job struct {
	timer *time.Timer
	at    time.Time
}

// Scheduler registers one-shot timers and dispatches them. A post's
// own timeline is strictly sequential: the next run is armed only
// after the current run has returned. Different posts run
// independently of each other.
type Scheduler struct {
	repo      storage.Repository
	publisher *publisher.Publisher
	retractor *publisher.Retractor
	reports   *report.Emitter
	log       *logger.Logger
	now       func() time.Time

	mu     sync.Mutex
	jobs   map[jobKey]*job
	closed bool
	wg     sync.WaitGroup
}

// New creates a scheduler
func New(repo storage.Repository, pub *publisher.Publisher, ret *publisher.Retractor, reports *report.Emitter, log *logger.Logger) *Scheduler {
	return &Scheduler{
		repo:      repo,
		publisher: pub,
		retractor: ret,
		reports:   reports,
		log:       log.WithComponent("scheduler"),
		now:       time.Now,
		jobs:      make(map[jobKey]*job),
	}
}

// Start re-arms every persisted post still marked scheduled, so a
// restart recovers all pending runs without an external cron.
func (s *Scheduler) Start(ctx context.Context) error {
	status := models.PostStatusScheduled
	filter := storage.PostFilter{Status: &status, OrderBy: "created_at"}

	posts, err := s.repo.ListPosts(ctx, filter)
	if err != nil {
		return err
	}

	now := s.now()
	for _, post := range posts {
		at := schedule.NextRun(post.Schedule, now)
		s.SchedulePublish(post, at)
	}

	s.log.Info().Int("posts", len(posts)).Msg("Scheduler started")
	return nil
}

// Stop cancels all pending timers and waits for in-flight runs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for key, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// SchedulePublish registers (or replaces) the publish timer for a post
func (s *Scheduler) SchedulePublish(post *models.Post, at time.Time) {
	postID := post.PostID
	s.arm(jobKey{postID: postID, kind: jobPublish}, at, func(ctx context.Context) {
		s.runPublish(ctx, postID)
	})
}

// CancelPost drops any pending timers for the post
func (s *Scheduler) CancelPost(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range []jobKind{jobPublish, jobRetract} {
		key := jobKey{postID: postID, kind: kind}
		if j, ok := s.jobs[key]; ok {
			j.timer.Stop()
			delete(s.jobs, key)
		}
	}
}

// arm registers a one-shot timer under key, replacing any existing one
func (s *Scheduler) arm(key jobKey, at time.Time, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if existing, ok := s.jobs[key]; ok {
		existing.timer.Stop()
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.jobs[key] = &job{
		at:    at,
		timer: time.AfterFunc(delay, func() { s.fire(key, fn) }),
	}

	s.log.Debug().
		Str("post_id", key.postID).
		Str("kind", string(key.kind)).
		Time("at", at).
		Msg("Timer armed")
}

// fire is the single failure boundary for every job: panics and errors
// inside a run are logged and never crash the scheduling loop.
func (s *Scheduler) fire(key jobKey, fn func(context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, key)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Str("post_id", key.postID).
				Str("kind", string(key.kind)).
				Msg("Job panicked")
		}
	}()

	fn(context.Background())
}

// runPublish re-reads the post at fire time so edits made after
// scheduling are honored, fans out, chains the retraction, and re-arms
// the next occurrence. Posts always re-arm; "one-shot" exists only by
// deleting the post.
func (s *Scheduler) runPublish(ctx context.Context, postID string) {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		s.log.Error().Err(err).Str("post_id", postID).Msg("Failed to load post, run skipped")
		return
	}
	if post == nil {
		// Deleted after being scheduled; nothing to report about
		s.log.Warn().Str("post_id", postID).Msg("Post config missing, run skipped")
		return
	}

	publishedAt := s.now()
	rep := s.publisher.Publish(ctx, post)
	s.reports.EmitPublish(ctx, rep)

	if post.Schedule.Retracts() && rep.Succeeded > 0 {
		outcomes := rep.Outcomes
		s.arm(jobKey{postID: postID, kind: jobRetract}, publishedAt.Add(post.Schedule.Duration()), func(ctx context.Context) {
			s.runRetract(ctx, postID, outcomes)
		})
	}

	next := schedule.NextRun(post.Schedule, s.now())
	s.SchedulePublish(post, next)

	// Back to scheduled so a restart re-arms this post too; the status
	// field stays informational.
	post.Status = models.PostStatusScheduled
	if err := s.repo.UpdatePost(ctx, post); err != nil {
		s.log.Warn().Err(err).Str("post_id", postID).Msg("Failed to persist rescheduled status")
	}

	s.log.Info().
		Str("post_id", postID).
		Time("next_run", next).
		Msg("Post re-armed")
}

func (s *Scheduler) runRetract(ctx context.Context, postID string, outcomes []publisher.DeliveryOutcome) {
	rep := s.retractor.Retract(ctx, postID, outcomes)
	s.reports.EmitRetract(ctx, rep)
}

// pendingAt reports the registered fire time for a post's timer, used
// by tests and the CLI queue view.
func (s *Scheduler) pendingAt(postID string, kind jobKind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobKey{postID: postID, kind: kind}]
	if !ok {
		return time.Time{}, false
	}
	return j.at, true
}

// PendingPublishAt reports when the post's next publish fires
func (s *Scheduler) PendingPublishAt(postID string) (time.Time, bool) {
	return s.pendingAt(postID, jobPublish)
}

// PendingRetractAt reports when the post's retraction fires
func (s *Scheduler) PendingRetractAt(postID string) (time.Time, bool) {
	return s.pendingAt(postID, jobRetract)
}
