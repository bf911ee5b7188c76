package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/publisher"
	"github.com/autopost-bot/internal/report"
	"github.com/autopost-bot/internal/schedule"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/pkg/logger"
)

const testAdminID = int64(999)

type fakeGateway struct {
	mu      sync.Mutex
	sends   map[int64]int
	deletes int
	failAll bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sends: make(map[int64]int)}
}

func (g *fakeGateway) SendText(ctx context.Context, chatID int64, text string, buttons models.ButtonSpecs) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll && chatID != testAdminID {
		return 0, fmt.Errorf("blocked")
	}
	g.sends[chatID]++
	return 100 + g.sends[chatID], nil
}

func (g *fakeGateway) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, buttons models.ButtonSpecs) (int, error) {
	return g.SendText(ctx, chatID, caption, nil)
}

func (g *fakeGateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes++
	return nil
}

func (g *fakeGateway) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, buttons models.ButtonSpecs) error {
	return nil
}

func (g *fakeGateway) ChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	return 0, nil
}

func (g *fakeGateway) sendCount(chatID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sends[chatID]
}

type fakeRepo struct {
	mu    sync.Mutex
	posts map[string]*models.Post
}

func newFakeRepo(posts ...*models.Post) *fakeRepo {
	r := &fakeRepo{posts: make(map[string]*models.Post)}
	for _, p := range posts {
		r.posts[p.PostID] = p
	}
	return r
}

func (r *fakeRepo) SavePost(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.PostID] = post
	return nil
}

func (r *fakeRepo) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posts[postID], nil
}

func (r *fakeRepo) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepo) UpdatePost(ctx context.Context, post *models.Post) error {
	return r.SavePost(ctx, post)
}

func (r *fakeRepo) DeletePost(ctx context.Context, postID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, postID)
	return nil
}

func (r *fakeRepo) UpdatePostChannelStatus(ctx context.Context, postID string, channelID int64, status models.DeliveryStatus, messageID int, deletedAt *time.Time) error {
	return nil
}

func (r *fakeRepo) SaveChannel(ctx context.Context, channel *models.Channel) error { return nil }

func (r *fakeRepo) DeleteChannel(ctx context.Context, channelID int64) error { return nil }

func (r *fakeRepo) ListChannels(ctx context.Context) ([]*models.Channel, error) { return nil, nil }

func (r *fakeRepo) UpdateChannelSubscribers(ctx context.Context, channelID int64, subscribers int) error {
	return nil
}

func (r *fakeRepo) Close() error   { return nil }
func (r *fakeRepo) Migrate() error { return nil }

func newTestScheduler(repo storage.Repository, gw *fakeGateway) *Scheduler {
	log := logger.Default()
	pub := publisher.New(gw, repo, log)
	ret := publisher.NewRetractor(gw, repo, log)
	em := report.NewEmitter(gw, testAdminID, log)
	s := New(repo, pub, ret, em, log)
	s.now = func() time.Time {
		return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	}
	return s
}

func schedPost(postID string, durationHours int) *models.Post {
	return &models.Post{
		PostID: postID,
		Text:   "hello",
		Status: models.PostStatusScheduled,
		Channels: models.ChannelDeliveries{
			{ChannelID: 100, Name: "ch-100", Status: models.DeliveryStatusPending},
		},
		Schedule: models.PostSchedule{
			Hour:          12,
			Minute:        0,
			Daily:         true,
			DurationHours: durationHours,
		},
	}
}

// waitFor polls until cond holds; the timers fire on real goroutines
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPublishFiresAndReArms(t *testing.T) {
	post := schedPost("p-1", 0)
	repo := newFakeRepo(post)
	gw := newFakeGateway()
	s := newTestScheduler(repo, gw)
	defer s.Stop()

	s.SchedulePublish(post, s.now().Add(-time.Minute))

	waitFor(t, func() bool { return gw.sendCount(100) == 1 })

	// Re-armed at the next occurrence computed from the injected clock
	waitFor(t, func() bool {
		at, ok := s.PendingPublishAt("p-1")
		return ok && at.After(s.now())
	})
	at, _ := s.PendingPublishAt("p-1")
	want := schedule.NextRun(post.Schedule, s.now())
	if !at.Equal(want) {
		t.Errorf("re-armed at %v, want %v", at, want)
	}

	// Admin got the publication report
	if gw.sendCount(testAdminID) != 1 {
		t.Errorf("admin received %d reports, want 1", gw.sendCount(testAdminID))
	}

	// No retraction without a duration
	if _, ok := s.PendingRetractAt("p-1"); ok {
		t.Error("retract timer armed for a post with no lifetime")
	}

	stored, _ := repo.GetPost(context.Background(), "p-1")
	if stored.Status != models.PostStatusScheduled {
		t.Errorf("persisted status = %v, want scheduled after re-arm", stored.Status)
	}
}

func TestRetractChainedAfterPublish(t *testing.T) {
	post := schedPost("p-2", 24)
	repo := newFakeRepo(post)
	gw := newFakeGateway()
	s := newTestScheduler(repo, gw)
	defer s.Stop()

	s.SchedulePublish(post, s.now().Add(-time.Minute))

	waitFor(t, func() bool {
		_, ok := s.PendingRetractAt("p-2")
		return ok
	})

	at, _ := s.PendingRetractAt("p-2")
	want := s.now().Add(24 * time.Hour)
	if !at.Equal(want) {
		t.Errorf("retract armed at %v, want %v", at, want)
	}
}

func TestNoRetractWhenNothingDelivered(t *testing.T) {
	post := schedPost("p-3", 24)
	repo := newFakeRepo(post)
	gw := newFakeGateway()
	gw.failAll = true
	s := newTestScheduler(repo, gw)
	defer s.Stop()

	s.SchedulePublish(post, s.now().Add(-time.Minute))

	// The run completes by re-arming the publish timer
	waitFor(t, func() bool {
		at, ok := s.PendingPublishAt("p-3")
		return ok && at.After(s.now())
	})

	if _, ok := s.PendingRetractAt("p-3"); ok {
		t.Error("retract timer armed although no channel was delivered")
	}
}

func TestMissingPostSkipsRun(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	s := newTestScheduler(repo, gw)
	defer s.Stop()

	ghost := &models.Post{PostID: "gone"}
	s.SchedulePublish(ghost, s.now().Add(-time.Minute))

	waitFor(t, func() bool {
		_, ok := s.PendingPublishAt("gone")
		return !ok
	})
	// Give a completed run time to surface any stray sends
	time.Sleep(50 * time.Millisecond)

	if gw.sendCount(100) != 0 || gw.sendCount(testAdminID) != 0 {
		t.Error("messages sent for a deleted post")
	}
	if _, ok := s.PendingPublishAt("gone"); ok {
		t.Error("missing post was re-armed")
	}
}

func TestStartRecoversScheduledPosts(t *testing.T) {
	published := schedPost("p-done", 0)
	published.Status = models.PostStatusPublished
	repo := newFakeRepo(schedPost("p-a", 0), schedPost("p-b", 0), published)
	s := newTestScheduler(repo, newFakeGateway())
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	for _, id := range []string{"p-a", "p-b"} {
		at, ok := s.PendingPublishAt(id)
		if !ok {
			t.Errorf("post %s not recovered", id)
			continue
		}
		want := schedule.NextRun(schedPost(id, 0).Schedule, s.now())
		if !at.Equal(want) {
			t.Errorf("post %s armed at %v, want %v", id, at, want)
		}
	}
	if _, ok := s.PendingPublishAt("p-done"); ok {
		t.Error("non-scheduled post was armed")
	}
}

func TestCancelPost(t *testing.T) {
	post := schedPost("p-c", 0)
	s := newTestScheduler(newFakeRepo(post), newFakeGateway())
	defer s.Stop()

	s.SchedulePublish(post, s.now().Add(time.Hour))
	if _, ok := s.PendingPublishAt("p-c"); !ok {
		t.Fatal("timer not armed")
	}

	s.CancelPost("p-c")
	if _, ok := s.PendingPublishAt("p-c"); ok {
		t.Error("timer survived cancellation")
	}
}
