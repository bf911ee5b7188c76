package publisher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/storage"
	"github.com/autopost-bot/pkg/logger"
)

type sentMessage struct {
	chatID int64
	text   string
	photo  bool
}

type fakeGateway struct {
	failSend   map[int64]error
	failDelete map[int64]error
	sent       []sentMessage
	deleted    []struct {
		chatID    int64
		messageID int
	}
	nextMsgID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		failSend:   make(map[int64]error),
		failDelete: make(map[int64]error),
	}
}

func (g *fakeGateway) SendText(ctx context.Context, chatID int64, text string, buttons models.ButtonSpecs) (int, error) {
	if err := g.failSend[chatID]; err != nil {
		return 0, err
	}
	g.nextMsgID++
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: text})
	return g.nextMsgID, nil
}

func (g *fakeGateway) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, buttons models.ButtonSpecs) (int, error) {
	if err := g.failSend[chatID]; err != nil {
		return 0, err
	}
	g.nextMsgID++
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: caption, photo: true})
	return g.nextMsgID, nil
}

func (g *fakeGateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := g.failDelete[chatID]; err != nil {
		return err
	}
	g.deleted = append(g.deleted, struct {
		chatID    int64
		messageID int
	}{chatID, messageID})
	return nil
}

func (g *fakeGateway) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, buttons models.ButtonSpecs) error {
	return nil
}

func (g *fakeGateway) ChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	return 0, nil
}

type statusUpdate struct {
	postID    string
	channelID int64
	status    models.DeliveryStatus
	messageID int
	deleted   bool
}

type recordingRepo struct {
	updates []statusUpdate
	posts   []*models.Post
}

func (r *recordingRepo) SavePost(ctx context.Context, post *models.Post) error { return nil }

func (r *recordingRepo) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	return nil, nil
}

func (r *recordingRepo) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.Post, error) {
	return nil, nil
}

func (r *recordingRepo) UpdatePost(ctx context.Context, post *models.Post) error {
	r.posts = append(r.posts, post)
	return nil
}

func (r *recordingRepo) DeletePost(ctx context.Context, postID string) error { return nil }

func (r *recordingRepo) UpdatePostChannelStatus(ctx context.Context, postID string, channelID int64, status models.DeliveryStatus, messageID int, deletedAt *time.Time) error {
	r.updates = append(r.updates, statusUpdate{
		postID:    postID,
		channelID: channelID,
		status:    status,
		messageID: messageID,
		deleted:   deletedAt != nil,
	})
	return nil
}

func (r *recordingRepo) SaveChannel(ctx context.Context, channel *models.Channel) error { return nil }

func (r *recordingRepo) DeleteChannel(ctx context.Context, channelID int64) error { return nil }

func (r *recordingRepo) ListChannels(ctx context.Context) ([]*models.Channel, error) {
	return nil, nil
}

func (r *recordingRepo) UpdateChannelSubscribers(ctx context.Context, channelID int64, subscribers int) error {
	return nil
}

func (r *recordingRepo) Close() error   { return nil }
func (r *recordingRepo) Migrate() error { return nil }

func testPost(channelIDs ...int64) *models.Post {
	post := &models.Post{
		PostID: "p-1",
		Text:   "hello",
		Status: models.PostStatusScheduled,
	}
	for _, id := range channelIDs {
		post.Channels = append(post.Channels, models.ChannelDelivery{
			ChannelID: id,
			Name:      fmt.Sprintf("ch-%d", id),
			Status:    models.DeliveryStatusPending,
		})
	}
	return post
}

func TestPublishFanOutIsolation(t *testing.T) {
	gw := newFakeGateway()
	gw.failSend[200] = fmt.Errorf("chat not found")
	repo := &recordingRepo{}
	p := New(gw, repo, logger.Default())

	post := testPost(100, 200, 300)
	report := p.Publish(context.Background(), post)

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("report = %d succeeded / %d failed, want 2/1", report.Succeeded, report.Failed)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want one per channel", len(report.Outcomes))
	}

	// The failure in the middle never stopped the later channel
	if len(gw.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(gw.sent))
	}
	if gw.sent[1].chatID != 300 {
		t.Errorf("last send went to %d, want 300", gw.sent[1].chatID)
	}

	// Every attempt persisted its status, failures included
	if len(repo.updates) != 3 {
		t.Fatalf("persisted %d status updates, want 3", len(repo.updates))
	}
	if repo.updates[1].channelID != 200 || repo.updates[1].status != models.DeliveryStatusFailed {
		t.Errorf("channel 200 update = %+v, want failed", repo.updates[1])
	}
	if repo.updates[0].status != models.DeliveryStatusSent || repo.updates[0].messageID == 0 {
		t.Errorf("channel 100 update = %+v, want sent with message id", repo.updates[0])
	}

	if post.Status != models.PostStatusPublished {
		t.Errorf("post status = %v, want published on partial success", post.Status)
	}
	if post.LastPublishedAt == nil {
		t.Error("LastPublishedAt not set")
	}
	if post.Channels[1].Error == "" {
		t.Error("failed channel carries no error text")
	}
}

func TestPublishAllFail(t *testing.T) {
	gw := newFakeGateway()
	gw.failSend[100] = fmt.Errorf("blocked")
	gw.failSend[200] = fmt.Errorf("blocked")
	p := New(gw, &recordingRepo{}, logger.Default())

	post := testPost(100, 200)
	report := p.Publish(context.Background(), post)

	if report.Succeeded != 0 || report.Failed != 2 {
		t.Fatalf("report = %d/%d, want 0/2", report.Succeeded, report.Failed)
	}
	if post.Status != models.PostStatusFailed {
		t.Errorf("post status = %v, want failed when nothing delivered", post.Status)
	}
}

func TestPublishPhotoWithCaption(t *testing.T) {
	gw := newFakeGateway()
	p := New(gw, &recordingRepo{}, logger.Default())

	post := testPost(100)
	post.ImageFileID = "file-abc"
	p.Publish(context.Background(), post)

	if len(gw.sent) != 1 || !gw.sent[0].photo {
		t.Fatalf("sent = %+v, want a photo send", gw.sent)
	}
	if gw.sent[0].text != "hello" {
		t.Errorf("caption = %q, want the post text", gw.sent[0].text)
	}
}

func TestRetractSelectivity(t *testing.T) {
	gw := newFakeGateway()
	repo := &recordingRepo{}
	r := NewRetractor(gw, repo, logger.Default())

	outcomes := []DeliveryOutcome{
		{ChannelID: 100, ChannelName: "ch-100", Success: true, MessageID: 11},
		{ChannelID: 200, ChannelName: "ch-200", Success: false, Error: "chat not found"},
	}
	report := r.Retract(context.Background(), "p-1", outcomes)

	if report.Deleted != 1 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("report = %d deleted / %d failed / %d skipped, want 1/0/1",
			report.Deleted, report.Failed, report.Skipped)
	}

	// Only the delivered message was touched
	if len(gw.deleted) != 1 {
		t.Fatalf("deleted %d messages, want 1", len(gw.deleted))
	}
	if gw.deleted[0].chatID != 100 || gw.deleted[0].messageID != 11 {
		t.Errorf("deleted %+v, want message 11 in channel 100", gw.deleted[0])
	}

	if len(repo.updates) != 1 {
		t.Fatalf("persisted %d updates, want 1", len(repo.updates))
	}
	if repo.updates[0].status != models.DeliveryStatusDeleted || !repo.updates[0].deleted {
		t.Errorf("update = %+v, want deleted status with timestamp", repo.updates[0])
	}
}

func TestRetractIsolatesDeleteFailures(t *testing.T) {
	gw := newFakeGateway()
	gw.failDelete[100] = fmt.Errorf("message too old")
	r := NewRetractor(gw, &recordingRepo{}, logger.Default())

	outcomes := []DeliveryOutcome{
		{ChannelID: 100, Success: true, MessageID: 11},
		{ChannelID: 200, Success: true, MessageID: 12},
	}
	report := r.Retract(context.Background(), "p-1", outcomes)

	if report.Deleted != 1 || report.Failed != 1 {
		t.Fatalf("report = %d deleted / %d failed, want 1/1", report.Deleted, report.Failed)
	}
	if len(gw.deleted) != 1 || gw.deleted[0].chatID != 200 {
		t.Errorf("deleted = %+v, want only channel 200", gw.deleted)
	}
}
