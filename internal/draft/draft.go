package draft

import (
	"errors"
	"time"

	"github.com/autopost-bot/internal/models"
)

// Validation errors surfaced to the authoring surface. The draft is
// left unchanged except for the sub-flow that re-prompts.
var (
	ErrAlreadyInProgress   = errors.New("a draft is already in progress")
	ErrNoDraft             = errors.New("no draft in progress")
	ErrIndexOutOfRange     = errors.New("button index out of range")
	ErrChannelNotFound     = errors.New("channel is not in the pool")
	ErrInsufficientContent = errors.New("post needs text or an image")
	ErrNoChannelsSelected  = errors.New("no channels selected")
	ErrNoButtonText        = errors.New("button text not collected yet")
	ErrInvalidHour         = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute       = errors.New("minute is not an allowed mark")
	ErrInvalidDuration     = errors.New("duration is not an allowed value")
)

// Step is the sub-flow the authoring session is currently in
type Step string

const (
	StepMenu        Step = "menu"
	StepText        Step = "text"
	StepImage       Step = "image"
	StepButtonText  Step = "button_text"
	StepButtonValue Step = "button_value"
	StepChannels    Step = "channels"
	StepSchedule    Step = "schedule"
)

// Draft is an in-progress, unpersisted post owned by one authoring
// session. Abandoned drafts never reach the store.
type Draft struct {
	PostID   string
	AdminID  int64
	Text     string
	ImageID  string
	Buttons  models.ButtonSpecs
	Selected map[int64]bool
	Schedule models.PostSchedule
	Step     Step

	// button sub-flow state: display text collected, value pending
	PendingButtonText string

	CreatedAt time.Time
}

// SelectedCount returns how many channels are currently selected
func (d *Draft) SelectedCount() int {
	n := 0
	for _, on := range d.Selected {
		if on {
			n++
		}
	}
	return n
}

// HasContent reports whether at least text or an image is set
func (d *Draft) HasContent() bool {
	return d.Text != "" || d.ImageID != ""
}
