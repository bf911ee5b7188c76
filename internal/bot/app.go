// Package bot is the admin-facing conversation surface: it maps the
// administrator's messages and button taps onto draft operations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autopost-bot/internal/channels"
	"github.com/autopost-bot/internal/draft"
	"github.com/autopost-bot/internal/models"
	"github.com/autopost-bot/internal/telegram"
	"github.com/autopost-bot/pkg/logger"
)

// App drives the authoring flow for the single configured admin
type App struct {
	client   *telegram.Client
	adminID  int64
	builder  *draft.Builder
	channels *channels.Manager
	log      *logger.Logger
}

// New creates the admin surface
func New(client *telegram.Client, adminID int64, builder *draft.Builder, channelMgr *channels.Manager, log *logger.Logger) *App {
	return &App{
		client:   client,
		adminID:  adminID,
		builder:  builder,
		channels: channelMgr,
		log:      log.WithComponent("bot"),
	}
}

// Run consumes updates until the context is cancelled
func (a *App) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.client.Bot().GetUpdatesChan(u)

	a.log.Info().Msg("Update loop started")
	for {
		select {
		case <-ctx.Done():
			a.client.Bot().StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			a.handleUpdate(ctx, update)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		if update.CallbackQuery.From.ID != a.adminID {
			return
		}
		a.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message != nil {
		if update.Message.From == nil || update.Message.From.ID != a.adminID {
			return
		}
		a.handleMessage(ctx, update.Message)
	}
}

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "newpost":
		d, err := a.builder.StartDraft(a.adminID)
		if err != nil {
			a.reply(ctx, "A draft is already in progress. /cancel it first or keep editing below.")
			if cur, gErr := a.builder.Get(a.adminID); gErr == nil {
				a.sendMenu(ctx, cur)
			}
			return
		}
		a.sendMenu(ctx, d)
		return
	case "cancel":
		if err := a.builder.Cancel(a.adminID); err != nil {
			a.reply(ctx, "Nothing to cancel.")
			return
		}
		a.reply(ctx, "Draft discarded.")
		return
	case "channels":
		a.replyChannelList(ctx)
		return
	case "addchannel":
		a.addChannel(ctx, msg.CommandArguments())
		return
	case "rmchannel":
		a.removeChannel(ctx, msg.CommandArguments())
		return
	case "start", "help":
		a.reply(ctx, "Commands:\n/newpost — start a scheduled post\n/cancel — discard the current draft\n/channels — list the channel pool\n/addchannel <chat-id> <name> — add a channel\n/rmchannel <chat-id> — remove a channel")
		return
	}

	d, err := a.builder.Get(a.adminID)
	if err != nil {
		return
	}

	switch d.Step {
	case draft.StepText:
		if msg.Text == "" {
			a.reply(ctx, "Send the post text as a plain message.")
			return
		}
		_ = a.builder.SetText(a.adminID, msg.Text)
		a.sendMenu(ctx, d)

	case draft.StepImage:
		if len(msg.Photo) == 0 {
			a.reply(ctx, "Send a photo.")
			return
		}
		// Largest size is last
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		_ = a.builder.SetImage(a.adminID, fileID)
		a.sendMenu(ctx, d)

	case draft.StepButtonText:
		if msg.Text == "" {
			a.reply(ctx, "Send the button label as text.")
			return
		}
		_ = a.builder.SetButtonText(a.adminID, msg.Text)
		a.reply(ctx, "Now send a URL (https://…) or a callback token (up to 64 bytes).")

	case draft.StepButtonValue:
		a.finishButton(ctx, d, msg.Text)
	}
}

// finishButton completes the two-turn button sub-flow. Invalid input
// re-prompts; the collected label survives the retry.
func (a *App) finishButton(ctx context.Context, d *draft.Draft, value string) {
	var err error
	if strings.Contains(value, "://") {
		err = a.builder.AddURLButton(a.adminID, value)
	} else {
		err = a.builder.AddCallbackButton(a.adminID, value)
	}

	switch {
	case err == nil:
		a.sendMenu(ctx, d)
	case errors.Is(err, models.ErrInvalidButtonURL):
		a.reply(ctx, "That URL is not accepted; it must start with http://, https:// or tg://. Try again.")
	case errors.Is(err, models.ErrCallbackTokenTooLong):
		a.reply(ctx, "That token is longer than 64 bytes. Try again.")
	default:
		a.reply(ctx, "Couldn't add the button: "+err.Error())
	}
}

func (a *App) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Ack first so the client stops spinning
	_, _ = a.client.Bot().Request(tgbotapi.NewCallback(cb.ID, ""))

	d, err := a.builder.Get(a.adminID)
	if err != nil {
		return
	}

	parts := strings.Split(cb.Data, ":")
	if len(parts) < 2 || parts[0] != "draft" {
		return
	}
	action := parts[1]
	arg := ""
	if len(parts) > 2 {
		arg = parts[2]
	}

	msgID := 0
	if cb.Message != nil {
		msgID = cb.Message.MessageID
	}

	switch action {
	case "menu":
		_ = a.builder.SetStep(a.adminID, draft.StepMenu)
		a.editMenu(ctx, d, msgID)
	case "text":
		_ = a.builder.SetStep(a.adminID, draft.StepText)
		a.reply(ctx, "Send the post text.")
	case "image":
		_ = a.builder.SetStep(a.adminID, draft.StepImage)
		a.reply(ctx, "Send the photo.")
	case "btn_add":
		_ = a.builder.BeginButton(a.adminID)
		a.reply(ctx, "Send the button label.")
	case "btn_del":
		idx, _ := strconv.Atoi(arg)
		if err := a.builder.RemoveButton(a.adminID, idx); err != nil {
			a.reply(ctx, "No button at that position.")
			return
		}
		a.editMenu(ctx, d, msgID)
	case "channels":
		_ = a.builder.SetStep(a.adminID, draft.StepChannels)
		a.editChannelMenu(ctx, d, msgID)
	case "ch":
		id, _ := strconv.ParseInt(arg, 10, 64)
		if err := a.builder.ToggleChannel(ctx, a.adminID, id); err != nil {
			a.reply(ctx, "That channel is no longer in the pool.")
		}
		a.editChannelMenu(ctx, d, msgID)
	case "ch_all":
		_ = a.builder.SelectAll(ctx, a.adminID)
		a.editChannelMenu(ctx, d, msgID)
	case "ch_none":
		_ = a.builder.DeselectAll(a.adminID)
		a.editChannelMenu(ctx, d, msgID)
	case "schedule":
		_ = a.builder.SetStep(a.adminID, draft.StepSchedule)
		a.editScheduleMenu(ctx, d, msgID)
	case "hour":
		delta, _ := strconv.Atoi(arg)
		_ = a.builder.SetHour(a.adminID, (d.Schedule.Hour+delta+24)%24)
		a.editScheduleMenu(ctx, d, msgID)
	case "minute":
		_ = a.builder.SetMinute(a.adminID, nextAllowed(models.AllowedMinutes, d.Schedule.Minute))
		a.editScheduleMenu(ctx, d, msgID)
	case "daily":
		_ = a.builder.ToggleDaily(a.adminID)
		a.editScheduleMenu(ctx, d, msgID)
	case "day":
		day, _ := strconv.Atoi(arg)
		_ = a.builder.ToggleDay(a.adminID, time.Weekday(day))
		a.editScheduleMenu(ctx, d, msgID)
	case "dur":
		_ = a.builder.SetDuration(a.adminID, nextAllowed(models.AllowedDurations, d.Schedule.DurationHours))
		a.editScheduleMenu(ctx, d, msgID)
	case "preview":
		a.showPreview(ctx, d)
	case "save":
		a.save(ctx)
	case "cancel":
		_ = a.builder.Cancel(a.adminID)
		a.reply(ctx, "Draft discarded.")
	}
}

func (a *App) save(ctx context.Context) {
	post, err := a.builder.Save(ctx, a.adminID)
	switch {
	case err == nil:
		a.reply(ctx, fmt.Sprintf("Post %s saved: %d channel(s), next run %02d:%02d.",
			post.PostID, len(post.Channels), post.Schedule.Hour, post.Schedule.Minute))
	case errors.Is(err, draft.ErrInsufficientContent):
		a.reply(ctx, "Add text or an image before saving.")
	case errors.Is(err, draft.ErrNoChannelsSelected):
		a.reply(ctx, "Select at least one channel before saving.")
	default:
		a.reply(ctx, "Save failed: "+err.Error()+"\nThe draft is kept; try again.")
	}
}

func (a *App) showPreview(ctx context.Context, d *draft.Draft) {
	post, err := a.builder.Preview(ctx, a.adminID)
	if err != nil {
		if errors.Is(err, draft.ErrInsufficientContent) {
			a.reply(ctx, "Nothing to preview yet; add text or an image.")
			return
		}
		a.reply(ctx, "Preview failed: "+err.Error())
		return
	}

	if post.ImageFileID != "" {
		_, err = a.client.SendPhoto(ctx, a.adminID, post.ImageFileID, post.Text, post.Buttons)
	} else {
		_, err = a.client.SendText(ctx, a.adminID, post.Text, post.Buttons)
	}
	if err != nil {
		a.reply(ctx, "Preview failed: "+err.Error())
	}
}

// menus

func (a *App) menuText(d *draft.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft %s\n", d.PostID)
	fmt.Fprintf(&b, "Text: %s\n", summarize(d.Text))
	if d.ImageID != "" {
		b.WriteString("Image: set\n")
	} else {
		b.WriteString("Image: none\n")
	}
	fmt.Fprintf(&b, "Buttons: %d · Channels: %d\n", len(d.Buttons), d.SelectedCount())
	fmt.Fprintf(&b, "Schedule: %s", describeSchedule(d.Schedule))
	return b.String()
}

func (a *App) menuKeyboard(d *draft.Draft) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("📝 Text", "draft:text"),
			tgbotapi.NewInlineKeyboardButtonData("🖼 Image", "draft:image"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("➕ Button", "draft:btn_add"),
			tgbotapi.NewInlineKeyboardButtonData("📡 Channels", "draft:channels"),
		},
	}
	for i, btn := range d.Buttons {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 %s", btn.Text), fmt.Sprintf("draft:btn_del:%d", i)),
		})
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⏰ Schedule", "draft:schedule"),
			tgbotapi.NewInlineKeyboardButtonData("👁 Preview", "draft:preview"),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("💾 Save", "draft:save"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "draft:cancel"),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (a *App) sendMenu(ctx context.Context, d *draft.Draft) {
	msg := tgbotapi.NewMessage(a.adminID, a.menuText(d))
	msg.ReplyMarkup = a.menuKeyboard(d)
	if _, err := a.client.Bot().Send(msg); err != nil {
		a.log.Error().Err(err).Msg("Failed to send menu")
	}
}

func (a *App) editMenu(ctx context.Context, d *draft.Draft, msgID int) {
	if msgID == 0 {
		a.sendMenu(ctx, d)
		return
	}
	edit := tgbotapi.NewEditMessageText(a.adminID, msgID, a.menuText(d))
	kb := a.menuKeyboard(d)
	edit.ReplyMarkup = &kb
	if _, err := a.client.Bot().Request(edit); err != nil {
		a.sendMenu(ctx, d)
	}
}

func (a *App) editChannelMenu(ctx context.Context, d *draft.Draft, msgID int) {
	pool, err := a.channels.List(ctx)
	if err != nil {
		a.reply(ctx, "Couldn't load the channel pool: "+err.Error())
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range pool {
		mark := "☐"
		if d.Selected[ch.ChannelID] {
			mark = "☑"
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s %s (%d)", mark, ch.Name, ch.Subscribers),
				fmt.Sprintf("draft:ch:%d", ch.ChannelID)),
		})
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("All", "draft:ch_all"),
			tgbotapi.NewInlineKeyboardButtonData("None", "draft:ch_none"),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", "draft:menu"),
		},
	)

	text := fmt.Sprintf("Select channels (%d of %d):", d.SelectedCount(), len(pool))
	a.editOrSend(ctx, msgID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (a *App) editScheduleMenu(ctx context.Context, d *draft.Draft, msgID int) {
	s := d.Schedule

	dayRow := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		label := day.String()[:2]
		if s.Days.Contains(day) {
			label = "•" + label
		}
		dayRow = append(dayRow, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("draft:day:%d", int(day))))
	}

	dailyLabel := "Daily: off"
	if s.Daily {
		dailyLabel = "Daily: on"
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("−1h", "draft:hour:-1"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%02d:%02d", s.Hour, s.Minute), "draft:minute"),
			tgbotapi.NewInlineKeyboardButtonData("+1h", "draft:hour:1"),
		},
		{tgbotapi.NewInlineKeyboardButtonData(dailyLabel, "draft:daily")},
		dayRow,
		{tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Lifetime: %dh", s.DurationHours), "draft:dur")},
		{tgbotapi.NewInlineKeyboardButtonData("⬅ Back", "draft:menu")},
	}

	a.editOrSend(ctx, msgID, "Schedule — "+describeSchedule(s), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (a *App) editOrSend(ctx context.Context, msgID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if msgID != 0 {
		edit := tgbotapi.NewEditMessageText(a.adminID, msgID, text)
		edit.ReplyMarkup = &kb
		if _, err := a.client.Bot().Request(edit); err == nil {
			return
		}
	}
	msg := tgbotapi.NewMessage(a.adminID, text)
	msg.ReplyMarkup = kb
	if _, err := a.client.Bot().Send(msg); err != nil {
		a.log.Error().Err(err).Msg("Failed to send menu")
	}
}

func (a *App) addChannel(ctx context.Context, args string) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 {
		a.reply(ctx, "Usage: /addchannel <chat-id> <name>")
		return
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		a.reply(ctx, "That chat id is not a number.")
		return
	}

	ch := &models.Channel{ChannelID: chatID, Name: parts[1], AddedBy: a.adminID}
	if err := a.channels.Register(ctx, ch); err != nil {
		a.reply(ctx, "Couldn't add the channel: "+err.Error())
		return
	}
	a.reply(ctx, fmt.Sprintf("Channel %s added (%d subscribers).", ch.Name, ch.Subscribers))
}

func (a *App) removeChannel(ctx context.Context, args string) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		a.reply(ctx, "Usage: /rmchannel <chat-id>")
		return
	}

	if err := a.channels.Remove(ctx, chatID); err != nil {
		a.reply(ctx, "Couldn't remove the channel: "+err.Error())
		return
	}
	a.reply(ctx, "Channel removed. Posts that already reference it keep their copy.")
}

func (a *App) replyChannelList(ctx context.Context) {
	pool, err := a.channels.List(ctx)
	if err != nil {
		a.reply(ctx, "Couldn't load the channel pool: "+err.Error())
		return
	}
	if len(pool) == 0 {
		a.reply(ctx, "The channel pool is empty.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Channel pool (%d):\n", len(pool))
	for _, ch := range pool {
		fmt.Fprintf(&b, "• %s (%d subscribers)\n", ch.Name, ch.Subscribers)
	}
	a.reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func (a *App) reply(ctx context.Context, text string) {
	if _, err := a.client.SendText(ctx, a.adminID, text, nil); err != nil {
		a.log.Error().Err(err).Msg("Failed to reply to admin")
	}
}

func describeSchedule(s models.PostSchedule) string {
	when := fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
	if s.Daily {
		when += " every day"
	} else {
		var names []string
		for _, d := range s.Days {
			names = append(names, d.String()[:3])
		}
		when += " on " + strings.Join(names, ", ")
	}
	if s.Retracts() {
		when += fmt.Sprintf(", up for %dh", s.DurationHours)
	}
	return when
}

func summarize(text string) string {
	if text == "" {
		return "none"
	}
	if len(text) > 60 {
		return text[:60] + "…"
	}
	return text
}

// nextAllowed cycles to the value after cur in the allowed list
func nextAllowed(allowed []int, cur int) int {
	for i, v := range allowed {
		if v == cur {
			return allowed[(i+1)%len(allowed)]
		}
	}
	return allowed[0]
}
