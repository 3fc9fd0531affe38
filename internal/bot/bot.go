package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"planner-agent/internal/model"
	"planner-agent/internal/service"
)

const (
	cbDeletePrefix = "delete:"
	cbCancelPrefix = "cancel:"
)

const (
	menuLabelList   = "📋 All entries"
	menuLabelStatus = "📊 Status"
	menuLabelHelp   = "ℹ️ Help"
)

const pollTimeout = 60

// Store is the entry store surface the console needs.
type Store interface {
	Add(ctx context.Context, category model.Category, fields model.Fields) (*model.Entry, error)
	Update(ctx context.Context, category model.Category, id int64, patch model.Patch) (bool, error)
	Delete(ctx context.Context, category model.Category, id int64) (bool, error)
	List(category model.Category) []model.Entry
	Get(category model.Category, id int64) (model.Entry, bool)
	Counts() map[model.Category]int
}

// Schedule exposes the reminder scheduler state shown by /status.
type Schedule interface {
	Pending() []service.Job
	PendingFor(id int64) (service.Job, bool)
	NextDaily() (service.Job, bool)
	Location() *time.Location
}

// Profiles records owners who used the console.
type Profiles interface {
	Touch(ctx context.Context, telegramID int64, firstName, username string, seenAt time.Time) error
	ListAll(ctx context.Context) ([]model.Owner, error)
}

// Options configures the owner console.
type Options struct {
	Owners []int64
	// Model is the greeting model name shown by /status.
	Model string
}

// Bot is the owner console on top of the Telegram Bot API.
type Bot struct {
	api      *tgbotapi.BotAPI
	store    Store
	schedule Schedule
	profiles Profiles
	owners   map[int64]struct{}
	model    string
	logger   zerolog.Logger
	started  time.Time

	mu      sync.Mutex
	offset  int
	pending map[int64]deleteRequest
}

type deleteRequest struct {
	category model.Category
	id       int64
}

func New(api *tgbotapi.BotAPI, store Store, schedule Schedule, profiles Profiles, opts Options, logger zerolog.Logger) *Bot {
	owners := make(map[int64]struct{}, len(opts.Owners))
	for _, id := range opts.Owners {
		owners[id] = struct{}{}
	}
	logger = logger.With().Str("component", "bot").Logger()
	logger.Info().Str("account", api.Self.UserName).Msg("bot authorized")
	return &Bot{
		api:      api,
		store:    store,
		schedule: schedule,
		profiles: profiles,
		owners:   owners,
		model:    opts.Model,
		logger:   logger,
		started:  time.Now(),
		pending:  make(map[int64]deleteRequest),
	}
}

// Serve polls updates until ctx is cancelled. The update offset survives
// restarts of the service, so nothing is handled twice.
func (b *Bot) Serve(ctx context.Context) error {
	b.logger.Info().Msg("start polling updates")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.mu.Lock()
		cfg := tgbotapi.NewUpdate(b.offset)
		b.mu.Unlock()
		cfg.Timeout = pollTimeout

		updates, err := b.api.GetUpdates(cfg)
		if err != nil {
			b.logger.Warn().Err(err).Msg("get updates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, update := range updates {
			b.mu.Lock()
			if update.UpdateID >= b.offset {
				b.offset = update.UpdateID + 1
			}
			b.mu.Unlock()
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) String() string { return "telegram-bot" }

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Error().Err(err).Msg("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Error().Err(err).Msg("handle message")
		}
	}
}

func (b *Bot) isOwner(userID int64) bool {
	_, ok := b.owners[userID]
	return ok
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.isOwner(msg.From.ID) {
		b.logger.Debug().Int64("user_id", msg.From.ID).Msg("ignoring message from non-owner")
		return nil
	}
	if err := b.profiles.Touch(ctx, msg.From.ID, msg.From.FirstName, msg.From.UserName, time.Now()); err != nil {
		b.logger.Warn().Err(err).Int64("user_id", msg.From.ID).Msg("record owner")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
		return b.sendText(msg.Chat.ID, "I only understand commands for now. Try /help.")
	}

	b.logger.Info().Int64("user_id", msg.From.ID).Str("command", msg.Command()).Msg("command received")
	return b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "ping":
		return b.sendText(msg.Chat.ID, "🏓 pong")
	case "status":
		return b.handleStatus(ctx, msg)
	case "listall":
		return b.handleListAll(msg)
	case "todo":
		return b.handleAdd(ctx, msg, model.CategoryTodo)
	case "remind":
		return b.handleAdd(ctx, msg, model.CategoryReminder)
	case "day":
		return b.handleAdd(ctx, msg, model.CategoryDay)
	case "anni":
		return b.handleAdd(ctx, msg, model.CategoryAnniversary)
	case "reschedule":
		return b.handleReschedule(ctx, msg)
	case "delete":
		return b.handleDelete(msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>Planner agent online.</b>\nTimezone: <code>%s</code>\n\nUse /help to see the commands.",
		escape(name), escape(b.schedule.Location().String()),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /todo &lt;title&gt; [#tag] [| note] — add a todo\n" +
		"• /remind &lt;YYYY-MM-DD HH:MM&gt; &lt;title&gt; [#tag] [| note] — reminder, notified 15 minutes early\n" +
		"• /day &lt;YYYY-MM-DD&gt; &lt;title&gt; — special day, greeted that morning\n" +
		"• /anni &lt;YYYY-MM-DD&gt; &lt;title&gt; — anniversary, greeted every year\n" +
		"• /reschedule &lt;id&gt; &lt;YYYY-MM-DD HH:MM&gt; — move a reminder\n" +
		"• /delete &lt;category&gt; &lt;id&gt; — remove an entry\n" +
		"• /listall — list everything\n" +
		"• /status — agent health and counts\n" +
		"• /ping — check the bot responds"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	owners, err := b.profiles.ListAll(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("list owners")
	}
	info := statusInfo{
		Owners:   owners,
		Counts:   b.store.Counts(),
		Pending:  b.schedule.Pending(),
		Location: b.schedule.Location(),
		Model:    b.model,
		Now:      time.Now(),
		Uptime:   time.Since(b.started),
	}
	if next, ok := b.schedule.NextDaily(); ok {
		info.NextDaily = &next
	}
	return b.sendText(msg.Chat.ID, formatStatus(info))
}

func (b *Bot) handleListAll(msg *tgbotapi.Message) error {
	lists := make(map[model.Category][]model.Entry, len(model.Categories))
	for _, c := range model.Categories {
		lists[c] = b.store.List(c)
	}
	for _, chunk := range splitMessage(formatListing(lists), maxMessageLen) {
		if err := b.sendText(msg.Chat.ID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message, category model.Category) error {
	loc := b.schedule.Location()
	fields, err := parseEntryArgs(category, msg.CommandArguments(), loc)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ %s\nSee /help for the format.", escape(err.Error())))
	}

	entry, err := b.store.Add(ctx, category, fields)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEntry) {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ %s", escape(err.Error())))
		}
		b.logger.Error().Err(err).Str("category", string(category)).Msg("add entry")
		return b.sendText(msg.Chat.ID, "❌ Could not save the entry, please try again.")
	}

	text := fmt.Sprintf("✅ Saved %s <b>#%d</b> %s", category, entry.ID, escape(normalizeTitle(entry.Title)))
	if category.Scheduled() {
		text += b.reminderState(entry.ID)
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReschedule(ctx context.Context, msg *tgbotapi.Message) error {
	id, ts, err := parseReschedule(msg.CommandArguments(), b.schedule.Location())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ %s", escape(err.Error())))
	}
	ok, err := b.store.Update(ctx, model.CategoryReminder, id, model.Patch{Timestamp: &ts})
	if err != nil {
		b.logger.Error().Err(err).Int64("entry_id", id).Msg("reschedule reminder")
		return b.sendText(msg.Chat.ID, "❌ Could not update the reminder, please try again.")
	}
	if !ok {
		return b.sendText(msg.Chat.ID, "Reminder not found.")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔁 Reminder <b>#%d</b> moved to %s.%s", id, escape(strings.Replace(string(ts), "T", " ", 1)), b.reminderState(id)))
}

func (b *Bot) reminderState(id int64) string {
	job, ok := b.schedule.PendingFor(id)
	if !ok {
		return "\n⚠️ Too late to notify in advance, no reminder scheduled."
	}
	return fmt.Sprintf("\n🔔 Notification at %s.", job.RunAt.In(b.schedule.Location()).Format("2006-01-02 15:04"))
}

// handleDelete asks for confirmation through inline buttons.
func (b *Bot) handleDelete(msg *tgbotapi.Message) error {
	category, id, err := parseTarget(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ %s", escape(err.Error())))
	}
	entry, ok := b.store.Get(category, id)
	if !ok {
		return b.sendText(msg.Chat.ID, "Entry not found.")
	}

	b.setPending(msg.From.ID, deleteRequest{category: category, id: id})
	text := fmt.Sprintf("🗑 Delete %s <b>#%d</b> «%s»?", category, id, escape(shortTitle(entry.Title, 48)))
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Delete", fmt.Sprintf("%s%s:%d", cbDeletePrefix, category, id)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancelPrefix),
		),
	)
	return b.sendWithReplyMarkup(msg.Chat.ID, text, markup)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("callback ack")
	}
	if !b.isOwner(cb.From.ID) {
		return nil
	}

	req, ok := b.takePending(cb.From.ID)
	switch {
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		category, id, err := parseTarget(strings.Replace(strings.TrimPrefix(cb.Data, cbDeletePrefix), ":", " ", 1))
		if err != nil || !ok || req.category != category || req.id != id {
			return b.sendText(cb.Message.Chat.ID, "This confirmation has expired.")
		}
		deleted, err := b.store.Delete(ctx, category, id)
		if err != nil {
			b.logger.Error().Err(err).Int64("entry_id", id).Msg("delete entry")
			return b.sendText(cb.Message.Chat.ID, "❌ Could not delete the entry, please try again.")
		}
		if !deleted {
			return b.sendText(cb.Message.Chat.ID, "Entry not found.")
		}
		return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("🗑 %s <b>#%d</b> deleted.", category, id))
	case strings.HasPrefix(cb.Data, cbCancelPrefix):
		return b.sendText(cb.Message.Chat.ID, "↩️ Cancelled.")
	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelList:
		return true, b.handleListAll(msg)
	case menuLabelStatus:
		return true, b.handleStatus(ctx, msg)
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) setPending(userID int64, req deleteRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[userID] = req
}

func (b *Bot) takePending(userID int64) (deleteRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.pending[userID]
	delete(b.pending, userID)
	return req, ok
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelList),
			tgbotapi.NewKeyboardButton(menuLabelStatus),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
