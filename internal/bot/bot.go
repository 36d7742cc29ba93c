package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"listkeeper/internal/model"
	"listkeeper/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbPausePrefix    = "pause:"
	cbResumePrefix   = "resume:"
)

// Bot is the Telegram adapter: it implements service.Messenger for outgoing
// messages and translates a small command set into service calls. All list
// and scheduling semantics live below the service layer.
type Bot struct {
	api     *tgbotapi.BotAPI
	taskSvc *service.TaskService
	loc     *time.Location
}

func New(token string, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return &Bot{api: api, loc: loc}, nil
}

// SetTaskService wires the service after construction; the service itself
// needs the bot as its Messenger.
func (b *Bot) SetTaskService(svc *service.TaskService) {
	b.taskSvc = svc
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	channelID := strconv.FormatInt(msg.Chat.ID, 10)
	now := time.Now().In(b.loc)

	switch msg.Command() {
	case "add":
		b.commandAdd(ctx, msg, channelID, now)
	case "list":
		b.commandList(ctx, msg.Chat.ID, channelID)
	case "done":
		b.commandDone(ctx, msg, channelID, now)
	case "help", "start":
		b.reply(msg.Chat.ID, helpText)
	}
}

// commandAdd handles "/add title | interval days | HH:mm | description".
func (b *Bot) commandAdd(ctx context.Context, msg *tgbotapi.Message, channelID string, now time.Time) {
	parts := strings.Split(msg.CommandArguments(), "|")
	if len(parts) < 2 {
		b.reply(msg.Chat.ID, "Usage: /add title | interval days | HH:mm | description")
		return
	}

	interval, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		b.reply(msg.Chat.ID, "The interval must be a number of days.")
		return
	}

	input := model.TaskInput{
		Title:        strings.TrimSpace(parts[0]),
		IntervalDays: interval,
	}
	if len(parts) > 2 {
		input.TimeOfDay = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		input.Description = strings.TrimSpace(parts[3])
	}

	result, err := b.taskSvc.AddTask(ctx, channelID, input, now)
	if err != nil {
		b.reply(msg.Chat.ID, userMessage(err))
		return
	}
	log.Printf("[info] task %s added in channel %s", result.Task.ID, channelID)
}

func (b *Bot) commandList(ctx context.Context, chatID int64, channelID string) {
	tasks, err := b.taskSvc.ListTasks(ctx, channelID)
	if err != nil {
		b.reply(chatID, "Could not load the task list.")
		return
	}
	if len(tasks) == 0 {
		b.reply(chatID, "No recurring tasks in this chat yet. Add one with /add.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Recurring tasks</b>\n\n")
	for _, task := range tasks {
		sb.WriteString(renderTaskLine(task, b.loc))
	}
	b.replyHTML(chatID, sb.String())
}

// commandDone completes the task whose message the user replied to.
func (b *Bot) commandDone(ctx context.Context, msg *tgbotapi.Message, channelID string, now time.Time) {
	if msg.ReplyToMessage == nil {
		b.reply(msg.Chat.ID, "Reply to a task message with /done to complete it.")
		return
	}
	messageID := strconv.Itoa(msg.ReplyToMessage.MessageID)
	task, err := b.taskSvc.FindTaskByMessageID(ctx, channelID, messageID)
	if err != nil {
		b.reply(msg.Chat.ID, "That message does not belong to a task.")
		return
	}
	if _, err := b.taskSvc.CompleteTask(ctx, channelID, task.ID, now); err != nil {
		b.reply(msg.Chat.ID, userMessage(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	channelID := strconv.FormatInt(cb.Message.Chat.ID, 10)
	now := time.Now().In(b.loc)

	var err error
	switch {
	case strings.HasPrefix(cb.Data, cbCompletePrefix):
		_, err = b.taskSvc.CompleteTask(ctx, channelID, strings.TrimPrefix(cb.Data, cbCompletePrefix), now)
	case strings.HasPrefix(cb.Data, cbPausePrefix):
		_, err = b.taskSvc.SetPaused(ctx, channelID, strings.TrimPrefix(cb.Data, cbPausePrefix), true, now)
	case strings.HasPrefix(cb.Data, cbResumePrefix):
		_, err = b.taskSvc.SetPaused(ctx, channelID, strings.TrimPrefix(cb.Data, cbResumePrefix), false, now)
	default:
		return
	}

	answer := tgbotapi.NewCallback(cb.ID, "")
	if err != nil {
		answer.Text = userMessage(err)
	}
	if _, err := b.api.Request(answer); err != nil {
		log.Printf("[warn] answer callback: %v", err)
	}
}

// SendTaskMessage implements service.Messenger.
func (b *Bot) SendTaskMessage(ctx context.Context, channelID string, view service.TaskView) (string, error) {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return "", err
	}

	msg := tgbotapi.NewMessage(chatID, renderTaskCard(view, b.loc))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = taskKeyboard(view)
	sent, err := b.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("send task message: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// UpdateTaskMessage implements service.Messenger.
func (b *Bot) UpdateTaskMessage(ctx context.Context, channelID, messageRef string, view service.TaskView) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(messageRef)
	if err != nil {
		return fmt.Errorf("parse message ref %q: %w", messageRef, err)
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, renderTaskCard(view, b.loc))
	edit.ParseMode = tgbotapi.ModeHTML
	keyboard := taskKeyboard(view)
	edit.ReplyMarkup = &keyboard
	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("update task message: %w", err)
	}
	return nil
}

// SendPreReminder implements service.Messenger.
func (b *Bot) SendPreReminder(ctx context.Context, channelID string, view service.TaskView) error {
	text := fmt.Sprintf("⏳ <b>%s</b> is due at %s.",
		html.EscapeString(view.Title), view.NextDueAt.In(b.loc).Format("15:04, 02.01.2006"))
	return b.sendHTML(channelID, text)
}

// SendOverdueAlert implements service.Messenger.
func (b *Bot) SendOverdueAlert(ctx context.Context, channelID string, view service.TaskView) error {
	text := fmt.Sprintf("⚠️ <b>%s</b> was due %s and is still open.",
		html.EscapeString(view.Title), view.NextDueAt.In(b.loc).Format("02.01.2006 15:04"))
	return b.sendHTML(channelID, text)
}

func (b *Bot) sendHTML(channelID, text string) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("[warn] send reply: %v", err)
	}
}

func (b *Bot) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[warn] send reply: %v", err)
	}
}

func parseChatID(channelID string) (int64, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse channel id %q: %w", channelID, err)
	}
	return chatID, nil
}

func taskKeyboard(view service.TaskView) tgbotapi.InlineKeyboardMarkup {
	pause := tgbotapi.NewInlineKeyboardButtonData("⏸ Pause", cbPausePrefix+view.ID)
	if view.IsPaused {
		pause = tgbotapi.NewInlineKeyboardButtonData("▶️ Resume", cbResumePrefix+view.ID)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbCompletePrefix+view.ID),
			pause,
		),
	)
}

func renderTaskCard(view service.TaskView, loc *time.Location) string {
	var sb strings.Builder
	icon := "♻️"
	if view.IsPaused {
		icon = "⏸"
	}
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", icon, html.EscapeString(view.Title)))
	if view.Description != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", html.EscapeString(view.Description)))
	}
	sb.WriteString(fmt.Sprintf("📆 every %d day(s) at %s\n", view.IntervalDays, view.TimeOfDay))
	sb.WriteString(fmt.Sprintf("⏰ next: %s", view.NextDueAt.In(loc).Format("02.01.2006 15:04")))
	for _, item := range view.Inventory {
		sb.WriteString(fmt.Sprintf("\n📦 %s: %d left", html.EscapeString(item.Name), item.Stock))
	}
	return sb.String()
}

func renderTaskLine(task *model.RecurringTask, loc *time.Location) string {
	icon := "♻️"
	if task.IsPaused {
		icon = "⏸"
	}
	return fmt.Sprintf("%s %s — every %d day(s), next %s\n",
		icon, html.EscapeString(task.Title), task.IntervalDays,
		task.NextDueAt.In(loc).Format("02.01.2006 15:04"))
}

// userMessage extracts the human-readable text of a service failure.
func userMessage(err error) string {
	var stage *service.StageError
	if errors.As(err, &stage) {
		return stage.UserMessage()
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	if errors.Is(err, model.ErrNotFound) {
		return "That task no longer exists."
	}
	return "Something went wrong, please try again."
}

const helpText = `Recurring task bot.

/add title | interval days | HH:mm | description — add a recurring task
/list — show the chat's tasks
/done — complete a task (reply to its message)`
