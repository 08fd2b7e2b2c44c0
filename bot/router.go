package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
	"sysclean-bot/moderation"
)

// Processor classifies a message and acts on it.
type Processor interface {
	Process(ctx context.Context, s message.Snapshot) (classifier.Result, moderation.Outcome)
}

// Router sends commands and button presses to the command handler and every
// other message to moderation.
type Router struct {
	commands  *CommandHandler
	processor Processor
}

// NewRouter creates a router.
func NewRouter(commands *CommandHandler, processor Processor) *Router {
	return &Router{commands: commands, processor: processor}
}

// HandleUpdate routes one update.
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		r.handleMessage(ctx, update.Message)
	case update.ChannelPost != nil:
		r.moderate(ctx, update.ChannelPost)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		r.moderate(ctx, msg)
		return
	}

	cmd := Command{
		Chat: chatOf(msg),
		Name: msg.Command(),
		Args: msg.CommandArguments(),
	}
	if msg.From != nil {
		cmd.UserID = msg.From.ID
	}

	slog.Info("received command", "chat_id", cmd.Chat.ID, "command", cmd.Name)
	if err := r.commands.HandleCommand(ctx, cmd); err != nil {
		slog.Warn("command failed", "chat_id", cmd.Chat.ID, "command", cmd.Name, "error", err)
	}
}

func (r *Router) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	cb := Callback{ID: q.ID, Data: q.Data}
	if q.From != nil {
		cb.UserID = q.From.ID
	}
	if q.Message != nil {
		cb.Chat = chatOf(q.Message)
		cb.MessageID = q.Message.MessageID
	}

	if err := r.commands.HandleCallback(ctx, cb); err != nil {
		slog.Warn("callback failed", "chat_id", cb.Chat.ID, "data", cb.Data, "error", err)
	}
}

func (r *Router) moderate(ctx context.Context, msg *tgbotapi.Message) {
	s := message.FromTelegram(msg)
	res, out := r.processor.Process(ctx, s)
	if !res.IsSystem {
		return
	}

	slog.Info("system message handled",
		"chat_id", s.ChatID,
		"message_id", s.MessageID,
		"event_type", res.EventType,
		"reason", res.Reason,
		"action", out.Action,
		"notified", out.Delivered(),
		"notify_failed", out.Failed(),
	)
}

func chatOf(msg *tgbotapi.Message) Chat {
	s := message.FromTelegram(msg)
	return Chat{ID: s.ChatID, Type: s.ChatType, Title: s.ChatTitle}
}
