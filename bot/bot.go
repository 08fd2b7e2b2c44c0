package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
	"sysclean-bot/settings"
	"sysclean-bot/stats"
)

// Callback data understood by HandleCallback.
const (
	CallbackStats              = "stats"
	CallbackSettings           = "settings"
	CallbackHelp               = "help"
	CallbackResetStats         = "reset_stats"
	CallbackToggleAutoDelete   = "toggle_auto_delete"
	CallbackToggleLogDeletions = "toggle_log_deletions"
	CallbackToggleNotifyAdmins = "toggle_notify_admins"
)

var toggleCallbacks = map[string]settings.Flag{
	CallbackToggleAutoDelete:   settings.AutoDelete,
	CallbackToggleLogDeletions: settings.LogDeletions,
	CallbackToggleNotifyAdmins: settings.NotifyAdmins,
}

// Messenger sends command replies.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// ChatInspector looks up membership facts.
type ChatInspector interface {
	Member(ctx context.Context, chatID, userID int64) (MemberStatus, error)
	MemberCount(ctx context.Context, chatID int64) (int, error)
}

// Moderator is the part of the moderation engine commands operate on.
type Moderator interface {
	Profile() classifier.Profile
	Settings() settings.Values
	Toggle(ctx context.Context, f settings.Flag) (bool, error)
	StatsSnapshot() stats.Snapshot
	ResetStats()
}

// Chat identifies where a command or button press came from.
type Chat struct {
	ID    int64
	Type  message.ChatType
	Title string
}

// Command is a parsed bot command.
type Command struct {
	Chat   Chat
	UserID int64
	Name   string
	Args   string
}

// Callback is an inline button press.
type Callback struct {
	ID        string
	Chat      Chat
	MessageID int
	UserID    int64
	Data      string
}

// CommandHandler handles bot commands and inline buttons.
type CommandHandler struct {
	messenger Messenger
	inspector ChatInspector
	moderator Moderator
	selfID    int64
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(messenger Messenger, inspector ChatInspector, moderator Moderator, selfID int64) *CommandHandler {
	return &CommandHandler{
		messenger: messenger,
		inspector: inspector,
		moderator: moderator,
		selfID:    selfID,
	}
}

// HandleCommand dispatches a command. Unknown commands are ignored.
func (h *CommandHandler) HandleCommand(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case "start":
		return h.HandleStart(ctx, cmd.Chat.ID)
	case "help":
		return h.HandleHelp(ctx, cmd.Chat.ID)
	case "status":
		return h.HandleStatus(ctx, cmd.Chat)
	case "stats":
		return h.HandleStats(ctx, cmd.Chat.ID)
	case "settings":
		return h.HandleSettings(ctx, cmd.Chat.ID)
	default:
		return nil
	}
}

// HandleStart handles the /start command.
func (h *CommandHandler) HandleStart(ctx context.Context, chatID int64) error {
	kb := Keyboard{
		{{Text: "📊 Статистика", Data: CallbackStats}},
		{{Text: "⚙️ Настройки", Data: CallbackSettings}},
		{{Text: "📖 Справка", Data: CallbackHelp}},
	}
	return h.messenger.SendKeyboard(ctx, chatID, startText, kb)
}

// HandleHelp handles the /help command.
func (h *CommandHandler) HandleHelp(ctx context.Context, chatID int64) error {
	return h.messenger.SendMessage(ctx, chatID, helpText)
}

// HandleStatus handles the /status command.
func (h *CommandHandler) HandleStatus(ctx context.Context, chat Chat) error {
	member, err := h.inspector.Member(ctx, chat.ID, h.selfID)
	if err != nil {
		slog.Warn("failed to get bot membership", "chat_id", chat.ID, "error", err)
		return h.messenger.SendMessage(ctx, chat.ID, fmt.Sprintf("❌ Ошибка при получении статуса: %v", err))
	}

	count := -1
	if chat.Type.IsGroup() {
		if n, err := h.inspector.MemberCount(ctx, chat.ID); err == nil {
			count = n
		} else {
			slog.Warn("failed to get member count", "chat_id", chat.ID, "error", err)
		}
	}

	return h.messenger.SendMessage(ctx, chat.ID, FormatStatus(chat, count, member, h.moderator.Profile()))
}

// HandleStats handles the /stats command.
func (h *CommandHandler) HandleStats(ctx context.Context, chatID int64) error {
	text := FormatStats(h.moderator.StatsSnapshot(), h.moderator.Settings(), h.moderator.Profile())
	return h.messenger.SendMessage(ctx, chatID, text)
}

// HandleSettings handles the /settings command.
func (h *CommandHandler) HandleSettings(ctx context.Context, chatID int64) error {
	return h.messenger.SendKeyboard(ctx, chatID, settingsText, SettingsKeyboard(h.moderator.Settings()))
}

// HandleCallback handles an inline button press.
func (h *CommandHandler) HandleCallback(ctx context.Context, cb Callback) error {
	flag, isToggle := toggleCallbacks[cb.Data]
	if (isToggle || cb.Data == CallbackResetStats) && !h.isChatAdmin(ctx, cb.Chat, cb.UserID) {
		return h.messenger.AnswerCallback(ctx, cb.ID, deniedText)
	}

	if err := h.messenger.AnswerCallback(ctx, cb.ID, ""); err != nil {
		slog.Warn("failed to answer callback", "chat_id", cb.Chat.ID, "error", err)
	}

	switch {
	case isToggle:
		on, err := h.moderator.Toggle(ctx, flag)
		if err != nil {
			// the in-memory value has changed even when saving failed
			slog.Warn("failed to persist setting", "setting", flag, "error", err)
		}
		slog.Info("setting toggled", "setting", flag, "value", on, "chat_id", cb.Chat.ID, "user_id", cb.UserID)
		return h.messenger.EditMessage(ctx, cb.Chat.ID, cb.MessageID, ToggledText(flag, on))
	case cb.Data == CallbackResetStats:
		h.moderator.ResetStats()
		slog.Info("stats reset", "chat_id", cb.Chat.ID, "user_id", cb.UserID)
		return h.messenger.EditMessage(ctx, cb.Chat.ID, cb.MessageID, "✅ Статистика сброшена!")
	case cb.Data == CallbackStats:
		return h.HandleStats(ctx, cb.Chat.ID)
	case cb.Data == CallbackSettings:
		return h.HandleSettings(ctx, cb.Chat.ID)
	case cb.Data == CallbackHelp:
		return h.HandleHelp(ctx, cb.Chat.ID)
	default:
		slog.Debug("ignoring unknown callback", "data", cb.Data)
		return nil
	}
}

// isChatAdmin reports whether userID may change global settings from chat.
// Settings are shared by every chat, so private chats never qualify.
func (h *CommandHandler) isChatAdmin(ctx context.Context, chat Chat, userID int64) bool {
	if !chat.Type.IsGroup() {
		return false
	}
	m, err := h.inspector.Member(ctx, chat.ID, userID)
	if err != nil {
		slog.Warn("failed to check admin rights", "chat_id", chat.ID, "user_id", userID, "error", err)
		return false
	}
	return m.IsAdmin()
}

// SettingsKeyboard renders the toggles with their current state.
func SettingsKeyboard(v settings.Values) Keyboard {
	kb := make(Keyboard, 0, len(settings.Flags)+1)
	for _, f := range settings.Flags {
		kb = append(kb, []Button{{
			Text: fmt.Sprintf("%s %s", mark(v.Get(f)), settingLabel(f)),
			Data: "toggle_" + string(f),
		}})
	}
	return append(kb, []Button{{Text: "🔄 Сбросить статистику", Data: CallbackResetStats}})
}

// ToggledText confirms a settings change.
func ToggledText(f settings.Flag, on bool) string {
	state := "выключена"
	if on {
		state = "включена"
	}
	return fmt.Sprintf("✅ Настройка '%s' %s!", settingLabel(f), state)
}

func settingLabel(f settings.Flag) string {
	switch f {
	case settings.AutoDelete:
		return "Автоудаление"
	case settings.LogDeletions:
		return "Логирование в чат"
	case settings.NotifyAdmins:
		return "Уведомления админов"
	default:
		return string(f)
	}
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

const deniedText = "⛔ Настройки могут менять только администраторы группы"

const settingsText = "⚙️ Настройки бота\n\nВыберите параметр для изменения:"

var startText = strings.Join([]string{
	"🤖 Бот для очистки системных сообщений",
	"",
	"Привет! Я автоматически удаляю системные сообщения из чатов.",
	"",
	"Основные возможности:",
	"• Автоматическое удаление системных сообщений",
	"• Статистика работы",
	"• Настраиваемые параметры",
	"• Уведомления администраторов",
	"",
	"Быстрые действия:",
}, "\n")

var helpText = strings.Join([]string{
	"📖 Справка",
	"",
	"Команды:",
	"/start - главное меню",
	"/help - эта справка",
	"/status - статус бота в чате",
	"/stats - статистика работы",
	"/settings - настройки бота",
	"",
	"Настройки:",
	"• auto_delete - автоматическое удаление",
	"• log_deletions - логирование удалений в чат",
	"• notify_admins - уведомления админов в личные сообщения",
	"",
	"Требования для работы:",
	"• Права администратора",
	"• Права на удаление сообщений",
	"",
	"Поддерживаемые системные сообщения:",
	"• Вход и выход участников",
	"• Изменения названия и фото чата",
	"• Закрепленные сообщения",
	"• Создание и миграция чатов",
	"• Видеочаты, платежи и другие служебные события",
}, "\n")
