package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sysclean-bot/moderation"
)

// MemberStatus is the bot-relevant part of a chat membership.
type MemberStatus struct {
	Status            string
	CanDeleteMessages bool
	CanReadMessages   bool
}

// IsAdmin reports whether the member administers the chat.
func (m MemberStatus) IsAdmin() bool {
	return m.Status == "administrator" || m.Status == "creator"
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

// Telegram implements the platform calls over the Bot API client.
type Telegram struct {
	api *tgbotapi.BotAPI
}

// NewTelegram wraps an initialized Bot API client.
func NewTelegram(api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{api: api}
}

// SelfID returns the bot's own user ID.
func (t *Telegram) SelfID() int64 {
	return t.api.Self.ID
}

// call runs fn and gives up when ctx is done. The Bot API client has no
// context support, so an abandoned call finishes in the background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// DeleteMessage deletes a message from a chat.
func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	})
	if err != nil {
		return fmt.Errorf("delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// SendMessage sends a plain text message.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := call(ctx, func() (tgbotapi.Message, error) {
		return t.api.Send(tgbotapi.NewMessage(chatID, text))
	})
	if err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// SendKeyboard sends a message with an inline keyboard.
func (t *Telegram) SendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = inlineMarkup(kb)

	_, err := call(ctx, func() (tgbotapi.Message, error) {
		return t.api.Send(msg)
	})
	if err != nil {
		return fmt.Errorf("send keyboard to %d: %w", chatID, err)
	}
	return nil
}

// EditMessage replaces the text of a message the bot sent.
func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return t.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text))
	})
	if err != nil {
		return fmt.Errorf("edit message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return t.api.Request(tgbotapi.NewCallback(callbackID, text))
	})
	if err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// Administrators lists the chat's administrators.
func (t *Telegram) Administrators(ctx context.Context, chatID int64) ([]moderation.Admin, error) {
	members, err := call(ctx, func() ([]tgbotapi.ChatMember, error) {
		return t.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
			ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get administrators of %d: %w", chatID, err)
	}

	admins := make([]moderation.Admin, 0, len(members))
	for _, m := range members {
		if m.User == nil {
			continue
		}
		admins = append(admins, moderation.Admin{
			UserID:      m.User.ID,
			DisplayName: displayName(m.User),
		})
	}
	return admins, nil
}

// Member returns the membership of userID in chatID.
func (t *Telegram) Member(ctx context.Context, chatID, userID int64) (MemberStatus, error) {
	m, err := call(ctx, func() (tgbotapi.ChatMember, error) {
		return t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
		})
	})
	if err != nil {
		return MemberStatus{}, fmt.Errorf("get member %d of %d: %w", userID, chatID, err)
	}

	st := MemberStatus{
		Status:            m.Status,
		CanDeleteMessages: m.CanDeleteMessages || m.IsCreator(),
	}
	// Without admin rights a bot sees every group message only when its
	// privacy mode is off.
	st.CanReadMessages = st.IsAdmin()
	if userID == t.api.Self.ID && m.Status == "member" {
		st.CanReadMessages = t.api.Self.CanReadAllGroupMessages
	}
	return st, nil
}

// MemberCount returns the number of members in a chat.
func (t *Telegram) MemberCount(ctx context.Context, chatID int64) (int, error) {
	n, err := call(ctx, func() (int, error) {
		return t.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
			ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("get member count of %d: %w", chatID, err)
	}
	return n, nil
}

func inlineMarkup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
