package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
	"sysclean-bot/settings"
	"sysclean-bot/stats"
)

// Mock implementations for testing

type sentMessage struct {
	chatID   int64
	text     string
	keyboard Keyboard
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
}

type mockMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	edited  []editedMessage
	answers []string
	sendErr error
}

func (m *mockMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return m.sendErr
}

func (m *mockMessenger) SendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, keyboard: kb})
	return m.sendErr
}

func (m *mockMessenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = append(m.edited, editedMessage{chatID, messageID, text})
	return nil
}

func (m *mockMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

type mockInspector struct {
	members  map[int64]MemberStatus
	count    int
	countErr error
	err      error
}

func (m *mockInspector) Member(ctx context.Context, chatID, userID int64) (MemberStatus, error) {
	if m.err != nil {
		return MemberStatus{}, m.err
	}
	if st, ok := m.members[userID]; ok {
		return st, nil
	}
	return MemberStatus{Status: "member"}, nil
}

func (m *mockInspector) MemberCount(ctx context.Context, chatID int64) (int, error) {
	return m.count, m.countErr
}

type mockModerator struct {
	settings *settings.Settings
	stats    *stats.Tracker
	profile  classifier.Profile
}

func newMockModerator() *mockModerator {
	return &mockModerator{
		settings: settings.New(settings.Defaults()),
		stats:    stats.NewTracker(),
		profile:  classifier.ProfilePermissive,
	}
}

func (m *mockModerator) Profile() classifier.Profile { return m.profile }
func (m *mockModerator) Settings() settings.Values { return m.settings.Values() }
func (m *mockModerator) StatsSnapshot() stats.Snapshot {
	return m.stats.Snapshot()
}
func (m *mockModerator) ResetStats() { m.stats.Reset() }
func (m *mockModerator) Toggle(ctx context.Context, f settings.Flag) (bool, error) {
	return m.settings.Toggle(ctx, f)
}

const (
	botID   = int64(999)
	adminID = int64(1)
	userID  = int64(2)
	groupID = int64(-100)
)

var group = Chat{ID: groupID, Type: message.ChatSupergroup, Title: "Dev Chat"}

func newTestHandler() (*CommandHandler, *mockMessenger, *mockInspector, *mockModerator) {
	messenger := &mockMessenger{}
	inspector := &mockInspector{
		members: map[int64]MemberStatus{
			adminID: {Status: "administrator"},
			botID:   {Status: "administrator", CanDeleteMessages: true, CanReadMessages: true},
		},
		count: 1234,
	}
	moderator := newMockModerator()
	return NewCommandHandler(messenger, inspector, moderator, botID), messenger, inspector, moderator
}

func TestHandleStartCommand(t *testing.T) {
	h, messenger, _, _ := newTestHandler()

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: group, Name: "start"}))

	require.Len(t, messenger.sent, 1)
	msg := messenger.sent[0]
	assert.Equal(t, groupID, msg.chatID)
	assert.Contains(t, msg.text, "системные сообщения")
	require.Len(t, msg.keyboard, 3)
	assert.Equal(t, CallbackStats, msg.keyboard[0][0].Data)
	assert.Equal(t, CallbackSettings, msg.keyboard[1][0].Data)
	assert.Equal(t, CallbackHelp, msg.keyboard[2][0].Data)
}

func TestHandleHelpCommand(t *testing.T) {
	h, messenger, _, _ := newTestHandler()

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: group, Name: "help"}))

	require.Len(t, messenger.sent, 1)
	for _, cmd := range []string{"/start", "/help", "/status", "/stats", "/settings"} {
		assert.Contains(t, messenger.sent[0].text, cmd)
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	h, messenger, _, _ := newTestHandler()

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: group, Name: "fetch"}))
	assert.Empty(t, messenger.sent)
}

func TestHandleStatusCommand(t *testing.T) {
	h, messenger, _, _ := newTestHandler()

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: group, Name: "status"}))

	require.Len(t, messenger.sent, 1)
	text := messenger.sent[0].text
	assert.Contains(t, text, "Dev Chat")
	assert.Contains(t, text, "supergroup")
	assert.Contains(t, text, "1,234")
	assert.Contains(t, text, "Удаление сообщений: ✅")
	assert.Contains(t, text, "🟢 Активен")
	assert.Contains(t, text, "permissive")
}

func TestHandleStatusCommandPrivateChat(t *testing.T) {
	h, messenger, _, _ := newTestHandler()
	private := Chat{ID: 42, Type: message.ChatPrivate, Title: "Ivan"}

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: private, Name: "status"}))

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0].text, "Участников: N/A")
}

func TestHandleStatusCommandLookupFails(t *testing.T) {
	h, messenger, inspector, _ := newTestHandler()
	inspector.err = errors.New("chat not found")

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: group, Name: "status"}))

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0].text, "❌ Ошибка при получении статуса")
}

func TestHandleStatsCommand(t *testing.T) {
	h, messenger, _, moderator := newTestHandler()
	for i := 0; i < 3; i++ {
		moderator.stats.RecordDeleted()
	}
	moderator.stats.RecordError()

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: group, Name: "stats"}))

	require.Len(t, messenger.sent, 1)
	text := messenger.sent[0].text
	assert.Contains(t, text, "Удалено сообщений: 3")
	assert.Contains(t, text, "Ошибок: 1")
	assert.Contains(t, text, "Эффективность: 75.0%")
	assert.Contains(t, text, "Автоудаление: ✅")
	assert.Contains(t, text, "Логирование в чат: ❌")
}

func TestHandleSettingsCommand(t *testing.T) {
	h, messenger, _, _ := newTestHandler()

	require.NoError(t, h.HandleCommand(context.Background(), Command{Chat: group, Name: "settings"}))

	require.Len(t, messenger.sent, 1)
	kb := messenger.sent[0].keyboard
	require.Len(t, kb, 4)
	assert.Equal(t, "✅ Автоудаление", kb[0][0].Text)
	assert.Equal(t, CallbackToggleAutoDelete, kb[0][0].Data)
	assert.Equal(t, "❌ Логирование в чат", kb[1][0].Text)
	assert.Equal(t, CallbackToggleLogDeletions, kb[1][0].Data)
	assert.Equal(t, CallbackToggleNotifyAdmins, kb[2][0].Data)
	assert.Equal(t, CallbackResetStats, kb[3][0].Data)
}

func TestToggleCallbackByAdmin(t *testing.T) {
	h, messenger, _, moderator := newTestHandler()

	err := h.HandleCallback(context.Background(), Callback{
		ID: "cb1", Chat: group, MessageID: 7, UserID: adminID, Data: CallbackToggleAutoDelete,
	})
	require.NoError(t, err)

	assert.False(t, moderator.Settings().AutoDelete)
	require.Len(t, messenger.edited, 1)
	assert.Equal(t, 7, messenger.edited[0].messageID)
	assert.Equal(t, "✅ Настройка 'Автоудаление' выключена!", messenger.edited[0].text)
	assert.Equal(t, []string{""}, messenger.answers)
}

func TestToggleCallbackByNonAdmin(t *testing.T) {
	h, messenger, _, moderator := newTestHandler()

	err := h.HandleCallback(context.Background(), Callback{
		ID: "cb1", Chat: group, MessageID: 7, UserID: userID, Data: CallbackToggleNotifyAdmins,
	})
	require.NoError(t, err)

	assert.True(t, moderator.Settings().NotifyAdmins, "setting must not change")
	assert.Empty(t, messenger.edited)
	assert.Equal(t, []string{deniedText}, messenger.answers)
}

func TestToggleCallbackInPrivateChat(t *testing.T) {
	h, messenger, _, moderator := newTestHandler()
	private := Chat{ID: adminID, Type: message.ChatPrivate}

	err := h.HandleCallback(context.Background(), Callback{
		ID: "cb1", Chat: private, UserID: adminID, Data: CallbackToggleAutoDelete,
	})
	require.NoError(t, err)

	assert.True(t, moderator.Settings().AutoDelete)
	assert.Equal(t, []string{deniedText}, messenger.answers)
}

func TestToggleCallbackAdminLookupFails(t *testing.T) {
	h, messenger, inspector, moderator := newTestHandler()
	inspector.err = errors.New("timeout")

	err := h.HandleCallback(context.Background(), Callback{
		ID: "cb1", Chat: group, UserID: adminID, Data: CallbackToggleLogDeletions,
	})
	require.NoError(t, err)

	assert.False(t, moderator.Settings().LogDeletions)
	assert.Equal(t, []string{deniedText}, messenger.answers)
}

func TestResetStatsCallback(t *testing.T) {
	h, messenger, _, moderator := newTestHandler()
	moderator.stats.RecordDeleted()
	moderator.stats.RecordError()

	err := h.HandleCallback(context.Background(), Callback{
		ID: "cb1", Chat: group, MessageID: 3, UserID: adminID, Data: CallbackResetStats,
	})
	require.NoError(t, err)

	snap := moderator.StatsSnapshot()
	assert.Zero(t, snap.Deleted)
	assert.Zero(t, snap.Errors)
	assert.Zero(t, snap.Efficiency)
	require.Len(t, messenger.edited, 1)
	assert.Equal(t, "✅ Статистика сброшена!", messenger.edited[0].text)
}

func TestNavigationCallbacks(t *testing.T) {
	tests := []struct {
		data     string
		contains string
	}{
		{CallbackStats, "📈 Статистика"},
		{CallbackSettings, "⚙️ Настройки"},
		{CallbackHelp, "📖 Справка"},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			h, messenger, _, _ := newTestHandler()

			// navigation is open to everyone
			err := h.HandleCallback(context.Background(), Callback{ID: "cb", Chat: group, UserID: userID, Data: tt.data})
			require.NoError(t, err)

			require.Len(t, messenger.sent, 1)
			assert.Contains(t, messenger.sent[0].text, tt.contains)
		})
	}
}

func TestUnknownCallback(t *testing.T) {
	h, messenger, _, _ := newTestHandler()

	require.NoError(t, h.HandleCallback(context.Background(), Callback{ID: "cb", Chat: group, Data: "nope"}))
	assert.Empty(t, messenger.sent)
	assert.Empty(t, messenger.edited)
}

func TestSettingsKeyboardReflectsState(t *testing.T) {
	kb := SettingsKeyboard(settings.Values{AutoDelete: false, LogDeletions: true, NotifyAdmins: false})

	assert.Equal(t, "❌ Автоудаление", kb[0][0].Text)
	assert.Equal(t, "✅ Логирование в чат", kb[1][0].Text)
	assert.Equal(t, "❌ Уведомления админов", kb[2][0].Text)
}
