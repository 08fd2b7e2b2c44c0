package moderation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
	"sysclean-bot/settings"
	"sysclean-bot/stats"
)

const (
	testChatID = int64(-1001)
	botID      = int64(999)
)

// Mock implementations for testing

type sentMessage struct {
	chatID int64
	text   string
}

type mockPlatform struct {
	mu        sync.Mutex
	deleted   []int
	sent      []sentMessage
	deleteErr error
	sendErrs  map[int64]error
	hang      map[int64]bool
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{sendErrs: map[int64]error{}, hang: map[int64]bool{}}
}

func (m *mockPlatform) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockPlatform) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	hang := m.hang[chatID]
	m.sent = append(m.sent, sentMessage{chatID, text})
	err := m.sendErrs[chatID]
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (m *mockPlatform) sentTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

type mockDirectory struct {
	admins []Admin
	err    error
	calls  int
}

func (m *mockDirectory) Administrators(ctx context.Context, chatID int64) ([]Admin, error) {
	m.calls++
	return m.admins, m.err
}

type mockJournal struct {
	entries []JournalEntry
	err     error
}

func (m *mockJournal) Record(ctx context.Context, entry JournalEntry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

func threeAdmins() *mockDirectory {
	return &mockDirectory{admins: []Admin{
		{UserID: 1, DisplayName: "Anna"},
		{UserID: botID, DisplayName: "cleaner_bot"},
		{UserID: 2, DisplayName: "Boris"},
		{UserID: 3, DisplayName: "Vera"},
	}}
}

func joinSnapshot() message.Snapshot {
	return message.Snapshot{
		ChatID:    testChatID,
		MessageID: 77,
		ChatType:  message.ChatSupergroup,
		ChatTitle: "Team",
		Flags:     map[message.EventType]bool{message.EventMemberAdded: true},
	}
}

var joinResult = classifier.Result{
	IsSystem:  true,
	EventType: message.EventMemberAdded,
	Reason:    classifier.ReasonAttributeFlag,
}

func TestHandleNoopForUserContent(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	e := NewExecutor(p, threeAdmins(), tr)

	out := e.Handle(context.Background(), joinSnapshot(), classifier.Result{Reason: classifier.ReasonNone}, settings.Defaults())

	assert.Equal(t, ActionNone, out.Action)
	assert.Empty(t, p.deleted)
	assert.Empty(t, p.sent)
}

func TestHandleNoopWhenAutoDeleteOff(t *testing.T) {
	ctx := context.Background()
	p := newMockPlatform()
	dir := threeAdmins()
	tr := stats.NewTracker()
	st := settings.New(settings.Defaults())
	engine := NewEngine(classifier.Default(), st, tr, NewExecutor(p, dir, tr, WithSelfID(botID)))

	on, err := engine.Toggle(ctx, settings.AutoDelete)
	require.NoError(t, err)
	require.False(t, on)

	r, out := engine.Process(ctx, joinSnapshot())

	assert.True(t, r.IsSystem)
	assert.Equal(t, ActionNone, out.Action)
	assert.Empty(t, p.deleted)
	assert.Empty(t, p.sent)
	assert.Zero(t, dir.calls)
	s := engine.StatsSnapshot()
	assert.Zero(t, s.Deleted)
	assert.Zero(t, s.Errors)
}

func TestHandleDeleteSuccess(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	journal := &mockJournal{}
	e := NewExecutor(p, threeAdmins(), tr, WithSelfID(botID), WithJournal(journal))

	v := settings.Values{AutoDelete: true, LogDeletions: true, NotifyAdmins: true}
	out := e.Handle(context.Background(), joinSnapshot(), joinResult, v)

	assert.Equal(t, ActionDeleted, out.Action)
	assert.NoError(t, out.DeleteErr)
	assert.Equal(t, []int{77}, p.deleted)
	assert.Equal(t, uint64(1), tr.Snapshot().Deleted)

	assert.True(t, out.ChatLogged)
	assert.Equal(t, []string{"🗑️ Удалено системное сообщение: new_chat_members"}, p.sentTo(testChatID))

	require.Len(t, out.Notifications, 3)
	assert.Empty(t, p.sentTo(botID), "bot never notifies itself")
	for _, id := range []int64{1, 2, 3} {
		texts := p.sentTo(id)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Team")
		assert.Contains(t, texts[0], "new_chat_members")
	}

	require.Len(t, journal.entries, 1)
	entry := journal.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, ActionDeleted, entry.Action)
	assert.Equal(t, 3, entry.NotifiedOK)
	assert.Equal(t, classifier.ProfilePermissive, entry.Profile)
}

func TestHandleChatLogOnlyInGroups(t *testing.T) {
	p := newMockPlatform()
	e := NewExecutor(p, threeAdmins(), stats.NewTracker())

	s := joinSnapshot()
	s.ChatType = message.ChatChannel
	v := settings.Values{AutoDelete: true, LogDeletions: true}
	out := e.Handle(context.Background(), s, joinResult, v)

	assert.Equal(t, ActionDeleted, out.Action)
	assert.False(t, out.ChatLogged)
	assert.Empty(t, p.sent)
}

func TestHandleChatLogFailureDoesNotAffectStats(t *testing.T) {
	p := newMockPlatform()
	p.sendErrs[testChatID] = errors.New("not enough rights to send")
	tr := stats.NewTracker()
	e := NewExecutor(p, threeAdmins(), tr)

	v := settings.Values{AutoDelete: true, LogDeletions: true}
	out := e.Handle(context.Background(), joinSnapshot(), joinResult, v)

	assert.Equal(t, ActionDeleted, out.Action)
	assert.Error(t, out.ChatLogErr)
	assert.False(t, out.ChatLogged)
	s := tr.Snapshot()
	assert.Equal(t, uint64(1), s.Deleted)
	assert.Zero(t, s.Errors)
}

func TestHandleDeleteFailure(t *testing.T) {
	p := newMockPlatform()
	p.deleteErr = errors.New("message can't be deleted")
	tr := stats.NewTracker()
	journal := &mockJournal{}
	e := NewExecutor(p, threeAdmins(), tr, WithSelfID(botID), WithJournal(journal))

	v := settings.Values{AutoDelete: true, LogDeletions: true, NotifyAdmins: true}
	out := e.Handle(context.Background(), joinSnapshot(), joinResult, v)

	assert.Equal(t, ActionDeleteFailed, out.Action)
	assert.Error(t, out.DeleteErr)
	s := tr.Snapshot()
	assert.Zero(t, s.Deleted)
	assert.Equal(t, uint64(1), s.Errors)

	assert.Empty(t, p.sentTo(testChatID), "no chat log on failure")
	for _, id := range []int64{1, 2, 3} {
		texts := p.sentTo(id)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Не удалось удалить")
		assert.Contains(t, texts[0], "Проверьте права бота")
	}

	require.Len(t, journal.entries, 1)
	assert.Equal(t, "message can't be deleted", journal.entries[0].Error)
}

func TestFanOutIsolatesRecipientFailures(t *testing.T) {
	p := newMockPlatform()
	p.sendErrs[2] = errors.New("bot was blocked by the user")
	tr := stats.NewTracker()
	e := NewExecutor(p, threeAdmins(), tr, WithSelfID(botID))

	v := settings.Values{AutoDelete: true, NotifyAdmins: true}
	out := e.Handle(context.Background(), joinSnapshot(), joinResult, v)

	assert.Equal(t, ActionDeleted, out.Action)
	assert.NoError(t, out.DeleteErr)
	require.Len(t, out.Notifications, 3)
	assert.Equal(t, int64(1), out.Notifications[0].AdminID)
	assert.NoError(t, out.Notifications[0].Err)
	assert.Equal(t, int64(2), out.Notifications[1].AdminID)
	assert.Error(t, out.Notifications[1].Err)
	assert.Equal(t, int64(3), out.Notifications[2].AdminID)
	assert.NoError(t, out.Notifications[2].Err)
	assert.Equal(t, 2, out.Delivered())
	assert.Equal(t, 1, out.Failed())

	assert.Len(t, p.sentTo(1), 1)
	assert.Len(t, p.sentTo(2), 1)
	assert.Len(t, p.sentTo(3), 1)
	assert.Equal(t, uint64(1), tr.Snapshot().Deleted)
}

func TestFanOutPerRecipientTimeout(t *testing.T) {
	p := newMockPlatform()
	p.hang[1] = true
	e := NewExecutor(p, threeAdmins(), stats.NewTracker(),
		WithSelfID(botID), WithNotifyTimeout(20*time.Millisecond))

	start := time.Now()
	v := settings.Values{AutoDelete: true, NotifyAdmins: true}
	out := e.Handle(context.Background(), joinSnapshot(), joinResult, v)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, out.Notifications, 3)
	assert.ErrorIs(t, out.Notifications[0].Err, context.DeadlineExceeded)
	assert.NoError(t, out.Notifications[1].Err)
	assert.NoError(t, out.Notifications[2].Err)
}

func TestFanOutDirectoryFailure(t *testing.T) {
	p := newMockPlatform()
	dir := &mockDirectory{err: errors.New("chat not found")}
	tr := stats.NewTracker()
	e := NewExecutor(p, dir, tr)

	v := settings.Values{AutoDelete: true, NotifyAdmins: true}
	out := e.Handle(context.Background(), joinSnapshot(), joinResult, v)

	assert.Equal(t, ActionDeleted, out.Action)
	assert.Error(t, out.AdminsErr)
	assert.Empty(t, out.Notifications)
	assert.Equal(t, uint64(1), tr.Snapshot().Deleted)
}

func TestNotifyAdminsDisabled(t *testing.T) {
	p := newMockPlatform()
	dir := threeAdmins()
	e := NewExecutor(p, dir, stats.NewTracker())

	out := e.Handle(context.Background(), joinSnapshot(), joinResult, settings.Values{AutoDelete: true})

	assert.Equal(t, ActionDeleted, out.Action)
	assert.Zero(t, dir.calls)
	assert.Empty(t, p.sent)
}

func TestDebugProfileNeverDeletes(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	journal := &mockJournal{}
	e := NewExecutor(p, threeAdmins(), tr,
		WithSelfID(botID), WithProfile(classifier.ProfileDebug), WithJournal(journal))

	s := joinSnapshot()
	s.SenderName = "Ivan"
	v := settings.Values{AutoDelete: true, LogDeletions: true, NotifyAdmins: true}
	out := e.Handle(context.Background(), s, joinResult, v)

	assert.Equal(t, ActionObserved, out.Action)
	assert.Empty(t, p.deleted)
	snap := tr.Snapshot()
	assert.Zero(t, snap.Deleted)
	assert.Zero(t, snap.Errors)
	assert.Empty(t, p.sentTo(testChatID))

	texts := p.sentTo(1)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Анализ сообщения")
	assert.Contains(t, texts[0], "Ivan")
	assert.Contains(t, texts[0], "УДАЛИТЬ")

	require.Len(t, journal.entries, 1)
	assert.Equal(t, ActionObserved, journal.entries[0].Action)
	assert.Equal(t, classifier.ProfileDebug, journal.entries[0].Profile)
}

func TestDebugProfileObservesWithAutoDeleteOff(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	e := NewExecutor(p, threeAdmins(), tr, WithSelfID(botID), WithProfile(classifier.ProfileDebug))

	out := e.Handle(context.Background(), joinSnapshot(), joinResult, settings.Values{NotifyAdmins: true})

	assert.Equal(t, ActionObserved, out.Action)
	assert.Empty(t, p.deleted)
	assert.Len(t, p.sentTo(2), 1)
	assert.Zero(t, tr.Snapshot().Deleted)
}

func TestDebugProfileIgnoresUserContent(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	e := NewExecutor(p, threeAdmins(), tr, WithSelfID(botID), WithProfile(classifier.ProfileDebug))

	out := e.Handle(context.Background(), joinSnapshot(), classifier.Result{Reason: classifier.ReasonNone}, settings.Defaults())

	assert.Equal(t, ActionNone, out.Action)
	assert.Empty(t, p.sent)
}

func TestEngineKeepsTextlessPoll(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	engine := NewEngine(classifier.Default(), settings.New(settings.Defaults()), tr,
		NewExecutor(p, threeAdmins(), tr, WithSelfID(botID)))

	s := message.FromTelegram(&tgbotapi.Message{
		MessageID: 5,
		Chat:      &tgbotapi.Chat{ID: testChatID, Type: "supergroup"},
		Poll:      &tgbotapi.Poll{Question: "Lunch?"},
	})
	r, out := engine.Process(context.Background(), s)

	assert.False(t, r.IsSystem)
	assert.Equal(t, ActionNone, out.Action)
	assert.Empty(t, p.deleted)
}

func TestJournalFailureIsNotFatal(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	journal := &mockJournal{err: errors.New("database is locked")}
	e := NewExecutor(p, threeAdmins(), tr, WithJournal(journal))

	out := e.Handle(context.Background(), joinSnapshot(), joinResult, settings.Values{AutoDelete: true})
	assert.Equal(t, ActionDeleted, out.Action)
	assert.Len(t, journal.entries, 1)
}

func TestEngineResetStats(t *testing.T) {
	ctx := context.Background()
	p := newMockPlatform()
	tr := stats.NewTracker()
	engine := NewEngine(classifier.Default(), settings.New(settings.Defaults()), tr,
		NewExecutor(p, &mockDirectory{}, tr))

	for i := 0; i < 3; i++ {
		engine.Process(ctx, joinSnapshot())
	}
	p.deleteErr = errors.New("forbidden")
	engine.Process(ctx, joinSnapshot())

	s := engine.StatsSnapshot()
	assert.Equal(t, uint64(3), s.Deleted)
	assert.Equal(t, uint64(1), s.Errors)
	assert.InDelta(t, 0.75, s.Efficiency, 1e-9)

	engine.ResetStats()
	s = engine.StatsSnapshot()
	assert.Zero(t, s.Deleted)
	assert.Zero(t, s.Errors)
	assert.Equal(t, 0.0, s.Efficiency)
}

func TestEngineProcessKeywordUnderSafeProfile(t *testing.T) {
	p := newMockPlatform()
	tr := stats.NewTracker()
	engine := NewEngine(classifier.Default(), settings.New(settings.Defaults()), tr,
		NewExecutor(p, &mockDirectory{}, tr, WithProfile(classifier.ProfileSafe)))

	s := message.Snapshot{ChatID: testChatID, Text: message.StringPtr("Иван добавил(а) Петра")}
	r, out := engine.Process(context.Background(), s)

	assert.False(t, r.IsSystem)
	assert.Equal(t, ActionNone, out.Action)
	assert.Equal(t, classifier.ProfileSafe, engine.Profile())
}

func TestAnalysisTextTruncatesLongText(t *testing.T) {
	s := message.Snapshot{Text: message.StringPtr(strings.Repeat("я", 150))}
	text := AnalysisText(s, classifier.Result{EventType: message.EventUnknown, Reason: classifier.ReasonNone})

	assert.Contains(t, text, strings.Repeat("я", 100)+"...")
	assert.NotContains(t, text, strings.Repeat("я", 101))
	assert.Contains(t, text, "ОСТАВИТЬ")
	assert.Contains(t, text, "Unknown")
}
