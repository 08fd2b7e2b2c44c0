package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
	"sysclean-bot/settings"
)

const defaultNotifyTimeout = 5 * time.Second

// Platform is the part of the chat platform the executor acts through.
type Platform interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Admin is one chat administrator.
type Admin struct {
	UserID      int64
	DisplayName string
}

// AdminDirectory resolves the administrators of a chat.
type AdminDirectory interface {
	Administrators(ctx context.Context, chatID int64) ([]Admin, error)
}

// Counter receives deletion outcomes.
type Counter interface {
	RecordDeleted()
	RecordError()
}

// Journal stores a record of each moderation action.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// Action is what the executor did with a message.
type Action string

const (
	ActionNone         Action = "none"
	ActionDeleted      Action = "deleted"
	ActionDeleteFailed Action = "delete_failed"
	ActionObserved     Action = "observed"
)

// Notification is the delivery result for one administrator.
type Notification struct {
	AdminID int64
	Err     error
}

// Outcome describes everything Handle did for one message.
type Outcome struct {
	Action    Action
	DeleteErr error

	ChatLogged bool
	ChatLogErr error

	// AdminsErr is set when the administrator list could not be resolved.
	AdminsErr     error
	Notifications []Notification
}

// Delivered counts administrators that were notified.
func (o Outcome) Delivered() int {
	n := 0
	for _, r := range o.Notifications {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts administrators whose notification failed.
func (o Outcome) Failed() int {
	return len(o.Notifications) - o.Delivered()
}

// JournalEntry is one persisted moderation action.
type JournalEntry struct {
	ID             string
	ChatID         int64
	MessageID      int
	EventType      message.EventType
	Reason         classifier.MatchReason
	Profile        classifier.Profile
	Action         Action
	Error          string
	NotifiedOK     int
	NotifiedFailed int
	CreatedAt      time.Time
}

// Executor runs delete, chat log and admin fan-out for classified messages.
type Executor struct {
	platform      Platform
	admins        AdminDirectory
	counter       Counter
	journal       Journal
	selfID        int64
	profile       classifier.Profile
	notifyTimeout time.Duration
	now           func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithSelfID sets the bot's own user ID, which is never notified.
func WithSelfID(id int64) Option {
	return func(e *Executor) {
		e.selfID = id
	}
}

// WithProfile sets the classification profile. The debug profile turns the
// executor into an observer that never deletes.
func WithProfile(p classifier.Profile) Option {
	return func(e *Executor) {
		e.profile = p
	}
}

// WithNotifyTimeout bounds each platform call in the admin fan-out.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// WithJournal records every action taken.
func WithJournal(j Journal) Option {
	return func(e *Executor) {
		e.journal = j
	}
}

// WithClock overrides the time source for journal entries.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an executor.
func NewExecutor(platform Platform, admins AdminDirectory, counter Counter, opts ...Option) *Executor {
	e := &Executor{
		platform:      platform,
		admins:        admins,
		counter:       counter,
		profile:       classifier.ProfilePermissive,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profile returns the configured profile.
func (e *Executor) Profile() classifier.Profile {
	return e.profile
}

// Handle acts on a classified message. It is a no-op unless the message is a
// system message and auto-delete is on. The debug profile never deletes, so
// it observes system messages whatever auto-delete is set to. Send failures
// never fail the call; they are reported in the Outcome.
func (e *Executor) Handle(ctx context.Context, s message.Snapshot, r classifier.Result, v settings.Values) Outcome {
	if !r.IsSystem {
		return Outcome{Action: ActionNone}
	}

	var out Outcome
	switch {
	case e.profile == classifier.ProfileDebug:
		out = e.observe(ctx, s, r, v)
	case v.AutoDelete:
		out = e.moderate(ctx, s, r, v)
	default:
		return Outcome{Action: ActionNone}
	}

	e.record(ctx, s, r, out)
	return out
}

func (e *Executor) moderate(ctx context.Context, s message.Snapshot, r classifier.Result, v settings.Values) Outcome {
	out := Outcome{Action: ActionDeleted}

	// Step 1: delete
	if err := e.platform.DeleteMessage(ctx, s.ChatID, s.MessageID); err != nil {
		e.counter.RecordError()
		out.Action = ActionDeleteFailed
		out.DeleteErr = err
		slog.Error("failed to delete system message",
			"chat_id", s.ChatID, "message_id", s.MessageID, "event_type", r.EventType, "error", err)
	} else {
		e.counter.RecordDeleted()
		slog.Info("deleted system message",
			"chat_id", s.ChatID, "message_id", s.MessageID, "event_type", r.EventType, "reason", r.Reason)
	}

	// Step 2: chat log, success path only
	if out.Action == ActionDeleted && v.LogDeletions && s.ChatType.IsGroup() {
		if err := e.platform.SendMessage(ctx, s.ChatID, ChatLogText(r.EventType)); err != nil {
			out.ChatLogErr = err
			slog.Warn("failed to send chat log", "chat_id", s.ChatID, "error", err)
		} else {
			out.ChatLogged = true
		}
	}

	// Step 3: admin fan-out
	if v.NotifyAdmins {
		text := DeletedNoticeText(s.ChatTitle, r.EventType)
		if out.Action == ActionDeleteFailed {
			text = DeleteFailedNoticeText(s.ChatTitle)
		}
		out.Notifications, out.AdminsErr = e.notifyAdmins(ctx, s.ChatID, text)
	}

	return out
}

func (e *Executor) observe(ctx context.Context, s message.Snapshot, r classifier.Result, v settings.Values) Outcome {
	out := Outcome{Action: ActionObserved}
	slog.Info("observed system message",
		"chat_id", s.ChatID, "message_id", s.MessageID, "event_type", r.EventType, "reason", r.Reason)

	if v.NotifyAdmins {
		out.Notifications, out.AdminsErr = e.notifyAdmins(ctx, s.ChatID, AnalysisText(s, r))
	}
	return out
}

// notifyAdmins sends text to every administrator except the bot. Each send
// has its own timeout and a failure moves on to the next recipient.
func (e *Executor) notifyAdmins(ctx context.Context, chatID int64, text string) ([]Notification, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	admins, err := e.admins.Administrators(lookupCtx, chatID)
	cancel()
	if err != nil {
		slog.Error("failed to resolve administrators", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("resolve administrators: %w", err)
	}

	results := make([]Notification, 0, len(admins))
	for _, admin := range admins {
		if admin.UserID == e.selfID {
			continue
		}

		err := e.sendBounded(ctx, admin.UserID, text)
		if err != nil {
			slog.Warn("failed to notify administrator", "chat_id", chatID, "admin_id", admin.UserID, "error", err)
		}
		results = append(results, Notification{AdminID: admin.UserID, Err: err})
	}
	return results, nil
}

func (e *Executor) sendBounded(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()
	return e.platform.SendMessage(ctx, chatID, text)
}

func (e *Executor) record(ctx context.Context, s message.Snapshot, r classifier.Result, out Outcome) {
	if e.journal == nil {
		return
	}

	entry := JournalEntry{
		ID:             uuid.NewString(),
		ChatID:         s.ChatID,
		MessageID:      s.MessageID,
		EventType:      r.EventType,
		Reason:         r.Reason,
		Profile:        e.profile,
		Action:         out.Action,
		NotifiedOK:     out.Delivered(),
		NotifiedFailed: out.Failed(),
		CreatedAt:      e.now(),
	}
	if out.DeleteErr != nil {
		entry.Error = out.DeleteErr.Error()
	}

	if err := e.journal.Record(ctx, entry); err != nil {
		slog.Warn("failed to record moderation journal entry", "chat_id", s.ChatID, "error", err)
	}
}
