package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	defaultQueueSize   = 256
	defaultIdleTimeout = 5 * time.Minute
)

// UpdateSource delivers long-polled updates. *tgbotapi.BotAPI implements it.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UpdateHandler handles a single update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Dispatcher polls for updates and hands them to one worker per chat, so a
// chat's updates are handled in order while chats proceed concurrently.
type Dispatcher struct {
	source      UpdateSource
	handler     UpdateHandler
	pollTimeout int
	queueSize   int
	idleTimeout time.Duration

	mu      sync.Mutex
	workers map[int64]*chatWorker
	wg      sync.WaitGroup
}

// chatWorker's backlog and closed are guarded by Dispatcher.mu.
type chatWorker struct {
	backlog []tgbotapi.Update
	closed  bool
	wake    chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollTimeout sets the long-polling timeout in seconds.
func WithPollTimeout(secs int) DispatcherOption {
	return func(d *Dispatcher) {
		d.pollTimeout = secs
	}
}

// WithQueueSize sets how many updates a chat may have queued. Updates past
// the limit are dropped so one chat cannot stall polling for the others.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithIdleTimeout sets how long an idle chat worker lives.
func WithIdleTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.idleTimeout = t
		}
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(source UpdateSource, handler UpdateHandler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		source:      source,
		handler:     handler,
		pollTimeout: 60,
		queueSize:   defaultQueueSize,
		idleTimeout: defaultIdleTimeout,
		workers:     make(map[int64]*chatWorker),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until ctx is cancelled, then stops polling and waits for queued
// updates to be handled. Queued updates are handled with a context that is
// not cancelled with ctx.
func (d *Dispatcher) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = d.pollTimeout
	u.AllowedUpdates = []string{"message", "channel_post", "callback_query"}

	updates := d.source.GetUpdatesChan(u)
	work := context.WithoutCancel(ctx)
	defer d.drain()

	for {
		select {
		case <-ctx.Done():
			d.source.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			d.dispatch(work, update)
		}
	}
}

// dispatch queues update on its chat's worker. It never blocks.
func (d *Dispatcher) dispatch(ctx context.Context, update tgbotapi.Update) {
	chatID := updateChatID(update)

	d.mu.Lock()
	w, ok := d.workers[chatID]
	if !ok {
		w = &chatWorker{wake: make(chan struct{}, 1)}
		d.workers[chatID] = w
		d.wg.Add(1)
		go d.work(ctx, chatID, w)
	}
	if len(w.backlog) >= d.queueSize {
		d.mu.Unlock()
		slog.Warn("chat queue full, dropping update",
			"chat_id", chatID, "update_id", update.UpdateID, "queue_size", d.queueSize)
		return
	}
	w.backlog = append(w.backlog, update)
	d.mu.Unlock()

	w.signal()
}

func (w *chatWorker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) work(ctx context.Context, chatID int64, w *chatWorker) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()

	for {
		d.mu.Lock()
		if len(w.backlog) > 0 {
			update := w.backlog[0]
			w.backlog[0] = tgbotapi.Update{}
			w.backlog = w.backlog[1:]
			d.mu.Unlock()

			d.handle(ctx, chatID, update)
			continue
		}
		if w.closed {
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		idle.Reset(d.idleTimeout)
		select {
		case <-w.wake:
		case <-idle.C:
			d.mu.Lock()
			if len(w.backlog) == 0 && !w.closed {
				delete(d.workers, chatID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, chatID int64, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling update",
				"chat_id", chatID,
				"update_id", update.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	d.handler.HandleUpdate(ctx, update)
}

func (d *Dispatcher) drain() {
	d.mu.Lock()
	for id, w := range d.workers {
		w.closed = true
		w.signal()
		delete(d.workers, id)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// updateChatID returns the chat an update belongs to, or 0 when it has none.
func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.ChannelPost != nil && update.ChannelPost.Chat != nil:
		return update.ChannelPost.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}
