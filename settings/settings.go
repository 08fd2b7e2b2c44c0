// Package settings holds the process-wide moderation toggles.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownSetting is returned for a flag name outside the three toggles.
var ErrUnknownSetting = errors.New("unknown setting")

// Flag names one toggle. The values double as callback and storage keys.
type Flag string

const (
	AutoDelete   Flag = "auto_delete"
	LogDeletions Flag = "log_deletions"
	NotifyAdmins Flag = "notify_admins"
)

// Flags lists the toggles in display order.
var Flags = []Flag{AutoDelete, LogDeletions, NotifyAdmins}

// ParseFlag validates a flag name.
func ParseFlag(s string) (Flag, error) {
	for _, f := range Flags {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSetting, s)
}

// Values is a consistent copy of the toggles.
type Values struct {
	AutoDelete   bool
	LogDeletions bool
	NotifyAdmins bool
}

// Defaults returns the startup defaults.
func Defaults() Values {
	return Values{AutoDelete: true, LogDeletions: false, NotifyAdmins: true}
}

// Get returns the value of one flag.
func (v Values) Get(f Flag) bool {
	switch f {
	case AutoDelete:
		return v.AutoDelete
	case LogDeletions:
		return v.LogDeletions
	case NotifyAdmins:
		return v.NotifyAdmins
	}
	return false
}

func (v *Values) set(f Flag, on bool) {
	switch f {
	case AutoDelete:
		v.AutoDelete = on
	case LogDeletions:
		v.LogDeletions = on
	case NotifyAdmins:
		v.NotifyAdmins = on
	}
}

// Store persists toggles outside the process.
type Store interface {
	LoadFlags(ctx context.Context) (map[string]bool, error)
	SaveFlag(ctx context.Context, name string, on bool) error
}

// Settings is safe for concurrent use.
type Settings struct {
	// toggleMu orders a flip together with its save so the store sees
	// toggles in the same order as memory. mu alone guards values.
	toggleMu sync.Mutex
	mu       sync.Mutex
	values   Values
	store    Store
}

// Option configures Settings.
type Option func(*Settings)

// WithStore delegates persistence to s.
func WithStore(s Store) Option {
	return func(st *Settings) {
		st.store = s
	}
}

// New creates settings initialized to initial.
func New(initial Values, opts ...Option) *Settings {
	s := &Settings{values: initial}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load overlays stored values on the current ones. Without a store it is a
// no-op. Unknown stored keys are ignored.
func (s *Settings) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	stored, err := s.store.LoadFlags(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, on := range stored {
		if f, err := ParseFlag(name); err == nil {
			s.values.set(f, on)
		}
	}
	return nil
}

// Values returns a copy of the current toggles.
func (s *Settings) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}

// Toggle flips a flag and returns its new value. If the store fails to save,
// the flip is kept in memory and the store error is returned alongside.
func (s *Settings) Toggle(ctx context.Context, f Flag) (bool, error) {
	if _, err := ParseFlag(string(f)); err != nil {
		return false, err
	}

	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	on := !s.values.Get(f)
	s.values.set(f, on)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveFlag(ctx, string(f), on); err != nil {
			return on, fmt.Errorf("save setting %s: %w", f, err)
		}
	}
	return on, nil
}
