package main

import (
	"context"
	"log/slog"
	"strconv"

	"sysclean-bot/moderation"
	"sysclean-bot/settings"
	"sysclean-bot/storage"
)

// Adapter types to bridge between storage and the moderation/settings interfaces

type journalAdapter struct {
	db *storage.DB
}

func (j *journalAdapter) Record(ctx context.Context, e moderation.JournalEntry) error {
	return j.db.RecordEntry(ctx, &storage.JournalEntry{
		ID:             e.ID,
		ChatID:         e.ChatID,
		MessageID:      e.MessageID,
		EventType:      string(e.EventType),
		MatchReason:    string(e.Reason),
		Profile:        string(e.Profile),
		Action:         string(e.Action),
		Error:          e.Error,
		NotifiedOK:     e.NotifiedOK,
		NotifiedFailed: e.NotifiedFailed,
		CreatedAt:      e.CreatedAt,
	})
}

type settingsStoreAdapter struct {
	db *storage.DB
}

func (s *settingsStoreAdapter) LoadFlags(ctx context.Context) (map[string]bool, error) {
	stored, err := s.db.AllSettings(ctx)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]bool, len(stored))
	for _, f := range settings.Flags {
		raw, ok := stored[string(f)]
		if !ok {
			continue
		}
		on, err := strconv.ParseBool(raw)
		if err != nil {
			slog.Warn("ignoring malformed stored setting", "setting", f, "value", raw)
			continue
		}
		flags[string(f)] = on
	}
	return flags, nil
}

func (s *settingsStoreAdapter) SaveFlag(ctx context.Context, name string, on bool) error {
	return s.db.SetSetting(ctx, name, strconv.FormatBool(on))
}
