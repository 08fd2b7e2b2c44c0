// Package moderation turns classifications into moderation actions and
// exposes the entry points the command layer uses.
package moderation

import (
	"context"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
	"sysclean-bot/settings"
	"sysclean-bot/stats"
)

// Engine bundles the classifier, settings, stats and executor.
type Engine struct {
	classifier *classifier.Classifier
	settings   *settings.Settings
	stats      *stats.Tracker
	executor   *Executor
}

// NewEngine creates an engine. The executor must report into tr.
func NewEngine(c *classifier.Classifier, st *settings.Settings, tr *stats.Tracker, ex *Executor) *Engine {
	return &Engine{
		classifier: c,
		settings:   st,
		stats:      tr,
		executor:   ex,
	}
}

// Profile returns the active classification profile.
func (e *Engine) Profile() classifier.Profile {
	return e.executor.Profile()
}

// Classify classifies s under the active profile.
func (e *Engine) Classify(s message.Snapshot) classifier.Result {
	return e.classifier.Classify(s, e.Profile())
}

// Handle acts on r using the current settings.
func (e *Engine) Handle(ctx context.Context, s message.Snapshot, r classifier.Result) Outcome {
	return e.executor.Handle(ctx, s, r, e.settings.Values())
}

// Process classifies s and acts on the result.
func (e *Engine) Process(ctx context.Context, s message.Snapshot) (classifier.Result, Outcome) {
	r := e.Classify(s)
	return r, e.Handle(ctx, s, r)
}

// Toggle flips one setting and returns its new value.
func (e *Engine) Toggle(ctx context.Context, f settings.Flag) (bool, error) {
	return e.settings.Toggle(ctx, f)
}

// Settings returns the current toggles.
func (e *Engine) Settings() settings.Values {
	return e.settings.Values()
}

// StatsSnapshot returns the current counters.
func (e *Engine) StatsSnapshot() stats.Snapshot {
	return e.stats.Snapshot()
}

// ResetStats zeroes the counters.
func (e *Engine) ResetStats() {
	e.stats.Reset()
}
