// Package classifier decides whether a chat event is a platform service
// notification or user content.
package classifier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sysclean-bot/message"
)

// Profile selects which signals the classifier trusts.
type Profile string

const (
	// ProfilePermissive trusts flags, keywords and the no-content heuristic.
	ProfilePermissive Profile = "permissive"
	// ProfileSafe trusts structured flags only.
	ProfileSafe Profile = "safe"
	// ProfileStrict is permissive with a guard against keyword matches in
	// messages that look like user content.
	ProfileStrict Profile = "strict"
	// ProfileDebug classifies like permissive; nothing is ever deleted.
	ProfileDebug Profile = "debug"
)

// Profiles lists every profile from loosest to tightest.
var Profiles = []Profile{ProfilePermissive, ProfileSafe, ProfileStrict, ProfileDebug}

// ParseProfile parses a profile name. "attribute-only" is accepted as an
// alias for safe.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "permissive", "":
		return ProfilePermissive, nil
	case "safe", "attribute-only", "attribute_only":
		return ProfileSafe, nil
	case "strict":
		return ProfileStrict, nil
	case "debug":
		return ProfileDebug, nil
	default:
		return "", fmt.Errorf("unknown profile %q", s)
	}
}

// MatchReason records which signal produced a classification.
type MatchReason string

const (
	ReasonAttributeFlag     MatchReason = "attribute_flag"
	ReasonKeywordJoin       MatchReason = "keyword_join"
	ReasonKeywordLeave      MatchReason = "keyword_leave"
	ReasonKeywordChatChange MatchReason = "keyword_chat_change"
	ReasonKeywordPin        MatchReason = "keyword_pin"
	ReasonNoContent         MatchReason = "no_content"
	ReasonNone              MatchReason = "none"
)

// Result is the outcome of classifying one snapshot.
type Result struct {
	IsSystem  bool
	EventType message.EventType
	Reason    MatchReason
	// Keyword is the phrase that matched, for keyword reasons only.
	Keyword string
}

var userContent = Result{EventType: message.EventUnknown, Reason: ReasonNone}

// Classifier is safe for concurrent use; it holds only immutable tables.
type Classifier struct {
	tables Tables
}

// New creates a classifier over a private copy of the given tables.
func New(t Tables) *Classifier {
	return &Classifier{tables: t.clone()}
}

// Default creates a classifier over the built-in tables.
func Default() *Classifier {
	return New(DefaultTables())
}

// Classify is total: every snapshot shape yields a result. Unrecognized
// profiles are treated as safe.
func (c *Classifier) Classify(s message.Snapshot, p Profile) Result {
	if r, ok := c.byFlag(s); ok {
		return r
	}

	switch p {
	case ProfilePermissive, ProfileDebug, ProfileStrict:
	default:
		return userContent
	}

	if s.HasText() {
		if r, ok := c.byKeyword(s.TextValue()); ok {
			if p != ProfileStrict || c.strictAccepts(s) {
				return r
			}
		}
	}

	if !s.HasText() && !s.HasMedia {
		return Result{IsSystem: true, EventType: message.EventUnknown, Reason: ReasonNoContent}
	}

	return userContent
}

func (c *Classifier) byFlag(s message.Snapshot) (Result, bool) {
	for _, t := range c.tables.FlagOrder {
		if s.Flags[t] {
			return Result{IsSystem: true, EventType: t, Reason: ReasonAttributeFlag}, true
		}
	}
	return Result{}, false
}

// byKeyword uses plain substring matching, so ordinary text such as
// "I left early" matches the leave set.
func (c *Classifier) byKeyword(text string) (Result, bool) {
	for _, g := range c.tables.Groups {
		for _, phrase := range g.Phrases {
			if phrase != "" && strings.Contains(text, phrase) {
				return Result{IsSystem: true, EventType: g.Event, Reason: g.Reason, Keyword: phrase}, true
			}
		}
	}
	return Result{}, false
}

// strictAccepts rejects keyword hits on messages carrying media or long text;
// service notifications are short and never have attachments.
func (c *Classifier) strictAccepts(s message.Snapshot) bool {
	if s.HasMedia {
		return false
	}
	return utf8.RuneCountInString(s.TextValue()) <= c.tables.StrictMaxTextRunes
}
