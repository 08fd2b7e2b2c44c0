package classifier

import (
	"sysclean-bot/message"
)

// DefaultStrictMaxTextRunes is the longest text the strict profile still
// accepts as a service notification.
const DefaultStrictMaxTextRunes = 200

// KeywordGroup is one ordered set of phrases that maps to an event type.
type KeywordGroup struct {
	Reason  MatchReason
	Event   message.EventType
	Phrases []string
}

// Tables is the immutable data the classifier works from.
type Tables struct {
	FlagOrder          []message.EventType
	Groups             []KeywordGroup
	StrictMaxTextRunes int
}

// Keyword sets, Russian (including the "(а)" gendered form) and English.
var (
	JoinPhrases = []string{
		"добавил(а)", "добавил", "добавила",
		"присоединился", "присоединилась",
		"added", "joined",
		"присоединился к группе", "присоединилась к группе",
	}
	LeavePhrases = []string{
		"покинул(а)", "покинул", "покинула",
		"left", "ушел", "ушла",
		"покинул группу", "покинула группу",
		"ушел из группы", "ушла из группы",
	}
	TitlePhrases = []string{
		"изменил(а) название", "изменил название", "изменила название",
		"changed the group name",
	}
	PhotoPhrases = []string{
		"изменил(а) фото", "изменил фото", "изменила фото",
		"changed the group photo",
	}
	PhotoRemovedPhrases = []string{
		"удалил(а) фото", "удалил фото", "удалила фото",
		"removed the group photo",
	}
	PinPhrases = []string{
		"закрепил(а)", "закрепил", "закрепила",
		"pinned",
	}
)

// DefaultTables returns the built-in tables. Group order is the match
// priority: join, leave, chat change, pin.
func DefaultTables() Tables {
	return Tables{
		FlagOrder: message.CanonicalOrder,
		Groups: []KeywordGroup{
			{Reason: ReasonKeywordJoin, Event: message.EventMemberAdded, Phrases: JoinPhrases},
			{Reason: ReasonKeywordLeave, Event: message.EventMemberLeft, Phrases: LeavePhrases},
			{Reason: ReasonKeywordChatChange, Event: message.EventTitleChanged, Phrases: TitlePhrases},
			{Reason: ReasonKeywordChatChange, Event: message.EventPhotoChanged, Phrases: PhotoPhrases},
			{Reason: ReasonKeywordChatChange, Event: message.EventPhotoRemoved, Phrases: PhotoRemovedPhrases},
			{Reason: ReasonKeywordPin, Event: message.EventPinned, Phrases: PinPhrases},
		},
		StrictMaxTextRunes: DefaultStrictMaxTextRunes,
	}
}

func (t Tables) clone() Tables {
	out := Tables{
		FlagOrder:          append([]message.EventType(nil), t.FlagOrder...),
		Groups:             make([]KeywordGroup, len(t.Groups)),
		StrictMaxTextRunes: t.StrictMaxTextRunes,
	}
	for i, g := range t.Groups {
		out.Groups[i] = KeywordGroup{
			Reason:  g.Reason,
			Event:   g.Event,
			Phrases: append([]string(nil), g.Phrases...),
		}
	}
	if len(out.FlagOrder) == 0 {
		out.FlagOrder = append([]message.EventType(nil), message.CanonicalOrder...)
	}
	if out.StrictMaxTextRunes <= 0 {
		out.StrictMaxTextRunes = DefaultStrictMaxTextRunes
	}
	return out
}
