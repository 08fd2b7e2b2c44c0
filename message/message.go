package message

// EventType names a platform system-event kind. Values match the Telegram
// Bot API field names so configuration can list them verbatim.
type EventType string

const (
	EventMemberAdded                  EventType = "new_chat_members"
	EventMemberLeft                   EventType = "left_chat_member"
	EventTitleChanged                 EventType = "new_chat_title"
	EventPhotoChanged                 EventType = "new_chat_photo"
	EventPhotoRemoved                 EventType = "delete_chat_photo"
	EventGroupCreated                 EventType = "group_chat_created"
	EventSupergroupCreated            EventType = "supergroup_chat_created"
	EventChannelCreated               EventType = "channel_chat_created"
	EventAutoDeleteTimerChanged       EventType = "message_auto_delete_timer_changed"
	EventMigrateToChat                EventType = "migrate_to_chat_id"
	EventMigrateFromChat              EventType = "migrate_from_chat_id"
	EventPinned                       EventType = "pinned_message"
	EventInvoice                      EventType = "invoice"
	EventSuccessfulPayment            EventType = "successful_payment"
	EventConnectedWebsite             EventType = "connected_website"
	EventWriteAccessAllowed           EventType = "write_access_allowed"
	EventPassportData                 EventType = "passport_data"
	EventProximityAlert               EventType = "proximity_alert_triggered"
	EventForumTopicCreated            EventType = "forum_topic_created"
	EventForumTopicEdited             EventType = "forum_topic_edited"
	EventForumTopicClosed             EventType = "forum_topic_closed"
	EventForumTopicReopened           EventType = "forum_topic_reopened"
	EventGeneralTopicHidden           EventType = "general_forum_topic_hidden"
	EventGeneralTopicUnhidden         EventType = "general_forum_topic_unhidden"
	EventVideoChatScheduled           EventType = "video_chat_scheduled"
	EventVideoChatStarted             EventType = "video_chat_started"
	EventVideoChatEnded               EventType = "video_chat_ended"
	EventVideoChatParticipantsInvited EventType = "video_chat_participants_invited"
	EventWebAppData                   EventType = "web_app_data"

	// EventUnknown is reported when a message is classified without a
	// specific event kind (for example by the no-content heuristic).
	EventUnknown EventType = "unknown"
)

// CanonicalOrder is the default lookup order for system-event flags. When a
// message carries more than one flag, the earliest entry wins.
var CanonicalOrder = []EventType{
	EventMemberAdded,
	EventMemberLeft,
	EventTitleChanged,
	EventPhotoChanged,
	EventPhotoRemoved,
	EventGroupCreated,
	EventSupergroupCreated,
	EventChannelCreated,
	EventAutoDeleteTimerChanged,
	EventMigrateToChat,
	EventMigrateFromChat,
	EventPinned,
	EventInvoice,
	EventSuccessfulPayment,
	EventConnectedWebsite,
	EventWriteAccessAllowed,
	EventPassportData,
	EventProximityAlert,
	EventForumTopicCreated,
	EventForumTopicEdited,
	EventForumTopicClosed,
	EventForumTopicReopened,
	EventGeneralTopicHidden,
	EventGeneralTopicUnhidden,
	EventVideoChatScheduled,
	EventVideoChatStarted,
	EventVideoChatEnded,
	EventVideoChatParticipantsInvited,
	EventWebAppData,
}

// IsKnown reports whether t is one of the platform system-event kinds.
func IsKnown(t EventType) bool {
	for _, known := range CanonicalOrder {
		if known == t {
			return true
		}
	}
	return false
}

// ChatType is the kind of chat a message was posted in.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsGroup reports whether the chat is a group or a supergroup.
func (c ChatType) IsGroup() bool {
	return c == ChatGroup || c == ChatSupergroup
}

// Snapshot is the normalized view of one inbound chat event. It is built once
// per event and treated as immutable afterwards.
type Snapshot struct {
	ChatID     int64
	MessageID  int
	ChatType   ChatType
	ChatTitle  string
	SenderID   *int64
	SenderName string

	// Text is nil when the event has no text at all.
	Text     *string
	HasMedia bool
	Flags    map[EventType]bool
}

// HasText reports whether the snapshot carries non-empty text.
func (s Snapshot) HasText() bool {
	return s.Text != nil && *s.Text != ""
}

// TextValue returns the text or an empty string when absent.
func (s Snapshot) TextValue() string {
	if s.Text == nil {
		return ""
	}
	return *s.Text
}

// HasFlag reports whether the given system-event flag is present.
func (s Snapshot) HasFlag(t EventType) bool {
	return s.Flags[t]
}

// PresentFlags returns the present flags in canonical order.
func (s Snapshot) PresentFlags() []EventType {
	var out []EventType
	for _, t := range CanonicalOrder {
		if s.Flags[t] {
			out = append(out, t)
		}
	}
	return out
}

// StringPtr is a small helper for building snapshots with text.
func StringPtr(s string) *string {
	return &s
}
