package message

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FromTelegram normalizes a Bot API message into a Snapshot. System-event
// fields the library does not decode stay absent, which leaves such events to
// the no-content heuristic.
func FromTelegram(msg *tgbotapi.Message) Snapshot {
	if msg == nil {
		return Snapshot{Flags: map[EventType]bool{}}
	}

	s := Snapshot{
		MessageID: msg.MessageID,
		Flags:     telegramFlags(msg),
		HasMedia: len(msg.Photo) > 0 ||
			msg.Video != nil ||
			msg.Audio != nil ||
			msg.Document != nil ||
			msg.Voice != nil ||
			msg.VideoNote != nil ||
			msg.Sticker != nil ||
			msg.Animation != nil ||
			hasAttachment(msg),
	}

	if msg.Text != "" {
		s.Text = StringPtr(msg.Text)
	}

	if msg.Chat != nil {
		s.ChatID = msg.Chat.ID
		s.ChatType = ChatType(msg.Chat.Type)
		s.ChatTitle = msg.Chat.Title
		if s.ChatTitle == "" {
			s.ChatTitle = msg.Chat.FirstName
		}
	}

	if msg.From != nil {
		id := msg.From.ID
		s.SenderID = &id
		s.SenderName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if s.SenderName == "" {
			s.SenderName = msg.From.UserName
		}
	}

	return s
}

// hasAttachment covers user content that is neither text nor a file. Without
// it a poll or a shared location would look like an empty service message.
func hasAttachment(msg *tgbotapi.Message) bool {
	return msg.Poll != nil ||
		msg.Location != nil ||
		msg.Venue != nil ||
		msg.Contact != nil ||
		msg.Dice != nil ||
		msg.Game != nil
}

func telegramFlags(msg *tgbotapi.Message) map[EventType]bool {
	flags := map[EventType]bool{}
	set := func(t EventType, present bool) {
		if present {
			flags[t] = true
		}
	}

	set(EventMemberAdded, len(msg.NewChatMembers) > 0)
	set(EventMemberLeft, msg.LeftChatMember != nil)
	set(EventTitleChanged, msg.NewChatTitle != "")
	set(EventPhotoChanged, len(msg.NewChatPhoto) > 0)
	set(EventPhotoRemoved, msg.DeleteChatPhoto)
	set(EventGroupCreated, msg.GroupChatCreated)
	set(EventSupergroupCreated, msg.SuperGroupChatCreated)
	set(EventChannelCreated, msg.ChannelChatCreated)
	set(EventAutoDeleteTimerChanged, msg.MessageAutoDeleteTimerChanged != nil)
	set(EventMigrateToChat, msg.MigrateToChatID != 0)
	set(EventMigrateFromChat, msg.MigrateFromChatID != 0)
	set(EventPinned, msg.PinnedMessage != nil)
	set(EventInvoice, msg.Invoice != nil)
	set(EventSuccessfulPayment, msg.SuccessfulPayment != nil)
	set(EventConnectedWebsite, msg.ConnectedWebsite != "")
	set(EventPassportData, msg.PassportData != nil)
	set(EventProximityAlert, msg.ProximityAlertTriggered != nil)
	// Bot API 5.x calls these voice chats.
	set(EventVideoChatScheduled, msg.VoiceChatScheduled != nil)
	set(EventVideoChatStarted, msg.VoiceChatStarted != nil)
	set(EventVideoChatEnded, msg.VoiceChatEnded != nil)
	set(EventVideoChatParticipantsInvited, msg.VoiceChatParticipantsInvited != nil)

	return flags
}
