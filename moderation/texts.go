package moderation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sysclean-bot/classifier"
	"sysclean-bot/message"
)

const excerptRunes = 100

// ChatLogText is posted to the group after a deletion.
func ChatLogText(event message.EventType) string {
	return fmt.Sprintf("🗑️ Удалено системное сообщение: %s", event)
}

// DeletedNoticeText is sent privately to administrators after a deletion.
func DeletedNoticeText(chatTitle string, event message.EventType) string {
	return fmt.Sprintf("🗑️ В чате %s удалено системное сообщение типа: %s", chatTitle, event)
}

// DeleteFailedNoticeText is sent privately to administrators when deletion
// was refused.
func DeleteFailedNoticeText(chatTitle string) string {
	return fmt.Sprintf("⚠️ Не удалось удалить системное сообщение в чате %s. Проверьте права бота.", chatTitle)
}

// AnalysisText describes how a message was classified, for observe-only mode.
func AnalysisText(s message.Snapshot, r classifier.Result) string {
	sender := s.SenderName
	if sender == "" {
		sender = "Unknown"
	}

	text := "Нет текста"
	if s.HasText() {
		text = excerpt(s.TextValue(), excerptRunes)
	}

	var sb strings.Builder
	sb.WriteString("🔍 Анализ сообщения\n\n")
	fmt.Fprintf(&sb, "Чат: %s\n", s.ChatTitle)
	fmt.Fprintf(&sb, "Отправитель: %s\n", sender)
	fmt.Fprintf(&sb, "Текст: %s\n", text)
	fmt.Fprintf(&sb, "Тип: %s\n", r.EventType)
	fmt.Fprintf(&sb, "Причина: %s", r.Reason)
	if r.Keyword != "" {
		fmt.Fprintf(&sb, " (%q)", r.Keyword)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Системное: %s\n", yesNo(r.IsSystem, "✅ Да", "❌ Нет"))

	sb.WriteString("\nАтрибуты сообщения:\n")
	flags := s.PresentFlags()
	if len(flags) == 0 {
		sb.WriteString("• нет\n")
	}
	for _, f := range flags {
		fmt.Fprintf(&sb, "• %s\n", f)
	}

	sb.WriteString("\nКонтент:\n")
	fmt.Fprintf(&sb, "• Текст: %s\n", yesNo(s.HasText(), "✅", "❌"))
	fmt.Fprintf(&sb, "• Медиа: %s\n", yesNo(s.HasMedia, "✅", "❌"))

	fmt.Fprintf(&sb, "\nРекомендация: %s", yesNo(r.IsSystem, "🗑️ УДАЛИТЬ", "✅ ОСТАВИТЬ"))
	return sb.String()
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func yesNo(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
