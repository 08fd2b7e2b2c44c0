package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sysclean-bot/classifier"
	"sysclean-bot/settings"
	"sysclean-bot/stats"
)

// FormatStats renders the /stats reply.
func FormatStats(s stats.Snapshot, v settings.Values, profile classifier.Profile) string {
	var sb strings.Builder
	sb.WriteString("📈 Статистика работы бота\n\n")
	fmt.Fprintf(&sb, "Время работы: %s\n", formatUptime(s.Uptime))
	writeCounters(&sb, s)
	fmt.Fprintf(&sb, "Профиль: %s\n", profile)

	sb.WriteString("\nНастройки:\n")
	for _, f := range settings.Flags {
		fmt.Fprintf(&sb, "• %s: %s\n", settingLabel(f), mark(v.Get(f)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatStatus renders the /status reply. A negative memberCount is shown
// as not available.
func FormatStatus(chat Chat, memberCount int, bot MemberStatus, profile classifier.Profile) string {
	title := chat.Title
	if title == "" {
		title = "-"
	}
	members := "N/A"
	if memberCount >= 0 {
		members = humanize.Comma(int64(memberCount))
	}
	active := "🔴 Неактивен"
	if bot.IsAdmin() && bot.CanDeleteMessages {
		active = "🟢 Активен"
	}

	var sb strings.Builder
	sb.WriteString("📊 Статус бота в чате\n\n")
	sb.WriteString("Информация о чате:\n")
	fmt.Fprintf(&sb, "• Название: %s\n", title)
	fmt.Fprintf(&sb, "• Тип: %s\n", chat.Type)
	fmt.Fprintf(&sb, "• ID: %d\n", chat.ID)
	fmt.Fprintf(&sb, "• Участников: %s\n", members)

	sb.WriteString("\nПрава бота:\n")
	fmt.Fprintf(&sb, "• Статус: %s\n", bot.Status)
	fmt.Fprintf(&sb, "• Администратор: %s\n", mark(bot.IsAdmin()))
	fmt.Fprintf(&sb, "• Удаление сообщений: %s\n", mark(bot.CanDeleteMessages))
	fmt.Fprintf(&sb, "• Просмотр сообщений: %s\n", mark(bot.CanReadMessages))

	fmt.Fprintf(&sb, "\nПрофиль: %s\n", profile)
	fmt.Fprintf(&sb, "Статус работы: %s", active)
	return sb.String()
}

// FormatDailyReport renders the scheduled report. actions holds journal
// counts for the reporting window keyed by action name.
func FormatDailyReport(s stats.Snapshot, actions map[string]int, pruned int64) string {
	var sb strings.Builder
	sb.WriteString("🗓️ Ежедневный отчёт\n\n")
	fmt.Fprintf(&sb, "Работает с %s (%s)\n", s.StartTime.Format(time.DateTime), formatUptime(s.Uptime))
	writeCounters(&sb, s)

	sb.WriteString("\nЗа последние 24 часа:\n")
	fmt.Fprintf(&sb, "• Удалено: %s\n", humanize.Comma(int64(actions["deleted"])))
	fmt.Fprintf(&sb, "• Ошибок удаления: %s\n", humanize.Comma(int64(actions["delete_failed"])))
	fmt.Fprintf(&sb, "• Проанализировано: %s\n", humanize.Comma(int64(actions["observed"])))

	if pruned > 0 {
		fmt.Fprintf(&sb, "\nОчищено записей журнала: %s", humanize.Comma(pruned))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeCounters(sb *strings.Builder, s stats.Snapshot) {
	fmt.Fprintf(sb, "Удалено сообщений: %s\n", humanize.Comma(int64(s.Deleted)))
	fmt.Fprintf(sb, "Ошибок: %s\n", humanize.Comma(int64(s.Errors)))
	fmt.Fprintf(sb, "Эффективность: %.1f%%\n", s.Efficiency*100)
}

func formatUptime(d time.Duration) string {
	p := stats.SplitDuration(d)
	return fmt.Sprintf("%dд %dч %dм %dс", p.Days, p.Hours, p.Minutes, p.Seconds)
}
