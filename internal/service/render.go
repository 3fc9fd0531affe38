package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"planner-agent/internal/model"
)

// RenderReminder builds the HTML body of a fired reminder.
func RenderReminder(entry model.Entry, eventAt time.Time) string {
	var sb strings.Builder
	sb.WriteString("🔔 <b>REMINDER</b>\n\n")
	sb.WriteString(fmt.Sprintf("📌 <b>%s</b>\n", escape(entry.Title)))
	sb.WriteString(fmt.Sprintf("⏰ %s\n", eventAt.Format("2006-01-02 15:04")))
	if entry.Note != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", escape(entry.Note)))
	}
	if tags := model.HashTags(entry.Tags); len(tags) > 0 {
		sb.WriteString(fmt.Sprintf("🏷 %s\n", escape(strings.Join(tags, " "))))
	}
	return strings.TrimSpace(sb.String())
}

// RenderOccasion builds the morning message for a day or anniversary entry.
// The entry title is always part of the body, whatever the greeting says.
func RenderOccasion(entry model.Entry, greeting string, today time.Time, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("🌅 <b>Morning Greeting</b>\n\n")
	if greeting = strings.TrimSpace(greeting); greeting != "" {
		sb.WriteString(escape(greeting))
		sb.WriteString("\n\n")
	}
	icon := "📅"
	if entry.Category == model.CategoryAnniversary {
		icon = "🎉"
	}
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>", icon, escape(entry.Title)))
	if entry.Category == model.CategoryAnniversary {
		if since, err := entry.Timestamp.Time(loc); err == nil {
			if years := today.In(loc).Year() - since.Year(); years > 0 {
				sb.WriteString(fmt.Sprintf(" · %d %s", years, plural(years, "year", "years")))
			}
		}
	}
	if entry.Note != "" {
		sb.WriteString(fmt.Sprintf("\n📝 %s", escape(entry.Note)))
	}
	return sb.String()
}

// RenderHoliday builds the morning message for a calendar holiday.
func RenderHoliday(name, greeting string) string {
	var sb strings.Builder
	sb.WriteString("🌅 <b>Morning Greeting</b>\n\n")
	if greeting = strings.TrimSpace(greeting); greeting != "" {
		sb.WriteString(escape(greeting))
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("🎊 <b>%s</b>", escape(name)))
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func escape(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
