package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"planner-agent/internal/model"
	"planner-agent/internal/service"
)

// maxMessageLen is Telegram's limit for one text message.
const maxMessageLen = 4096

var categoryTitles = map[model.Category]string{
	model.CategoryTodo:        "📝 <b>Todos</b>",
	model.CategoryReminder:    "🔔 <b>Reminders</b>",
	model.CategoryDay:         "📅 <b>Special days</b>",
	model.CategoryAnniversary: "🎉 <b>Anniversaries</b>",
}

// formatListing renders every category for /listall.
func formatListing(lists map[model.Category][]model.Entry) string {
	var b strings.Builder
	b.WriteString("🗂 <b>All entries</b>\n")
	for _, category := range model.Categories {
		b.WriteString("\n")
		b.WriteString(categoryTitles[category])
		b.WriteString("\n")
		entries := lists[category]
		if len(entries) == 0 {
			b.WriteString("— empty\n")
			continue
		}
		for _, e := range entries {
			b.WriteString(formatEntry(e))
		}
	}
	return strings.TrimSpace(b.String())
}

func formatEntry(e model.Entry) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("• <b>#%d</b> %s", e.ID, escape(normalizeTitle(e.Title))))
	if !e.Timestamp.IsZero() {
		b.WriteString(fmt.Sprintf(" · ⏰ %s", escape(strings.Replace(string(e.Timestamp), "T", " ", 1))))
	}
	b.WriteByte('\n')
	if e.Note != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(e.Note)))
	}
	if tags := model.HashTags(e.Tags); len(tags) > 0 {
		b.WriteString(fmt.Sprintf("   🏷 %s\n", escape(strings.Join(tags, " "))))
	}
	return b.String()
}

type statusInfo struct {
	Owners    []model.Owner
	Counts    map[model.Category]int
	Pending   []service.Job
	NextDaily *service.Job
	Location  *time.Location
	Model     string
	Now       time.Time
	Uptime    time.Duration
}

func formatStatus(s statusInfo) string {
	var b strings.Builder
	b.WriteString("🟢 <b>Planner agent</b>\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━\n")
	if s.Model != "" {
		b.WriteString(fmt.Sprintf("🤖 Model: <code>%s</code>\n", escape(s.Model)))
	}
	b.WriteString(fmt.Sprintf("⏰ Scheduler: active (%s)\n", escape(s.Location.String())))
	b.WriteString(fmt.Sprintf("📅 Date: %s\n", s.Now.In(s.Location).Format("2006-01-02 15:04")))
	if s.NextDaily != nil {
		b.WriteString(fmt.Sprintf("🌅 Next morning run: %s\n", s.NextDaily.RunAt.In(s.Location).Format("2006-01-02 15:04")))
	}
	b.WriteString(fmt.Sprintf("⌛ Uptime: %s\n", s.Uptime.Truncate(time.Second)))
	if len(s.Owners) > 0 {
		labels := make([]string, 0, len(s.Owners))
		for _, o := range s.Owners {
			labels = append(labels, escape(o.Label()))
		}
		b.WriteString(fmt.Sprintf("👤 Owners: %s\n", strings.Join(labels, ", ")))
	}
	b.WriteString("━━━━━━━━━━━━━━━━━━\n")
	b.WriteString("<b>Entries</b>\n")
	b.WriteString(fmt.Sprintf("• Todos: <code>%d</code>\n", s.Counts[model.CategoryTodo]))
	b.WriteString(fmt.Sprintf("• Reminders: <code>%d</code> (pending jobs: <code>%d</code>)\n", s.Counts[model.CategoryReminder], len(s.Pending)))
	b.WriteString(fmt.Sprintf("• Special days: <code>%d</code>\n", s.Counts[model.CategoryDay]))
	b.WriteString(fmt.Sprintf("• Anniversaries: <code>%d</code>", s.Counts[model.CategoryAnniversary]))
	if len(s.Pending) > 0 {
		next := s.Pending[0]
		b.WriteString(fmt.Sprintf("\n\n🔜 Next reminder: <b>#%d</b> at %s", next.EntryID, next.RunAt.In(s.Location).Format("2006-01-02 15:04")))
	}
	return b.String()
}

// splitMessage cuts text into chunks Telegram accepts, preferring line
// boundaries.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
