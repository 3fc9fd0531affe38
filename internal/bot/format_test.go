package bot

import (
	"strings"
	"testing"
	"time"

	"planner-agent/internal/model"
	"planner-agent/internal/service"
)

func TestFormatListing(t *testing.T) {
	lists := map[model.Category][]model.Entry{
		model.CategoryTodo: {
			{ID: 1, Category: model.CategoryTodo, Title: "buy <milk>", Tags: []string{"home life", "Home_Life", "shop"}},
		},
		model.CategoryReminder: {
			{ID: 2, Category: model.CategoryReminder, Title: "dentist", Timestamp: "2099-01-01T09:00", Note: "bring card"},
		},
	}

	got := formatListing(lists)
	for _, want := range []string{
		"<b>#1</b> Buy &lt;milk&gt;",
		"🏷 #home_life #shop",
		"<b>#2</b> Dentist · ⏰ 2099-01-01 09:00",
		"📝 bring card",
		"📅 <b>Special days</b>\n— empty",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("listing missing %q:\n%s", want, got)
		}
	}
}

func TestFormatStatus(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, loc)
	next := service.Job{Kind: service.JobDaily, RunAt: time.Date(2026, 10, 18, 7, 0, 0, 0, loc)}

	got := formatStatus(statusInfo{
		Owners:    []model.Owner{{TelegramID: 1, Username: "ann"}, {TelegramID: 2, FirstName: "Bo"}},
		Counts:    map[model.Category]int{model.CategoryTodo: 3, model.CategoryReminder: 2},
		Pending:   []service.Job{{EntryID: 9, RunAt: now.Add(time.Hour), Kind: service.JobOneShot}},
		NextDaily: &next,
		Location:  loc,
		Model:     "gpt-4o-mini",
		Now:       now,
		Uptime:    90 * time.Second,
	})
	for _, want := range []string{
		"Todos: <code>3</code>",
		"Reminders: <code>2</code> (pending jobs: <code>1</code>)",
		"Next morning run: 2026-10-18 07:00",
		"Next reminder: <b>#9</b> at 2026-10-17 13:00",
		"gpt-4o-mini",
		"Owners: @ann, Bo",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("status missing %q:\n%s", want, got)
		}
	}
}
