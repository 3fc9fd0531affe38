package service

import (
	"strings"
	"testing"
	"time"

	"planner-agent/internal/model"
)

func TestRenderReminder(t *testing.T) {
	loc := shanghai(t)
	entry := model.NewEntry(model.CategoryReminder, 1, model.Fields{
		Title: "Call <mom>",
		Note:  "about the weekend",
		Tags:  []string{"family", "Family", "weekly call"},
	})
	got := RenderReminder(entry, time.Date(2099, 1, 1, 9, 0, 0, 0, loc))

	for _, want := range []string{
		"<b>Call &lt;mom&gt;</b>",
		"2099-01-01 09:00",
		"about the weekend",
		"#family #weekly_call",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("reminder body missing %q:\n%s", want, got)
		}
	}
}

func TestRenderOccasionAnniversaryYears(t *testing.T) {
	loc := shanghai(t)
	today := time.Date(2026, 5, 20, 7, 0, 0, 0, loc)
	tests := []struct {
		name  string
		since model.Timestamp
		want  string
	}{
		{"one year", "2025-05-20", "· 1 year"},
		{"many years", "2016-05-20", "· 10 years"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := model.NewEntry(model.CategoryAnniversary, 2, model.Fields{Title: "Wedding", Timestamp: tt.since})
			got := RenderOccasion(entry, "Happy day!", today, loc)
			if !strings.Contains(got, "Wedding") || !strings.Contains(got, tt.want) {
				t.Fatalf("got %q, want title and %q", got, tt.want)
			}
			if !strings.Contains(got, "Happy day!") {
				t.Fatalf("greeting missing: %q", got)
			}
		})
	}
}

func TestRenderOccasionEmptyGreetingKeepsTitle(t *testing.T) {
	loc := shanghai(t)
	entry := model.NewEntry(model.CategoryDay, 3, model.Fields{Title: "Exam", Timestamp: "2026-05-20"})
	got := RenderOccasion(entry, "   ", time.Date(2026, 5, 20, 7, 0, 0, 0, loc), loc)
	if !strings.Contains(got, "📅 <b>Exam</b>") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "year") {
		t.Fatalf("day entries carry no year count: %q", got)
	}
}

func TestRenderHoliday(t *testing.T) {
	got := RenderHoliday("Mid-Autumn Festival", "")
	if !strings.HasSuffix(got, "🎊 <b>Mid-Autumn Festival</b>") {
		t.Fatalf("got %q", got)
	}
}
