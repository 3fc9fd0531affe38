package service

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"planner-agent/internal/config"
	"planner-agent/internal/model"
)

func TestRehydrateIsIdempotent(t *testing.T) {
	loc := shanghai(t)
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, loc)
	reminders, _ := newTestReminders(t, now, config.LatePolicyDrop, nil)

	lister := staticLister{model.CategoryReminder: {
		reminder(1, "2099-01-01T09:00"),
		reminder(2, "2099-06-01T09:00"),
		reminder(3, "2030-01-01T09:00"),
		reminder(4, "2026-10-17T09:00"),
		// Event still ahead but its notification point has passed.
		reminder(5, model.NewDateTime(now.Add(10*time.Minute))),
		reminder(6, "not a time"),
		reminder(7, ""),
	}}

	first := Rehydrate(lister, reminders, now, loc, zerolog.Nop())
	second := Rehydrate(lister, reminders, now, loc, zerolog.Nop())
	if first != 3 || second != 3 {
		t.Fatalf("scheduled %d then %d, want 3 both times", first, second)
	}
	if n := len(reminders.Pending()); n != 3 {
		t.Fatalf("pending = %d, want 3", n)
	}
	if n := len(reminders.scheduler.cron.Entries()); n != 3 {
		t.Fatalf("cron entries = %d, want 3", n)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
