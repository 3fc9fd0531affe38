package service

import (
	"time"

	"github.com/rs/zerolog"

	"planner-agent/internal/model"
)

// Rehydrate re-registers every reminder whose event is still ahead of now.
// It runs once at startup, after the store is loaded. Entries with unreadable
// timestamps are logged and skipped. Returns the number of pending jobs it
// created; running it twice leaves the same set pending.
func Rehydrate(entries EntryLister, reminders ReminderScheduler, now time.Time, loc *time.Location, logger zerolog.Logger) int {
	log := logger.With().Str("component", "rehydrate").Logger()

	scheduled, skipped := 0, 0
	for _, entry := range entries.List(model.CategoryReminder) {
		if entry.Timestamp.IsZero() {
			continue
		}
		at, err := entry.Timestamp.Time(loc)
		if err != nil {
			skipped++
			log.Warn().Err(err).Int64("entry_id", entry.ID).Msg("skipping reminder")
			continue
		}
		if !at.After(now) {
			continue
		}
		if reminders.ScheduleReminder(entry) {
			scheduled++
		}
	}

	log.Info().Int("scheduled", scheduled).Int("skipped", skipped).Msg("reminders rehydrated")
	return scheduled
}
