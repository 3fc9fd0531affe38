package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"planner-agent/internal/config"
	"planner-agent/internal/metrics"
	"planner-agent/internal/model"
)

// HolidayLookup names the holidays that fall on a day.
type HolidayLookup interface {
	HolidayNames(day time.Time) []string
}

// Greeter writes a short greeting for the given occasions. It never fails;
// implementations fall back to a fixed sentence.
type Greeter interface {
	GenerateGreeting(ctx context.Context, names []string) string
}

// EntryLister is the read side of the entry store used by the daily job.
type EntryLister interface {
	List(category model.Category) []model.Entry
}

// Deliverer hands a notification to the owners.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) DeliveryReport
}

// JobKind distinguishes one-shot reminder jobs from the recurring daily job.
type JobKind string

const (
	JobOneShot JobKind = "one-shot"
	JobDaily   JobKind = "daily-recurring"
)

// Job describes a pending scheduled job.
type Job struct {
	EntryID int64
	RunAt   time.Time
	Kind    JobKind
}

// ReminderConfig tunes the reminder service.
type ReminderConfig struct {
	Location   *time.Location
	DailyAt    string
	LeadTime   time.Duration
	LatePolicy string
}

type pendingJob struct {
	token   uint64
	cronID  cron.EntryID
	runAt   time.Time
	eventAt time.Time
	entry   model.Entry
}

// ReminderService keeps the pending one-shot reminder jobs, at most one per
// entry id, and the recurring morning job.
type ReminderService struct {
	scheduler *SchedulerService
	deliverer Deliverer
	holidays  HolidayLookup
	greeter   Greeter
	cfg       ReminderConfig
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	jobs    map[int64]pendingJob
	seq     uint64
	dailyID cron.EntryID
	daily   bool
}

func NewReminderService(
	scheduler *SchedulerService,
	deliverer Deliverer,
	holidays HolidayLookup,
	greeter Greeter,
	cfg ReminderConfig,
	logger zerolog.Logger,
) *ReminderService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DailyAt == "" {
		cfg.DailyAt = "07:00"
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 15 * time.Minute
	}
	if cfg.LatePolicy == "" {
		cfg.LatePolicy = config.LatePolicyDrop
	}
	return &ReminderService{
		scheduler: scheduler,
		deliverer: deliverer,
		holidays:  holidays,
		greeter:   greeter,
		cfg:       cfg,
		logger:    logger.With().Str("component", "reminders").Logger(),
		now:       time.Now,
		jobs:      make(map[int64]pendingJob),
	}
}

// ScheduleReminder registers a one-shot job firing LeadTime before the entry's
// timestamp, replacing any job already pending for the entry. It reports
// whether a job is pending afterwards. A stale job is removed even when the
// new timestamp is unusable.
func (s *ReminderService) ScheduleReminder(entry model.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(entry.ID)

	log := s.logger.With().Int64("entry_id", entry.ID).Logger()
	if !entry.Category.Scheduled() {
		return false
	}
	eventAt, err := entry.Timestamp.Time(s.cfg.Location)
	if err != nil {
		metrics.ReminderSchedules.WithLabelValues("invalid").Inc()
		log.Warn().Err(err).Msg("reminder not scheduled")
		return false
	}

	now := s.now()
	runAt := eventAt.Add(-s.cfg.LeadTime)
	if !runAt.After(now) {
		if s.cfg.LatePolicy != config.LatePolicyFire || !eventAt.After(now) {
			metrics.ReminderSchedules.WithLabelValues("dropped_late").Inc()
			log.Info().Time("event_at", eventAt).Time("run_at", runAt).Msg("late reminder dropped")
			return false
		}
		runAt = now.Add(time.Second)
	}

	s.seq++
	token := s.seq
	id := entry.ID
	cronID := s.scheduler.ScheduleOnce(runAt, func() { s.fire(id, token) })
	s.jobs[id] = pendingJob{
		token:   token,
		cronID:  cronID,
		runAt:   runAt,
		eventAt: eventAt,
		entry:   entry.Clone(),
	}
	metrics.ReminderSchedules.WithLabelValues("scheduled").Inc()
	metrics.PendingReminders.Set(float64(len(s.jobs)))
	log.Debug().Time("run_at", runAt).Msg("reminder scheduled")
	return true
}

// CancelReminder drops the pending job for id, if any.
func (s *ReminderService) CancelReminder(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(id) {
		metrics.ReminderSchedules.WithLabelValues("cancelled").Inc()
		s.logger.Debug().Int64("entry_id", id).Msg("reminder cancelled")
	}
}

func (s *ReminderService) removeLocked(id int64) bool {
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	delete(s.jobs, id)
	s.scheduler.Remove(job.cronID)
	metrics.PendingReminders.Set(float64(len(s.jobs)))
	return true
}

func (s *ReminderService) fire(id int64, token uint64) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.token != token {
		s.mu.Unlock()
		return
	}
	s.removeLocked(id)
	s.mu.Unlock()

	metrics.ReminderSchedules.WithLabelValues("fired").Inc()
	report := s.deliverer.Deliver(context.Background(), Notification{
		EntryID: id,
		Kind:    KindReminder,
		Text:    RenderReminder(job.entry, job.eventAt),
	})
	if report.Err != nil {
		s.logger.Error().Err(report.Err).Int64("entry_id", id).Msg("reminder not delivered")
	}
}

// StartDailyJob registers the morning job and starts the cron runner. Later
// calls do nothing.
func (s *ReminderService) StartDailyJob(entries EntryLister) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daily {
		return nil
	}
	id, err := s.scheduler.ScheduleDaily(s.cfg.DailyAt, func() { s.runDailyJob(entries) })
	if err != nil {
		return err
	}
	s.dailyID = id
	s.daily = true
	s.scheduler.Start()
	s.logger.Info().Str("at", s.cfg.DailyAt).Str("tz", s.cfg.Location.String()).Msg("daily job started")
	return nil
}

func (s *ReminderService) runDailyJob(entries EntryLister) {
	ctx := context.Background()
	for _, n := range s.RunDaily(ctx, entries) {
		report := s.deliverer.Deliver(ctx, n)
		if report.Err != nil {
			s.logger.Error().Err(report.Err).Str("kind", string(n.Kind)).Msg("daily notification not delivered")
		}
	}
}

// RunDaily builds today's notifications: one per holiday, then one per day or
// anniversary entry falling on today. Entries with unreadable dates are
// skipped.
func (s *ReminderService) RunDaily(ctx context.Context, entries EntryLister) []Notification {
	today := s.now().In(s.cfg.Location)
	var out []Notification

	if s.holidays != nil {
		for _, name := range s.holidays.HolidayNames(today) {
			out = append(out, Notification{
				Kind: KindHoliday,
				Text: RenderHoliday(name, s.greet(ctx, name)),
			})
		}
	}

	for _, category := range []model.Category{model.CategoryDay, model.CategoryAnniversary} {
		for _, entry := range entries.List(category) {
			match, err := entry.OccursOn(today, s.cfg.Location)
			if err != nil {
				s.logger.Warn().Err(err).Int64("entry_id", entry.ID).Str("category", string(category)).Msg("skipping entry")
				continue
			}
			if !match {
				continue
			}
			out = append(out, Notification{
				EntryID: entry.ID,
				Kind:    KindOccasion,
				Text:    RenderOccasion(entry, s.greet(ctx, entry.Title), today, s.cfg.Location),
			})
		}
	}

	metrics.DailyNotifications.Add(float64(len(out)))
	s.logger.Info().Int("notifications", len(out)).Str("day", today.Format(model.DateLayout)).Msg("daily job evaluated")
	return out
}

func (s *ReminderService) greet(ctx context.Context, name string) string {
	if s.greeter == nil {
		return ""
	}
	return s.greeter.GenerateGreeting(ctx, []string{name})
}

// Pending lists the pending one-shot jobs ordered by fire time.
func (s *ReminderService) Pending() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for id, job := range s.jobs {
		out = append(out, Job{EntryID: id, RunAt: job.runAt, Kind: JobOneShot})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RunAt.Equal(out[j].RunAt) {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].RunAt.Before(out[j].RunAt)
	})
	return out
}

// PendingFor returns the pending job of an entry.
func (s *ReminderService) PendingFor(id int64) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return Job{EntryID: id, RunAt: job.runAt, Kind: JobOneShot}, true
}

// NextDaily reports when the morning job runs next.
func (s *ReminderService) NextDaily() (Job, bool) {
	s.mu.Lock()
	started := s.daily
	s.mu.Unlock()
	if !started {
		return Job{}, false
	}
	hour, minute, err := config.ParseClock(s.cfg.DailyAt)
	if err != nil {
		return Job{}, false
	}
	return Job{RunAt: nextDaily(s.now(), hour, minute, s.cfg.Location), Kind: JobDaily}, true
}

// Location is the zone reminders and the daily job are evaluated in.
func (s *ReminderService) Location() *time.Location {
	return s.cfg.Location
}

// Stop halts the cron runner and waits for jobs in flight.
func (s *ReminderService) Stop() {
	s.scheduler.Stop()
}
