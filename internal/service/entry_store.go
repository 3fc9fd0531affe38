package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"planner-agent/internal/metrics"
	"planner-agent/internal/model"
)

// ErrInvalidEntry wraps field validation failures.
var ErrInvalidEntry = errors.New("invalid entry")

// Repository is the durable side of the entry store.
type Repository interface {
	ListAll(ctx context.Context) ([]model.Entry, error)
	Insert(ctx context.Context, entry model.Entry) error
	Save(ctx context.Context, entry model.Entry) error
	Delete(ctx context.Context, category model.Category, id int64) error
}

// ReminderScheduler receives schedule and cancel requests after durable writes.
type ReminderScheduler interface {
	ScheduleReminder(entry model.Entry) bool
	CancelReminder(id int64)
}

// EntryStore holds the four category collections in memory, backed by a
// Repository. Every mutation is written to the repository before memory
// changes; reminder jobs are touched only after a successful write.
type EntryStore struct {
	repo      Repository
	scheduler ReminderScheduler
	loc       *time.Location
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	entries map[model.Category][]model.Entry
	lastID  int64
}

func NewEntryStore(repo Repository, scheduler ReminderScheduler, loc *time.Location, logger zerolog.Logger) *EntryStore {
	if loc == nil {
		loc = time.Local
	}
	return &EntryStore{
		repo:      repo,
		scheduler: scheduler,
		loc:       loc,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "store").Logger(),
		now:       time.Now,
		entries:   make(map[model.Category][]model.Entry, len(model.Categories)),
	}
}

// Load replaces the in-memory collections with the repository contents.
func (s *EntryStore) Load(ctx context.Context) error {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[model.Category][]model.Entry, len(model.Categories))
	s.lastID = 0
	for _, e := range rows {
		if !e.Category.Valid() {
			s.logger.Warn().Str("category", string(e.Category)).Int64("entry_id", e.ID).Msg("skipping entry with unknown category")
			continue
		}
		s.entries[e.Category] = append(s.entries[e.Category], e)
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}
	s.logger.Info().Int("entries", len(rows)).Msg("entries loaded")
	return nil
}

// Add creates an entry in category and persists it.
func (s *EntryStore) Add(ctx context.Context, category model.Category, fields model.Fields) (*model.Entry, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidCategory, category)
	}
	if err := s.validate.Struct(fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := model.NewEntry(category, s.nextIDLocked(), fields)
	if err := s.checkTimestamp(entry); err != nil {
		return nil, err
	}

	err := s.repo.Insert(ctx, entry)
	metrics.StoreWrites.WithLabelValues("add", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("add %s entry: %w", category, err)
	}
	s.lastID = entry.ID
	s.entries[category] = append(s.entries[category], entry)

	if category.Scheduled() && !entry.Timestamp.IsZero() {
		s.scheduler.ScheduleReminder(entry)
	}
	out := entry.Clone()
	return &out, nil
}

// Update merges patch into the entry. It reports false when no such entry
// exists.
func (s *EntryStore) Update(ctx context.Context, category model.Category, id int64, patch model.Patch) (bool, error) {
	if !category.Valid() {
		return false, fmt.Errorf("%w: %q", model.ErrInvalidCategory, category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(category, id)
	if idx < 0 {
		return false, nil
	}
	updated := s.entries[category][idx].Apply(patch)
	if err := s.validate.Struct(model.Fields{Title: updated.Title, Note: updated.Note, Tags: updated.Tags}); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if err := s.checkTimestamp(updated); err != nil {
		return false, err
	}

	err := s.repo.Save(ctx, updated)
	metrics.StoreWrites.WithLabelValues("update", metrics.Result(err)).Inc()
	if err != nil {
		return false, fmt.Errorf("update %s entry %d: %w", category, id, err)
	}
	s.entries[category][idx] = updated

	if category.Scheduled() {
		if updated.Timestamp.IsZero() {
			s.scheduler.CancelReminder(id)
		} else {
			s.scheduler.ScheduleReminder(updated)
		}
	}
	return true, nil
}

// Delete removes an entry. It reports false when no such entry exists.
// Reminder jobs are cancelled either way.
func (s *EntryStore) Delete(ctx context.Context, category model.Category, id int64) (bool, error) {
	if !category.Valid() {
		return false, fmt.Errorf("%w: %q", model.ErrInvalidCategory, category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(category, id)
	if idx < 0 {
		if category.Scheduled() {
			s.scheduler.CancelReminder(id)
		}
		return false, nil
	}

	err := s.repo.Delete(ctx, category, id)
	metrics.StoreWrites.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		return false, fmt.Errorf("delete %s entry %d: %w", category, id, err)
	}
	list := s.entries[category]
	s.entries[category] = append(list[:idx:idx], list[idx+1:]...)

	if category.Scheduled() {
		s.scheduler.CancelReminder(id)
	}
	return true, nil
}

// List returns a copy of the collection in insertion order. Unknown
// categories yield nil.
func (s *EntryStore) List(category model.Category) []model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[category]
	out := make([]model.Entry, len(list))
	for i, e := range list {
		out[i] = e.Clone()
	}
	return out
}

// Get returns one entry.
func (s *EntryStore) Get(category model.Category, id int64) (model.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(category, id)
	if idx < 0 {
		return model.Entry{}, false
	}
	return s.entries[category][idx].Clone(), true
}

// Counts reports the size of every collection.
func (s *EntryStore) Counts() map[model.Category]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Category]int, len(model.Categories))
	for _, c := range model.Categories {
		out[c] = len(s.entries[c])
	}
	return out
}

func (s *EntryStore) indexLocked(category model.Category, id int64) int {
	for i, e := range s.entries[category] {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// nextIDLocked derives an id from the clock, bumped past the last id handed
// out so ids stay unique within a run even for bursts in the same second.
func (s *EntryStore) nextIDLocked() int64 {
	id := s.now().Unix()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	return id
}

func (s *EntryStore) checkTimestamp(e model.Entry) error {
	if e.Timestamp.IsZero() {
		if e.Category.DateOnly() {
			return fmt.Errorf("%w: %s entry needs a date", ErrInvalidEntry, e.Category)
		}
		return nil
	}
	if _, err := e.Timestamp.Time(s.loc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}
