package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"planner-agent/internal/config"
	"planner-agent/internal/model"
)

func newTestStore(t *testing.T, repo Repository, sched ReminderScheduler, now time.Time) *EntryStore {
	t.Helper()
	s := NewEntryStore(repo, sched, now.Location(), zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func strPtr(s string) *string { return &s }

func tsPtr(ts model.Timestamp) *model.Timestamp { return &ts }

func TestStoreAddAssignsUniqueIDs(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, &memRepo{}, &callLog{}, now)
	ctx := context.Background()

	a, err := s.Add(ctx, model.CategoryTodo, model.Fields{Title: "one"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	b, err := s.Add(ctx, model.CategoryTodo, model.Fields{Title: "two"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.ID != now.Unix() || b.ID != now.Unix()+1 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}

	list := s.List(model.CategoryTodo)
	if len(list) != 2 || list[0].Title != "one" || list[1].Title != "two" {
		t.Fatalf("list = %+v", list)
	}
}

func TestStoreAddRejectsInvalidInput(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	repo := &memRepo{}
	s := newTestStore(t, repo, &callLog{}, now)
	ctx := context.Background()

	if _, err := s.Add(ctx, model.Category("birthday"), model.Fields{Title: "x"}); !errors.Is(err, model.ErrInvalidCategory) {
		t.Fatalf("got %v, want ErrInvalidCategory", err)
	}
	if _, err := s.Add(ctx, model.CategoryTodo, model.Fields{}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("missing title: got %v", err)
	}
	if _, err := s.Add(ctx, model.CategoryDay, model.Fields{Title: "no date"}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("day without date: got %v", err)
	}
	if _, err := s.Add(ctx, model.CategoryReminder, model.Fields{Title: "bad", Timestamp: "soon"}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("bad timestamp: got %v", err)
	}
	if rows, _ := repo.ListAll(ctx); len(rows) != 0 {
		t.Fatalf("invalid entries persisted: %+v", rows)
	}
}

func TestStoreSchedulesOnlyReminders(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	calls := &callLog{}
	s := newTestStore(t, &memRepo{}, calls, now)

	mustAdd(t, s, model.CategoryTodo, model.Fields{Title: "todo", Timestamp: "2099-01-01T09:00"})
	mustAdd(t, s, model.CategoryReminder, model.Fields{Title: "no time"})
	mustAdd(t, s, model.CategoryReminder, model.Fields{Title: "dentist", Timestamp: "2099-01-01T09:00"})
	mustAdd(t, s, model.CategoryDay, model.Fields{Title: "day", Timestamp: "2099-01-01"})

	if got, want := calls.snapshot(), []string{"schedule:2099-01-01T09:00"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestStoreUpdate(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	calls := &callLog{}
	repo := &memRepo{}
	s := newTestStore(t, repo, calls, now)
	ctx := context.Background()

	e := mustAdd(t, s, model.CategoryReminder, model.Fields{Title: "dentist", Tags: []string{"health"}, Timestamp: "2099-01-01T09:00"})

	ok, err := s.Update(ctx, model.CategoryReminder, e.ID, model.Patch{Title: strPtr("orthodontist"), Timestamp: tsPtr("2099-01-02T09:00")})
	if err != nil || !ok {
		t.Fatalf("update = %v, %v", ok, err)
	}
	got, _ := s.Get(model.CategoryReminder, e.ID)
	if got.Title != "orthodontist" || got.Timestamp != "2099-01-02T09:00" || !reflect.DeepEqual(got.Tags, []string{"health"}) {
		t.Fatalf("entry after update = %+v", got)
	}
	rows, _ := repo.ListAll(ctx)
	if rows[0].Title != "orthodontist" {
		t.Fatalf("update not persisted: %+v", rows[0])
	}

	ok, err = s.Update(ctx, model.CategoryReminder, e.ID, model.Patch{ClearTimestamp: true})
	if err != nil || !ok {
		t.Fatalf("clear = %v, %v", ok, err)
	}

	want := []string{"schedule:2099-01-01T09:00", "schedule:2099-01-02T09:00", "cancel"}
	if got := calls.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}

	ok, err = s.Update(ctx, model.CategoryReminder, 12345, model.Patch{Title: strPtr("x")})
	if err != nil || ok {
		t.Fatalf("update of missing entry = %v, %v", ok, err)
	}
}

func TestStoreDeleteAlwaysCancelsReminders(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	calls := &callLog{}
	s := newTestStore(t, &memRepo{}, calls, now)
	ctx := context.Background()

	e := mustAdd(t, s, model.CategoryReminder, model.Fields{Title: "dentist", Timestamp: "2099-01-01T09:00"})

	ok, err := s.Delete(ctx, model.CategoryReminder, e.ID)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	ok, err = s.Delete(ctx, model.CategoryReminder, e.ID)
	if err != nil || ok {
		t.Fatalf("second delete = %v, %v", ok, err)
	}
	if got := calls.snapshot(); !reflect.DeepEqual(got, []string{"schedule:2099-01-01T09:00", "cancel", "cancel"}) {
		t.Fatalf("calls = %v", got)
	}
	if n := len(s.List(model.CategoryReminder)); n != 0 {
		t.Fatalf("list = %d entries", n)
	}
}

func TestStoreNonReminderChangesNeverTouchScheduler(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	calls := &callLog{}
	s := newTestStore(t, &memRepo{}, calls, now)
	ctx := context.Background()

	todo := mustAdd(t, s, model.CategoryTodo, model.Fields{Title: "buy milk", Timestamp: "2099-01-01T09:00"})
	day := mustAdd(t, s, model.CategoryDay, model.Fields{Title: "exam", Timestamp: "2099-01-01"})
	anni := mustAdd(t, s, model.CategoryAnniversary, model.Fields{Title: "wedding", Timestamp: "2020-05-20"})

	if ok, err := s.Update(ctx, model.CategoryTodo, todo.ID, model.Patch{Timestamp: tsPtr("2099-02-01T09:00")}); err != nil || !ok {
		t.Fatalf("update todo = %v, %v", ok, err)
	}
	for _, target := range []struct {
		category model.Category
		id       int64
	}{
		{model.CategoryTodo, todo.ID},
		{model.CategoryDay, day.ID},
		{model.CategoryAnniversary, anni.ID},
		{model.CategoryTodo, todo.ID},
	} {
		if _, err := s.Delete(ctx, target.category, target.id); err != nil {
			t.Fatalf("delete %s %d: %v", target.category, target.id, err)
		}
	}

	if got := calls.snapshot(); len(got) != 0 {
		t.Fatalf("scheduler calls = %v, want none", got)
	}
}

func TestStoreFailedWriteLeavesStateAlone(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	calls := &callLog{}
	repo := &memRepo{}
	s := newTestStore(t, repo, calls, now)
	ctx := context.Background()

	e := mustAdd(t, s, model.CategoryReminder, model.Fields{Title: "dentist", Timestamp: "2099-01-01T09:00"})
	repo.failing = true

	if _, err := s.Add(ctx, model.CategoryReminder, model.Fields{Title: "other", Timestamp: "2099-01-01T10:00"}); !errors.Is(err, errDiskFull) {
		t.Fatalf("add: got %v", err)
	}
	if _, err := s.Update(ctx, model.CategoryReminder, e.ID, model.Patch{Timestamp: tsPtr("2099-05-05T09:00")}); !errors.Is(err, errDiskFull) {
		t.Fatalf("update: got %v", err)
	}
	if _, err := s.Delete(ctx, model.CategoryReminder, e.ID); !errors.Is(err, errDiskFull) {
		t.Fatalf("delete: got %v", err)
	}

	list := s.List(model.CategoryReminder)
	if len(list) != 1 || list[0].Timestamp != "2099-01-01T09:00" {
		t.Fatalf("memory changed after failed writes: %+v", list)
	}
	if got := calls.snapshot(); len(got) != 1 {
		t.Fatalf("scheduler touched after failed writes: %v", got)
	}
}

func TestStoreListReturnsCopy(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, &memRepo{}, &callLog{}, now)
	mustAdd(t, s, model.CategoryTodo, model.Fields{Title: "one", Tags: []string{"a"}})

	list := s.List(model.CategoryTodo)
	list[0].Title = "changed"
	list[0].Tags[0] = "b"

	again := s.List(model.CategoryTodo)
	if again[0].Title != "one" || again[0].Tags[0] != "a" {
		t.Fatalf("store mutated through List: %+v", again[0])
	}
}

func TestStoreLoadSeedsIDs(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	future := now.Unix() + 500
	repo := &memRepo{rows: []model.Entry{
		{ID: 10, Category: model.CategoryTodo, Title: "old"},
		{ID: future, Category: model.CategoryDay, Title: "clock skew", Timestamp: "2027-01-01"},
	}}
	s := newTestStore(t, repo, &callLog{}, now)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	counts := s.Counts()
	if counts[model.CategoryTodo] != 1 || counts[model.CategoryDay] != 1 {
		t.Fatalf("counts = %v", counts)
	}

	e := mustAdd(t, s, model.CategoryTodo, model.Fields{Title: "new"})
	if e.ID != future+1 {
		t.Fatalf("id = %d, want %d", e.ID, future+1)
	}
}

func TestStoreWithScheduler(t *testing.T) {
	loc := shanghai(t)
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, loc)
	reminders, _ := newTestReminders(t, now, config.LatePolicyDrop, nil)
	s := newTestStore(t, &memRepo{}, reminders, now)
	ctx := context.Background()

	e := mustAdd(t, s, model.CategoryReminder, model.Fields{Title: "dentist", Timestamp: "2099-01-01T09:00"})

	// Two updates in a row leave a single job for the latest time.
	for _, ts := range []model.Timestamp{"2099-01-03T09:00", "2099-01-04T09:00"} {
		if ok, err := s.Update(ctx, model.CategoryReminder, e.ID, model.Patch{Timestamp: tsPtr(ts)}); err != nil || !ok {
			t.Fatalf("update = %v, %v", ok, err)
		}
	}
	pending := reminders.Pending()
	if len(pending) != 1 || !pending[0].RunAt.Equal(time.Date(2099, 1, 4, 8, 45, 0, 0, loc)) {
		t.Fatalf("pending = %+v", pending)
	}

	if ok, err := s.Delete(ctx, model.CategoryReminder, e.ID); err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if n := len(reminders.Pending()); n != 0 {
		t.Fatalf("pending after delete = %d", n)
	}
}

func TestDailyJobGreetsDayDatedToday(t *testing.T) {
	loc := shanghai(t)
	now := time.Date(2026, 10, 17, 7, 0, 0, 0, loc)
	reminders, _ := newTestReminders(t, now, config.LatePolicyDrop, fakeHolidays{})
	s := newTestStore(t, &memRepo{}, reminders, now)

	mustAdd(t, s, model.CategoryDay, model.Fields{Title: "Graduation", Timestamp: model.NewDate(now)})

	got := reminders.RunDaily(context.Background(), s)
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].Kind != KindOccasion || !containsAll(got[0].Text, "Graduation") {
		t.Fatalf("notification %+v", got[0])
	}
}

func mustAdd(t *testing.T, s *EntryStore, c model.Category, f model.Fields) *model.Entry {
	t.Helper()
	e, err := s.Add(context.Background(), c, f)
	if err != nil {
		t.Fatalf("add %s: %v", c, err)
	}
	return e
}
