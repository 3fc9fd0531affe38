package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"planner-agent/internal/model"
)

var errDiskFull = errors.New("disk full")

// memRepo is an in-memory Repository.
type memRepo struct {
	mu      sync.Mutex
	rows    []model.Entry
	failing bool
}

func (r *memRepo) ListAll(context.Context) ([]model.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Entry, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func (r *memRepo) Insert(_ context.Context, e model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errDiskFull
	}
	r.rows = append(r.rows, e.Clone())
	return nil
}

func (r *memRepo) Save(_ context.Context, e model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errDiskFull
	}
	for i := range r.rows {
		if r.rows[i].Category == e.Category && r.rows[i].ID == e.ID {
			r.rows[i] = e.Clone()
			return nil
		}
	}
	return errors.New("not found")
}

func (r *memRepo) Delete(_ context.Context, category model.Category, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errDiskFull
	}
	for i := range r.rows {
		if r.rows[i].Category == category && r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

// callLog records scheduler calls made by the store.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) ScheduleReminder(e model.Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "schedule:"+string(e.Timestamp))
	return true
}

func (c *callLog) CancelReminder(int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "cancel")
}

func (c *callLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type recordingDeliverer struct {
	mu   sync.Mutex
	got  []Notification
	seen chan Notification
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{seen: make(chan Notification, 16)}
}

func (d *recordingDeliverer) Deliver(_ context.Context, n Notification) DeliveryReport {
	d.mu.Lock()
	d.got = append(d.got, n)
	d.mu.Unlock()
	d.seen <- n
	return DeliveryReport{ID: "test", Delivered: 1}
}

type fakeHolidays []string

func (f fakeHolidays) HolidayNames(time.Time) []string { return f }

type fakeGreeter struct{}

func (fakeGreeter) GenerateGreeting(_ context.Context, names []string) string {
	if len(names) == 0 {
		return "Good morning!"
	}
	return "Good morning! Today: " + names[0]
}

type staticLister map[model.Category][]model.Entry

func (s staticLister) List(c model.Category) []model.Entry { return s[c] }
