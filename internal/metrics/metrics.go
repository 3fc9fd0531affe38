// Package metrics declares the Prometheus collectors of the agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PendingReminders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "planner_pending_reminders",
			Help: "Number of one-shot reminder jobs waiting to fire",
		},
	)

	ReminderSchedules = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_reminder_schedules_total",
			Help: "Reminder schedule requests by outcome",
		},
		[]string{"outcome"}, // "scheduled", "dropped_late", "invalid", "cancelled", "fired"
	)

	DailyNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_daily_notifications_total",
			Help: "Notifications produced by the daily job",
		},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_deliveries_total",
			Help: "Per-recipient delivery attempts by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_delivery_duration_seconds",
			Help:    "Duration of a full notification fan-out",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_store_writes_total",
			Help: "Durable entry store writes by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// Result maps an error to a label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
