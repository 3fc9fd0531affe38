package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"planner-agent/internal/metrics"
)

// ErrBridgeClosed is reported by Deliver after Close.
var ErrBridgeClosed = errors.New("delivery bridge closed")

// Sender is the outbound messaging channel.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Notification is one rendered message for the owners.
type Notification struct {
	// EntryID is zero for holiday greetings.
	EntryID int64
	Kind    NotificationKind
	Text    string
}

// NotificationKind says what produced a notification.
type NotificationKind string

const (
	KindReminder NotificationKind = "reminder"
	KindOccasion NotificationKind = "occasion"
	KindHoliday  NotificationKind = "holiday"
)

// DeliveryReport summarizes one fan-out.
type DeliveryReport struct {
	ID        string
	Delivered int
	Failed    int
	// Err is set when the notification never reached the worker.
	Err error
}

// BridgeConfig configures the delivery bridge.
type BridgeConfig struct {
	Recipients []int64
	// Timeout bounds each recipient's send. Default: 15s.
	Timeout time.Duration
	// QueueSize is the number of notifications that may wait for the worker.
	QueueSize int
}

// DeliveryBridge owns a dedicated worker goroutine that performs sends. Timer
// callbacks hand notifications over a channel and block until the fan-out is
// done, so a slow send never runs on the bot's update loop and the cron
// goroutine never shares state with it.
type DeliveryBridge struct {
	sender     Sender
	recipients []int64
	timeout    time.Duration
	logger     zerolog.Logger

	queue chan deliveryTask
	done  chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

type deliveryTask struct {
	ctx    context.Context
	n      Notification
	result chan DeliveryReport
}

func NewDeliveryBridge(sender Sender, cfg BridgeConfig, logger zerolog.Logger) *DeliveryBridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &DeliveryBridge{
		sender:     sender,
		recipients: append([]int64(nil), cfg.Recipients...),
		timeout:    cfg.Timeout,
		logger:     logger.With().Str("component", "delivery").Logger(),
		queue:      make(chan deliveryTask, cfg.QueueSize),
		done:       make(chan struct{}),
	}
}

// Start launches the worker. Deliver calls it on demand, so explicit use is
// optional.
func (b *DeliveryBridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.closed {
		return
	}
	b.started = true
	go b.run()
}

// Deliver sends n to every recipient and returns once all sends finished or
// failed. Per-recipient failures are logged and counted, never returned.
func (b *DeliveryBridge) Deliver(ctx context.Context, n Notification) DeliveryReport {
	b.Start()

	task := deliveryTask{ctx: ctx, n: n, result: make(chan DeliveryReport, 1)}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return DeliveryReport{Err: ErrBridgeClosed}
	}
	select {
	case b.queue <- task:
	case <-ctx.Done():
		b.mu.RUnlock()
		return DeliveryReport{Err: ctx.Err()}
	}
	b.mu.RUnlock()

	return <-task.result
}

// Close stops accepting work, drains the queue and waits for the worker.
func (b *DeliveryBridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	started := b.started
	close(b.queue)
	b.mu.Unlock()

	if started {
		<-b.done
	}
}

func (b *DeliveryBridge) run() {
	defer close(b.done)
	for task := range b.queue {
		task.result <- b.fanOut(task.ctx, task.n)
	}
}

func (b *DeliveryBridge) fanOut(ctx context.Context, n Notification) DeliveryReport {
	report := DeliveryReport{ID: uuid.NewString()}
	start := time.Now()
	log := b.logger.With().
		Str("delivery_id", report.ID).
		Str("kind", string(n.Kind)).
		Int64("entry_id", n.EntryID).
		Logger()

	for _, chatID := range b.recipients {
		err := b.sendOne(ctx, chatID, n.Text)
		metrics.Deliveries.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			report.Failed++
			log.Error().Err(err).Int64("chat_id", chatID).Msg("delivery failed")
			continue
		}
		report.Delivered++
	}

	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	log.Info().
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Dur("took", time.Since(start)).
		Msg("notification delivered")
	return report
}

func (b *DeliveryBridge) sendOne(ctx context.Context, chatID int64, text string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return b.sender.Send(ctx, chatID, text)
}
