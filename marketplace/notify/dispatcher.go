package notify

import (
	"errors"
	"fmt"
	"localfarmer/marketplace/schema"
	"localfarmer/utils/logging"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

const BatchSize = 500

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_events_published_total", Help: "Notification events published",
	}, []string{"category"})
	eventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_events_delivered_total", Help: "Notification events fanned out to recipients",
	}, []string{"category"})
	eventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_events_failed_total", Help: "Notification events that could not be delivered",
	}, []string{"category"})
	rowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_rows_written_total", Help: "Notification rows inserted",
	})
	inlineDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_inline_deliveries_total", Help: "Events delivered on the publishing goroutine because the queue was full or closed",
	})
)

// Event announces a newly posted listing. ExcludeUserId, when set, is left
// out of the recipients, normally the user who created the listing.
type Event struct {
	Category        string
	Title           string
	Message         string
	RelatedItemId   uint
	RelatedItemType string
	ExcludeUserId   *uint
}

type Publisher interface {
	Publish(event Event) error
}

type Options struct {
	Workers   int
	QueueSize int
}

// Dispatcher fans events out to notification rows on a pool of workers.
// Publishing never blocks on a full queue; the event is delivered inline
// instead, so no event is dropped.
type Dispatcher struct {
	db    *gorm.DB
	queue chan Event

	mu     sync.RWMutex
	closed bool

	pending sync.WaitGroup
	workers sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}

	d := &Dispatcher{db: db, queue: make(chan Event, opts.QueueSize)}

	for i := 0; i < opts.Workers; i++ {
		d.workers.Add(1)
		go d.run()
	}

	slog.Info("notification dispatcher started", "workers", opts.Workers, "queue_size", opts.QueueSize, "code", logging.NOTIFY)

	return d
}

func (d *Dispatcher) run() {
	defer d.workers.Done()
	for event := range d.queue {
		d.process(event)
		d.pending.Done()
	}
}

func (d *Dispatcher) Publish(event Event) error {
	if err := schema.CheckValidNotificationCategory(event.Category); err != nil {
		return err
	}

	eventsPublished.WithLabelValues(event.Category).Inc()

	d.mu.RLock()
	if !d.closed {
		d.pending.Add(1)
		select {
		case d.queue <- event:
			d.mu.RUnlock()
			return nil
		default:
			d.pending.Done()
		}
	}
	d.mu.RUnlock()

	inlineDeliveries.Inc()
	d.process(event)
	return nil
}

func (d *Dispatcher) process(event Event) {
	n, err := d.Deliver(event)
	if err != nil {
		eventsFailed.WithLabelValues(event.Category).Inc()
		slog.Error("notification fan-out failed", "category", event.Category, "related_item_id", event.RelatedItemId, "error", err, "code", logging.NOTIFY)
		return
	}
	eventsDelivered.WithLabelValues(event.Category).Inc()
	slog.Info("notification fan-out complete", "category", event.Category, "related_item_id", event.RelatedItemId, "recipients", n, "code", logging.NOTIFY)
}

var ErrFanoutFailed = errors.New("notification fan-out failed")

// Deliver writes one notification row per recipient, in batches. It returns
// the number of rows written.
func (d *Dispatcher) Deliver(event Event) (int, error) {
	query := d.db.Model(&schema.User{})
	if event.ExcludeUserId != nil {
		query = query.Where("id <> ?", *event.ExcludeUserId)
	}

	var recipients []uint
	if err := query.Order("id").Pluck("id", &recipients).Error; err != nil {
		slog.Error("sql error listing notification recipients", "error", err, "code", logging.NOTIFY)
		return 0, fmt.Errorf("%w: %v", ErrFanoutFailed, schema.ErrDbAccessFailed)
	}

	if len(recipients) == 0 {
		return 0, nil
	}

	relatedItemId := event.RelatedItemId
	rows := make([]schema.Notification, 0, len(recipients))
	for _, userId := range recipients {
		rows = append(rows, schema.Notification{
			UserId:          userId,
			Category:        event.Category,
			Title:           event.Title,
			Message:         event.Message,
			RelatedItemId:   &relatedItemId,
			RelatedItemType: event.RelatedItemType,
		})
	}

	if err := d.db.CreateInBatches(rows, BatchSize).Error; err != nil {
		slog.Error("sql error inserting notifications", "category", event.Category, "error", err, "code", logging.NOTIFY)
		return 0, fmt.Errorf("%w: %v", ErrFanoutFailed, schema.ErrDbAccessFailed)
	}

	rowsWritten.Add(float64(len(rows)))

	return len(rows), nil
}

// Wait blocks until every event queued so far has been processed.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close stops accepting queued events and drains what is already queued.
// Events published afterwards are delivered inline.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.workers.Wait()
	slog.Info("notification dispatcher stopped", "code", logging.NOTIFY)
}
