// Package events provides an in-process publish/subscribe bus for
// validation lifecycle events.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// EventType identifies the kind of event published on the bus.
type EventType string

const (
	EventValidationStarted   EventType = "validation.started"
	EventValidationCompleted EventType = "validation.completed"
	EventValidationRejected  EventType = "validation.rejected"
	EventValidationFailed    EventType = "validation.failed"
)

// Event is a single bus message.
type Event struct {
	ID        string                  `json:"id"`
	Type      EventType               `json:"type"`
	Timestamp time.Time               `json:"timestamp"`
	Record    *types.ValidationRecord `json:"record,omitempty"`
}

// Handler consumes events. Handlers run on bus worker goroutines and
// must not block indefinitely.
type Handler func(Event)

// Bus fan-outs events to subscribers through a bounded queue. When the
// queue is full events are dropped rather than blocking publishers.
type Bus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[EventType][]Handler

	queue chan Event
	wg    sync.WaitGroup

	published atomic.Int64
	dropped   atomic.Int64
}

// NewBus creates an event bus with the given queue capacity and worker
// count.
func NewBus(logger *zap.Logger, queueSize, workers int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}

	b := &Bus{
		logger:      logger,
		subscribers: make(map[EventType][]Handler),
		queue:       make(chan Event, queueSize),
	}

	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	logger.Info("Event bus started",
		zap.Int("queueSize", queueSize),
		zap.Int("workers", workers))

	return b
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish enqueues an event. It never blocks; events are dropped when
// the queue is full.
func (b *Bus) Publish(eventType EventType, record *types.ValidationRecord) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Record:    record,
	}

	select {
	case b.queue <- event:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event dropped, queue full",
			zap.String("type", string(eventType)))
	}
}

// Close drains the queue and stops the workers.
func (b *Bus) Close() {
	close(b.queue)
	b.wg.Wait()
	b.logger.Info("Event bus stopped",
		zap.Int64("published", b.published.Load()),
		zap.Int64("dropped", b.dropped.Load()))
}

// Stats reports published and dropped event counts.
func (b *Bus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for event := range b.queue {
		b.dispatch(event)
	}
}

func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	handlers := b.subscribers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Event handler panicked",
						zap.String("type", string(event.Type)),
						zap.Any("panic", r))
				}
			}()
			handler(event)
		}()
	}
}
