package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topic identifies one ordered event stream on the bus.
type Topic string

// Inbound topics the core subscribes to.
const (
	TopicValidationRequested      Topic = "validation.requested"
	TopicBatchValidationRequested Topic = "batch.validation.requested"
	TopicConfigUpdated            Topic = "config.updated"
	TopicExtractionCompleted      Topic = "extraction.completed"
)

// Outbound topics the core publishes.
const (
	TopicValidationStarted   Topic = "validation.started"
	TopicValidationProgress  Topic = "validation.progress"
	TopicValidationCompleted Topic = "validation.completed"
	TopicValidationFailed    Topic = "validation.failed"
	TopicQualityWarning      Topic = "quality.warning"
	TopicBatchProcessed      Topic = "batch.processed"
	TopicSyncProgress        Topic = "sync.progress"
	TopicReadyForSync        Topic = "ready-for-sync"
	TopicJobStateChanged     Topic = "job.state-changed"
)

// Event is one message on the bus. Payloads are plain records: ids, counts,
// ISO-8601 timestamps as strings, percentages as integers 0-100.
type Event struct {
	Topic   Topic          `json:"topic"`
	At      string         `json:"at"`
	Payload map[string]any `json:"payload"`
}

// Handler receives events for one topic. Handlers for the same topic run
// sequentially on the topic's dispatcher goroutine, preserving order.
type Handler func(Event)

// topicQueue owns the ordered delivery for a single topic.
type topicQueue struct {
	ch       chan Event
	handlers []Handler
	mu       sync.RWMutex
}

// Bus is an in-process publish/subscribe bus. Publish is a non-blocking
// enqueue; each topic has its own dispatcher goroutine so ordering is
// preserved per topic but topics do not block each other.
type Bus struct {
	mu      sync.Mutex
	topics  map[Topic]*topicQueue
	buffer  int
	dropped uint64
	logger  *zap.Logger
	wg      sync.WaitGroup
	closed  bool
}

// NewBus creates a bus with the given per-topic buffer size.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		topics: make(map[Topic]*topicQueue),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a handler for topic. The dispatcher goroutine for the
// topic is started on first use.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	q := b.queueFor(topic)
	q.mu.Lock()
	q.handlers = append(q.handlers, h)
	q.mu.Unlock()
}

// Publish enqueues an event without blocking. If the topic buffer is full
// the event is dropped and counted; a reconciliation run never stalls on a
// slow observer.
func (b *Bus) Publish(topic Topic, payload map[string]any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	q := b.queueForLocked(topic)
	b.mu.Unlock()

	ev := Event{
		Topic:   topic,
		At:      time.Now().UTC().Format(time.RFC3339),
		Payload: payload,
	}

	select {
	case q.ch <- ev:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.logger.Warn("event dropped, topic buffer full", zap.String("topic", string(topic)))
	}
}

// Dropped returns how many events were discarded due to full buffers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops all dispatchers after draining their queues.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, q := range b.topics {
		close(q.ch)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) queueFor(topic Topic) *topicQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queueForLocked(topic)
}

func (b *Bus) queueForLocked(topic Topic) *topicQueue {
	if q, ok := b.topics[topic]; ok {
		return q
	}
	q := &topicQueue{ch: make(chan Event, b.buffer)}
	b.topics[topic] = q

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range q.ch {
			q.mu.RLock()
			handlers := q.handlers
			q.mu.RUnlock()
			for _, h := range handlers {
				h(ev)
			}
		}
	}()

	return q
}
