package service

import (
	"sync"
	"time"

	"docflow/internal/models"

	"github.com/google/uuid"
)

// DocumentEvent is published on every document status or progress change.
type DocumentEvent struct {
	DocumentID uuid.UUID             `json:"documentId"`
	BatchID    uuid.UUID             `json:"batchId"`
	Status     models.DocumentStatus `json:"status"`
	Progress   int                   `json:"progress"`
	Reason     string                `json:"reason,omitempty"`
	At         time.Time             `json:"at"`
}

// Broker fans document events out to subscribers. Slow subscribers lose
// events rather than blocking publishers; clients re-read state on reconnect.
type Broker struct {
	mu     sync.RWMutex
	subs   map[chan DocumentEvent]struct{}
	buffer int
	closed bool
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{subs: make(map[chan DocumentEvent]struct{}), buffer: buffer}
}

// Subscribe returns an event channel and the func that closes it. After
// Close the returned channel is already closed.
func (b *Broker) Subscribe() (<-chan DocumentEvent, func()) {
	ch := make(chan DocumentEvent, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Close ends every subscription so long-lived streams can finish.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *Broker) Publish(ev DocumentEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broker) publishDocument(doc *models.Document) {
	if b == nil || doc == nil {
		return
	}
	b.Publish(DocumentEvent{
		DocumentID: doc.ID,
		BatchID:    doc.BatchID,
		Status:     doc.Status,
		Progress:   doc.Progress,
		Reason:     doc.ErrorReason,
		At:         time.Now().UTC(),
	})
}
