package queue

import (
	"sync"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering.
type MemQueue struct {
	mu     sync.Mutex
	data   []domain.Reading
	cap    int
	notify chan struct{}
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data:   make([]domain.Reading, 0, capacity),
		cap:    capacity,
		notify: make(chan struct{}, 1),
	}
}

func (q *MemQueue) Enqueue(r domain.Reading) bool {
	q.mu.Lock()
	if len(q.data) >= q.cap {
		q.mu.Unlock()
		return false
	}
	q.data = append(q.data, r)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.Reading, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Notify fires after an Enqueue; consumers still poll with an idle timeout.
func (q *MemQueue) Notify() <-chan struct{} { return q.notify }

var _ ports.ReadingQueue = (*MemQueue)(nil)
