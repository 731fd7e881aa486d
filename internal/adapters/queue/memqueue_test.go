package queue

import (
	"testing"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	r1 := domain.Reading{SensorID: "U01"}
	r2 := domain.Reading{SensorID: "U02"}

	if !q.Enqueue(r1) || !q.Enqueue(r2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].SensorID != "U01" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].SensorID != "U02" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(5) != nil {
		t.Fatalf("expected nil batch from empty queue")
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	r := domain.Reading{SensorID: "cap"}

	if !q.Enqueue(r) || !q.Enqueue(r) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(r) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(r) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueNotify(t *testing.T) {
	q := NewMemQueue(4)
	q.Enqueue(domain.Reading{})
	q.Enqueue(domain.Reading{})

	select {
	case <-q.Notify():
	default:
		t.Fatalf("expected a pending notification after enqueue")
	}
	select {
	case <-q.Notify():
		t.Fatalf("notifications should coalesce")
	default:
	}
}
