package rigid

import (
	"errors"
	"testing"
)

func TestNodeQueueFIFO(t *testing.T) {
	q := newNodeQueue(3)
	for i := int32(1); i <= 5; i++ {
		if err := q.enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if q.peek() != 1 {
		t.Fatalf("peek = %d, want 1", q.peek())
	}
	for i := int32(1); i <= 5; i++ {
		if got := q.dequeue(); got != i {
			t.Fatalf("dequeue = %d, want %d", got, i)
		}
	}
	if !q.empty() {
		t.Fatal("queue should be empty")
	}
}

func TestNodeQueueWraps(t *testing.T) {
	q := newNodeQueue(2) // capacity 4
	for round := 0; round < 10; round++ {
		for i := int32(0); i < 3; i++ {
			if err := q.enqueue(i); err != nil {
				t.Fatalf("round %d: %v", round, err)
			}
		}
		for i := int32(0); i < 3; i++ {
			if got := q.dequeue(); got != i {
				t.Fatalf("round %d: dequeue = %d, want %d", round, got, i)
			}
		}
	}
}

func TestNodeQueueOverflow(t *testing.T) {
	q := newNodeQueue(2) // capacity 4
	for i := int32(0); i < 4; i++ {
		if err := q.enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.enqueue(99); !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("got %v, want ErrQueueOverflow", err)
	}
}

func TestNodeQueueClear(t *testing.T) {
	q := newNodeQueue(3)
	_ = q.enqueue(7)
	_ = q.enqueue(8)
	q.clear()
	if !q.empty() {
		t.Fatal("clear should empty the queue")
	}
	_ = q.enqueue(9)
	if got := q.dequeue(); got != 9 {
		t.Fatalf("dequeue after clear = %d, want 9", got)
	}
}
