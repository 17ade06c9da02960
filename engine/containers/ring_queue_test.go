package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](2)
	for i := 0; i < 5; i++ {
		rq.Enqueue(i)
	}
	if rq.Len() != 5 {
		t.Fatalf("Len = %d, want 5", rq.Len())
	}
	if v, _ := rq.Peek(); v != 0 {
		t.Fatalf("Peek = %d, want 0", v)
	}
	for i := 0; i < 5; i++ {
		v, err := rq.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if v != i {
			t.Fatalf("Dequeue = %d, want %d", v, i)
		}
	}
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue returned %v", err)
	}
}

func TestRingQueueGrowAfterWrap(t *testing.T) {
	rq := NewRingQueue[string](3)
	rq.Enqueue("a")
	rq.Enqueue("b")
	_, _ = rq.Dequeue()
	rq.Enqueue("c")
	rq.Enqueue("d") // wraps
	rq.Enqueue("e") // grows while wrapped
	want := []string{"b", "c", "d", "e"}
	for _, w := range want {
		v, err := rq.Dequeue()
		if err != nil || v != w {
			t.Fatalf("Dequeue = %q, %v, want %q", v, err, w)
		}
	}
	if !rq.IsEmpty() {
		t.Fatal("queue should be empty")
	}
}
