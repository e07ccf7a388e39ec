package bridge

import "testing"

func TestQueuePushPopOrder(t *testing.T) {
	q := NewQueue[int](8)
	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("pop = %v, %v, want %d, true", v, ok, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue reported ok")
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue[int](4)
	for i := 0; i < 4; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed below capacity", i)
		}
	}
	if q.Push(99) {
		t.Fatal("push into full queue succeeded")
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("after dropped push, pop = %v, %v, want %d, true", v, ok, i)
		}
	}
}

func TestQueueWrapAround(t *testing.T) {
	q := NewQueue[int](4)
	n := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			if !q.Push(n + i) {
				t.Fatalf("round %d: push failed", round)
			}
		}
		for i := 0; i < 3; i++ {
			v, ok := q.Pop()
			if !ok || v != n+i {
				t.Fatalf("round %d: pop = %v, %v, want %d", round, v, ok, n+i)
			}
		}
		n += 3
	}
}

func TestQueueLenAndCap(t *testing.T) {
	q := NewQueue[int](8)
	if q.Cap() != 8 {
		t.Fatalf("Cap = %d, want 8", q.Cap())
	}
	q.Push(1)
	q.Push(2)
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
	q.Pop()
	if q.Len() != 1 {
		t.Errorf("Len after pop = %d, want 1", q.Len())
	}
}

func TestQueueCapacityMustBePowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("capacity 3 did not panic")
		}
	}()
	NewQueue[int](3)
}

func TestQueueConcurrentProducerConsumer(t *testing.T) {
	q := NewQueue[uint32](64)
	const total = 100000
	done := make(chan struct{})
	go func() {
		defer close(done)
		next := uint32(0)
		for next < total {
			v, ok := q.Pop()
			if !ok {
				continue
			}
			if v != next {
				t.Errorf("popped %d, want %d", v, next)
				return
			}
			next++
		}
	}()
	for i := uint32(0); i < total; {
		if q.Push(i) {
			i++
		}
	}
	<-done
}
