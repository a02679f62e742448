package sched

import (
	"errors"
	"testing"
)

func TestFIFOPreservesOrder(t *testing.T) {
	t.Parallel()

	q, err := NewFIFO(4)
	if err != nil {
		t.Fatalf("NewFIFO: %v", err)
	}
	jobs := []Job{
		{FD: 10, ArrivalMS: 100},
		{FD: 11, ArrivalMS: 101},
		{FD: 12, ArrivalMS: 102},
	}
	for _, j := range jobs {
		if err := q.Push(j); err != nil {
			t.Fatalf("push fd=%d: %v", j.FD, err)
		}
	}

	for _, want := range []int{10, 11, 12} {
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got.FD != want {
			t.Errorf("pop order: got fd=%d, want fd=%d", got.FD, want)
		}
	}
	if _, err := q.Pop(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestFIFOBoundaryReturns(t *testing.T) {
	t.Parallel()

	q, err := NewFIFO(2)
	if err != nil {
		t.Fatalf("NewFIFO: %v", err)
	}
	if _, err := q.Pop(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("pop on empty: got %v", err)
	}
	if err := q.Push(Job{FD: 1}); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if err := q.Push(Job{FD: 2}); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if err := q.Push(Job{FD: 3}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("push on full: got %v", err)
	}
	if q.Len() != 2 || q.Cap() != 2 {
		t.Fatalf("len/cap after full push: len=%d cap=%d", q.Len(), q.Cap())
	}
}

// The ring indices wrap, so interleaved push/pop sequences within capacity
// must still come out in push order.
func TestFIFOWrapAround(t *testing.T) {
	t.Parallel()

	q, _ := NewFIFO(3)
	next := 0
	popped := []int{}
	push := func(n int) {
		for i := 0; i < n; i++ {
			if err := q.Push(Job{FD: next}); err != nil {
				t.Fatalf("push %d: %v", next, err)
			}
			next++
		}
	}
	pop := func(n int) {
		for i := 0; i < n; i++ {
			j, err := q.Pop()
			if err != nil {
				t.Fatalf("pop: %v", err)
			}
			popped = append(popped, j.FD)
		}
	}

	push(3)
	pop(2)
	push(2)
	pop(3)
	push(1)
	pop(1)

	for i, fd := range popped {
		if fd != i {
			t.Fatalf("wrap order broken at %d: got %d", i, fd)
		}
	}
}

func TestFIFOBadCapacity(t *testing.T) {
	t.Parallel()

	if _, err := NewFIFO(0); !errors.Is(err, ErrBadCapacity) {
		t.Fatalf("capacity 0: got %v", err)
	}
	if _, err := NewFIFO(-1); !errors.Is(err, ErrBadCapacity) {
		t.Fatalf("capacity -1: got %v", err)
	}
}

func TestQueueErrorsAreRetryable(t *testing.T) {
	t.Parallel()

	if !IsRetryable(ErrQueueFull) {
		t.Errorf("ErrQueueFull should be retryable")
	}
	if !IsRetryable(ErrQueueEmpty) {
		t.Errorf("ErrQueueEmpty should be retryable")
	}
	if IsRetryable(ErrBadCapacity) {
		t.Errorf("ErrBadCapacity should not be retryable")
	}
	if IsRetryable(nil) {
		t.Errorf("nil should not be retryable")
	}
}
