package sched

import (
	"errors"
	"math/rand"
	"testing"
)

func TestSJFOrdersByCostThenArrival(t *testing.T) {
	t.Parallel()

	q, err := NewSJF(8)
	if err != nil {
		t.Fatalf("NewSJF: %v", err)
	}
	jobs := []Job{
		{FD: 1, EstCost: 500, ArrivalMS: 1}, // A
		{FD: 2, EstCost: 100, ArrivalMS: 2}, // B
		{FD: 3, EstCost: 100, ArrivalMS: 3}, // C
		{FD: 4, EstCost: 0, ArrivalMS: 4},   // D, unknown cost is most urgent
	}
	for _, j := range jobs {
		if err := q.Push(j); err != nil {
			t.Fatalf("push fd=%d: %v", j.FD, err)
		}
	}

	for _, want := range []int{4, 2, 3, 1} {
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got.FD != want {
			t.Errorf("pop order: got fd=%d, want fd=%d", got.FD, want)
		}
	}
}

func TestSJFBoundaryReturns(t *testing.T) {
	t.Parallel()

	q, _ := NewSJF(1)
	if _, err := q.Pop(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("pop on empty: got %v", err)
	}
	if err := q.Push(Job{EstCost: 7}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(Job{EstCost: 8}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("push on full: got %v", err)
	}
}

// heapValid checks the parent ordering invariant over the live prefix.
func heapValid(q *sjf) bool {
	for i := 1; i < q.count; i++ {
		parent := (i - 1) / 2
		if less(&q.arr[i], &q.arr[parent]) {
			return false
		}
	}
	return true
}

func TestSJFHeapPropertyUnderRandomOps(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	s, _ := NewSJF(64)
	q := s.(*sjf)
	arrival := int64(0)
	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 && q.Len() < q.Cap() {
			arrival++
			if err := q.Push(Job{EstCost: int64(rng.Intn(10)), ArrivalMS: arrival}); err != nil {
				t.Fatalf("push: %v", err)
			}
		} else if q.Len() > 0 {
			if _, err := q.Pop(); err != nil {
				t.Fatalf("pop: %v", err)
			}
		}
		if !heapValid(q) {
			t.Fatalf("heap property violated after op %d", i)
		}
		if q.Len() < 0 || q.Len() > q.Cap() {
			t.Fatalf("count out of bounds: %d", q.Len())
		}
	}
}

// Draining any population must yield non-decreasing costs, and equal costs
// must come out in arrival order.
func TestSJFDrainIsSorted(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	q, _ := NewSJF(128)
	for i := 0; i < 128; i++ {
		err := q.Push(Job{EstCost: int64(rng.Intn(5) * 100), ArrivalMS: int64(i)})
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	var prev Job
	first := true
	for q.Len() > 0 {
		j, err := q.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if !first {
			if j.EstCost < prev.EstCost {
				t.Fatalf("cost decreased: %d after %d", j.EstCost, prev.EstCost)
			}
			if j.EstCost == prev.EstCost && j.ArrivalMS < prev.ArrivalMS {
				t.Fatalf("arrival tie-break broken: %d after %d", j.ArrivalMS, prev.ArrivalMS)
			}
		}
		prev = j
		first = false
	}
}

func TestSJFZeroCostBeatsEverything(t *testing.T) {
	t.Parallel()

	q, _ := NewSJF(4)
	_ = q.Push(Job{FD: 1, EstCost: 1, ArrivalMS: 1})
	_ = q.Push(Job{FD: 2, EstCost: 0, ArrivalMS: 99})
	j, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if j.FD != 2 {
		t.Fatalf("zero-cost job should pop first, got fd=%d", j.FD)
	}
}
