/*
httpq — multi-threaded HTTP file server with pluggable request scheduling
Copyright (C) 2025  httpq authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package sched

// sjf is a fixed-capacity binary min-heap keyed by (EstCost, ArrivalMS).
// EstCost == 0 means "unknown" and sorts smallest, so unestimated jobs are
// served promptly rather than deferred. Ties on cost fall back to arrival
// order, which keeps equal-cost peers from starving each other. A
// continuous stream of small jobs can still starve a large one; that is a
// property of the policy, not a defect.
type sjf struct {
	arr   []Job
	count int
}

// NewSJF creates a shortest-job-first scheduler with the given capacity.
func NewSJF(capacity int) (Scheduler, error) {
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}
	return &sjf{arr: make([]Job, capacity)}, nil
}

// less orders a before b when a has the smaller cost, or on equal cost the
// earlier arrival.
func less(a, b *Job) bool {
	if a.EstCost != b.EstCost {
		return a.EstCost < b.EstCost
	}
	return a.ArrivalMS < b.ArrivalMS
}

func (q *sjf) siftUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if !less(&q.arr[idx], &q.arr[parent]) {
			break
		}
		q.arr[idx], q.arr[parent] = q.arr[parent], q.arr[idx]
		idx = parent
	}
}

func (q *sjf) siftDown(idx int) {
	n := q.count
	for {
		l := idx*2 + 1
		r := l + 1
		smallest := idx
		if l < n && less(&q.arr[l], &q.arr[smallest]) {
			smallest = l
		}
		if r < n && less(&q.arr[r], &q.arr[smallest]) {
			smallest = r
		}
		if smallest == idx {
			return
		}
		q.arr[idx], q.arr[smallest] = q.arr[smallest], q.arr[idx]
		idx = smallest
	}
}

func (q *sjf) Push(job Job) error {
	if q.count == len(q.arr) {
		return ErrQueueFull
	}
	q.arr[q.count] = job
	q.siftUp(q.count)
	q.count++
	return nil
}

func (q *sjf) Pop() (Job, error) {
	if q.count == 0 {
		return Job{}, ErrQueueEmpty
	}
	job := q.arr[0]
	q.count--
	if q.count > 0 {
		q.arr[0] = q.arr[q.count]
		q.siftDown(0)
	}
	q.arr[q.count] = Job{}
	return job, nil
}

func (q *sjf) Len() int { return q.count }

func (q *sjf) Cap() int { return len(q.arr) }

func (q *sjf) Destroy() {
	q.arr = nil
	q.count = 0
}
