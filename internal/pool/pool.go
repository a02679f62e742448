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

// Package pool coordinates N workers around a bounded scheduler under a
// single mutex with paired condition variables. The mutex guards the
// scheduler and the shutdown flag; nothing consulted by a wait predicate
// lives outside it. Producers block on notFull, workers block on
// notEmpty, and shutdown broadcasts both.
package pool

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/kresge/httpq/internal/logging"
	"github.com/kresge/httpq/internal/metrics"
	"github.com/kresge/httpq/internal/sched"
)

// DefaultDocroot is used when the caller passes an empty document root.
const DefaultDocroot = "./www"

// ErrShutdown is returned by submission once Destroy has begun.
var ErrShutdown = errors.New("pool is shutting down")

// Handler serves one connection against a document root. The pool closes
// the connection after the handler returns, whatever the outcome.
type Handler func(conn net.Conn, docroot string) error

// Pool owns the scheduler, the worker set, and a copy of the docroot.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	sched    sched.Scheduler
	shutdown bool

	docroot string
	handler Handler
	log     *logging.Logger

	workers  sync.WaitGroup
	nworkers int
}

// Stats is a point-in-time view of the pool, read under the lock.
type Stats struct {
	Workers  int
	QueueLen int
	QueueCap int
	Shutdown bool
}

// New creates a pool with nworkers workers and a FIFO scheduler of the
// given capacity, then starts every worker. The docroot string is copied
// into the pool; an empty one falls back to DefaultDocroot.
func New(nworkers, capacity int, docroot string, handler Handler, log *logging.Logger) (*Pool, error) {
	if nworkers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", nworkers)
	}
	s, err := sched.NewFIFO(capacity)
	if err != nil {
		return nil, fmt.Errorf("default scheduler: %w", err)
	}
	if docroot == "" {
		docroot = DefaultDocroot
	}
	p := &Pool{
		sched:    s,
		docroot:  docroot,
		handler:  handler,
		log:      log,
		nworkers: nworkers,
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)

	for i := 0; i < nworkers; i++ {
		p.workers.Add(1)
		go p.workerMain(i)
	}
	return p, nil
}

// workerMain is the worker loop. It pops until the scheduler is empty,
// processing each job outside the lock, and exits only when shutdown is
// set and nothing remains queued. That ordering is what guarantees the
// drain: jobs accepted before Destroy are always served.
func (p *Pool) workerMain(id int) {
	defer p.workers.Done()
	p.mu.Lock()
	for {
		job, err := p.sched.Pop()
		if err == nil {
			metrics.IncPop(job.EstCost)
			metrics.SetQueueDepth(p.sched.Len())
			// The pop freed a slot; wake one blocked producer now rather
			// than after the handler returns.
			p.notFull.Signal()
			p.mu.Unlock()
			p.process(id, job)
			p.mu.Lock()
			continue
		}
		if p.shutdown {
			p.mu.Unlock()
			return
		}
		// Spurious wakeups happen; the loop rechecks queue and flag.
		p.notEmpty.Wait()
	}
}

// process serves one job and closes its connection exactly once.
func (p *Pool) process(id int, job sched.Job) {
	if job.Conn == nil {
		return
	}
	defer job.Conn.Close()
	p.log.Debug("worker %d: open fd=%d est=%d", id, job.FD, job.EstCost)
	if err := p.handler(job.Conn, p.docroot); err != nil {
		p.log.Debug("worker %d: fd=%d error: %v", id, job.FD, err)
		return
	}
	p.log.Debug("worker %d: close fd=%d", id, job.FD)
}

// Submit wraps a bare connection in a job with no estimate and queues it.
func (p *Pool) Submit(conn net.Conn) error {
	return p.SubmitJob(sched.Job{
		Conn:      conn,
		FD:        sched.ConnFD(conn),
		EstCost:   0,
		Priority:  0,
		ArrivalMS: sched.NowMillis(),
	})
}

// SubmitJob queues a job, blocking while the scheduler is full. Returns
// ErrShutdown once Destroy has begun; the caller then still owns the
// connection and must close it.
func (p *Pool) SubmitJob(job sched.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.shutdown {
			return ErrShutdown
		}
		err := p.sched.Push(job)
		if err == nil {
			break
		}
		if !sched.IsRetryable(err) {
			return err
		}
		p.notFull.Wait()
	}
	metrics.IncSubmit(job.EstCost)
	metrics.SetQueueDepth(p.sched.Len())
	p.notEmpty.Signal()
	return nil
}

// SetScheduler replaces the policy on a live pool. Queued jobs are
// drained from the old scheduler into the new one under the lock, so no
// job is lost across a swap. Workers observe the new policy on their
// next lock acquisition. The old scheduler is destroyed on success; on a
// capacity mismatch the drain is rolled back and the pool keeps its
// current policy.
func (p *Pool) SetScheduler(ns sched.Scheduler) error {
	if ns == nil {
		return fmt.Errorf("nil scheduler")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	drained := make([]sched.Job, 0, p.sched.Len())
	for {
		job, err := p.sched.Pop()
		if err != nil {
			break
		}
		drained = append(drained, job)
	}
	for i, job := range drained {
		if err := ns.Push(job); err != nil {
			// Roll back: the old scheduler was just emptied, so the
			// original jobs fit again in order.
			for _, j := range drained {
				_ = p.sched.Push(j)
			}
			return fmt.Errorf("drain into new scheduler at job %d: %w", i, err)
		}
	}
	old := p.sched
	p.sched = ns
	old.Destroy()
	if p.sched.Len() > 0 {
		p.notEmpty.Broadcast()
	}
	p.notFull.Broadcast()
	return nil
}

// Destroy sets shutdown, wakes everyone, and joins all workers. Blocks
// until every queued job has been served and every worker has exited.
// Safe to call once.
func (p *Pool) Destroy() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
	p.mu.Unlock()

	p.workers.Wait()

	p.mu.Lock()
	p.sched.Destroy()
	p.mu.Unlock()
}

// Stats reads a snapshot under the lock.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:  p.nworkers,
		QueueLen: p.sched.Len(),
		QueueCap: p.sched.Cap(),
		Shutdown: p.shutdown,
	}
}
