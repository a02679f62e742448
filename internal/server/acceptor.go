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

package server

import (
	"context"
	"errors"
	"net"

	"golang.org/x/time/rate"

	"github.com/kresge/httpq/internal/logging"
	"github.com/kresge/httpq/internal/pool"
	"github.com/kresge/httpq/internal/sched"
)

// Acceptor owns the listening socket and turns accepted connections
// into typed jobs for the pool.
type Acceptor struct {
	ln      net.Listener
	pool    *pool.Pool
	est     *Estimator
	log     *logging.Logger
	limiter *rate.Limiter
}

// NewAcceptor wires a listener, a pool, and an estimator together.
// acceptRate > 0 caps accepted connections per second with a burst of
// the same size; 0 disables the limiter.
func NewAcceptor(ln net.Listener, p *pool.Pool, est *Estimator, log *logging.Logger, acceptRate float64) *Acceptor {
	a := &Acceptor{ln: ln, pool: p, est: est, log: log}
	if acceptRate > 0 {
		burst := int(acceptRate)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(acceptRate), burst)
	}
	return a
}

// Run accepts until the context is cancelled or the listener fails.
// Cancellation is observed by closing the listener from the caller's
// signal path, which unblocks Accept. Connections refused by a
// shutting-down pool are closed immediately.
func (a *Acceptor) Run(ctx context.Context) error {
	for {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		conn, err := a.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			a.log.Error("accept: %v", err)
			return err
		}

		job := sched.Job{
			Conn:      conn,
			FD:        sched.ConnFD(conn),
			EstCost:   a.est.Estimate(conn),
			Priority:  0,
			ArrivalMS: sched.NowMillis(),
		}
		a.log.Info("submit: fd=%d est=%d", job.FD, job.EstCost)
		if err := a.pool.SubmitJob(job); err != nil {
			conn.Close()
		}
	}
}
