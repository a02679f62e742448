package metrics

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

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportInterval is how often the reporter prints one summary line to the
// diagnostic stream.
const ReportInterval = 5 * time.Second

// bank is the process-wide counter set. Every counter is monotonically
// non-decreasing; updates are relaxed atomic adds, so readers may observe
// any interleaving but never a decrease.
type bank struct {
	submitsTotal atomic.Uint64
	submitsEst0  atomic.Uint64
	popsTotal    atomic.Uint64

	requestsTotal atomic.Uint64
	bytesTotal    atomic.Uint64
	errorsTotal   atomic.Uint64
	sumLatencyMS  atomic.Uint64

	running  atomic.Bool
	reporter sync.WaitGroup
	stop     chan struct{}
}

var counters bank

// Snapshot is a point-in-time read of the counter bank.
type Snapshot struct {
	SubmitsTotal  uint64
	SubmitsEst0   uint64
	PopsTotal     uint64
	RequestsTotal uint64
	BytesTotal    uint64
	ErrorsTotal   uint64
	SumLatencyMS  uint64
}

// Prometheus mirror. The counter bank stays authoritative for the
// reporter line; these exist for scrape-based monitoring.
var (
	registry          = prometheus.NewRegistry()
	defaultRegisterer = promauto.With(registry)
	promServer        *http.Server
	promOnce          sync.Once

	promRequests = defaultRegisterer.NewCounter(prometheus.CounterOpts{
		Name: "httpq_requests_total",
		Help: "Total number of HTTP requests served",
	})
	promBytes = defaultRegisterer.NewCounter(prometheus.CounterOpts{
		Name: "httpq_bytes_total",
		Help: "Total number of response body bytes sent",
	})
	promErrors = defaultRegisterer.NewCounter(prometheus.CounterOpts{
		Name: "httpq_errors_total",
		Help: "Total number of requests answered with an error status",
	})
	promSubmits = defaultRegisterer.NewCounterVec(prometheus.CounterOpts{
		Name: "httpq_submits_total",
		Help: "Total number of jobs submitted to the pool",
	}, []string{"estimated"})
	promPops = defaultRegisterer.NewCounter(prometheus.CounterOpts{
		Name: "httpq_pops_total",
		Help: "Total number of jobs popped by workers",
	})
	promQueueDepth = defaultRegisterer.NewGauge(prometheus.GaugeOpts{
		Name: "httpq_queue_depth",
		Help: "Jobs currently waiting in the scheduler",
	})
	promLatency = defaultRegisterer.NewHistogram(prometheus.HistogramOpts{
		Name:    "httpq_request_latency_seconds",
		Help:    "Request latency from first read to response completion",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
)

var startTime = time.Now()

func nowMS() uint64 {
	return uint64(time.Since(startTime).Milliseconds())
}

// Init zeroes the bank and starts the reporter goroutine. Returns an
// error only when a reporter is already running; callers may continue
// without one.
func Init() error {
	if !counters.running.CompareAndSwap(false, true) {
		return fmt.Errorf("metrics reporter already running")
	}
	counters.submitsTotal.Store(0)
	counters.submitsEst0.Store(0)
	counters.popsTotal.Store(0)
	counters.requestsTotal.Store(0)
	counters.bytesTotal.Store(0)
	counters.errorsTotal.Store(0)
	counters.sumLatencyMS.Store(0)
	counters.stop = make(chan struct{})

	counters.reporter.Add(1)
	go reporterLoop()
	return nil
}

// Shutdown stops the reporter and waits for it to exit. Safe to call
// once after a successful Init.
func Shutdown() {
	if !counters.running.CompareAndSwap(true, false) {
		return
	}
	close(counters.stop)
	counters.reporter.Wait()
}

func reporterLoop() {
	defer counters.reporter.Done()
	ticker := time.NewTicker(ReportInterval)
	defer ticker.Stop()

	var prevReqs, prevBytes uint64
	interval := ReportInterval.Seconds()
	for {
		select {
		case <-counters.stop:
			return
		case <-ticker.C:
			s := Read()
			deltaReqs := s.RequestsTotal - prevReqs
			deltaBytes := s.BytesTotal - prevBytes
			reqsPerSec := float64(deltaReqs) / interval
			mbPerSec := float64(deltaBytes) / (1024.0 * 1024.0) / interval
			avgLatency := 0.0
			if s.RequestsTotal > 0 {
				avgLatency = float64(s.SumLatencyMS) / float64(s.RequestsTotal)
			}
			est0Frac := 0.0
			if s.SubmitsTotal > 0 {
				est0Frac = float64(s.SubmitsEst0) / float64(s.SubmitsTotal) * 100.0
			}
			fmt.Fprintf(os.Stderr,
				"[metrics] ts=%d reqs_total=%d req/s=%.2f MB/s=%.2f avgLat=%.2fms errors=%d submits=%d est0%%=%.1f pops=%d\n",
				nowMS(), s.RequestsTotal, reqsPerSec, mbPerSec, avgLatency,
				s.ErrorsTotal, s.SubmitsTotal, est0Frac, s.PopsTotal)
			prevReqs = s.RequestsTotal
			prevBytes = s.BytesTotal
		}
	}
}

// RecordRequest accounts one completed request. A status below 200 or at
// 400 and above counts as an error.
func RecordRequest(latencyMS uint64, bytes uint64, status int) {
	counters.requestsTotal.Add(1)
	counters.bytesTotal.Add(bytes)
	counters.sumLatencyMS.Add(latencyMS)
	promRequests.Inc()
	promBytes.Add(float64(bytes))
	promLatency.Observe(float64(latencyMS) / 1000.0)
	if status < 200 || status >= 400 {
		counters.errorsTotal.Add(1)
		promErrors.Inc()
	}
}

// IncSubmit accounts one job submission. Estimates at or below zero count
// toward the unknown-estimate ratio in the reporter line.
func IncSubmit(est int64) {
	counters.submitsTotal.Add(1)
	if est <= 0 {
		counters.submitsEst0.Add(1)
		promSubmits.WithLabelValues("no").Inc()
	} else {
		promSubmits.WithLabelValues("yes").Inc()
	}
}

// IncPop accounts one job handed to a worker.
func IncPop(est int64) {
	_ = est
	counters.popsTotal.Add(1)
	promPops.Inc()
}

// SetQueueDepth publishes the scheduler occupancy. Callers sample it
// under the pool lock.
func SetQueueDepth(n int) {
	promQueueDepth.Set(float64(n))
}

// Read returns a snapshot of the counter bank.
func Read() Snapshot {
	return Snapshot{
		SubmitsTotal:  counters.submitsTotal.Load(),
		SubmitsEst0:   counters.submitsEst0.Load(),
		PopsTotal:     counters.popsTotal.Load(),
		RequestsTotal: counters.requestsTotal.Load(),
		BytesTotal:    counters.bytesTotal.Load(),
		ErrorsTotal:   counters.errorsTotal.Load(),
		SumLatencyMS:  counters.sumLatencyMS.Load(),
	}
}

// StartPromServer exposes the registry on addr under /metrics. Starts at
// most once per process.
func StartPromServer(addr string) {
	promOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		promServer = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := promServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
	})
}

// ShutdownPromServer gracefully shuts down the scrape endpoint.
func ShutdownPromServer(ctx context.Context) error {
	if promServer != nil {
		return promServer.Shutdown(ctx)
	}
	return nil
}
