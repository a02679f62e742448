/*
Package main is the entry point for the httpq server.

httpq is a multi-threaded static file server whose accepted connections
pass through a bounded, policy-pluggable job queue before a fixed pool
of workers serves them. Two scheduling policies are built in: arrival
order (fifo) and shortest-job-first (sjf) keyed by an estimate of the
response size taken at accept time.

Invocation is positional with defaults: httpq [port] [workers] [docroot]
defaulting to 8080, 4, and ./www. The scheduler comes from --scheduler,
then the SCHEDULER environment variable, then the config file, and
defaults to sjf. A YAML config file can set everything the flags can.

Shutdown is graceful: SIGINT or SIGTERM stops the accept loop, the pool
drains every queued connection, and only then does the process exit.
*/
package main

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
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kresge/httpq/internal/accesslog"
	"github.com/kresge/httpq/internal/config"
	"github.com/kresge/httpq/internal/httpserv"
	"github.com/kresge/httpq/internal/logging"
	"github.com/kresge/httpq/internal/metrics"
	"github.com/kresge/httpq/internal/pool"
	"github.com/kresge/httpq/internal/sched"
	"github.com/kresge/httpq/internal/server"
)

var (
	configPath    string
	schedulerFlag string
	metricsAddr   string
	accessLogPath string
	logLevel      string
	acceptRate    float64
)

var rootCmd = &cobra.Command{
	Use:   "httpq [port] [workers] [docroot]",
	Short: "httpq - a multi-threaded file server with pluggable request scheduling",
	Args:  cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, args)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "httpq.yaml", "Path to the YAML config file")
	rootCmd.Flags().StringVar(&schedulerFlag, "scheduler", "", "Scheduling policy: fifo or sjf (overrides SCHEDULER env)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus /metrics endpoint")
	rootCmd.Flags().StringVar(&accessLogPath, "access-log", "", "Path to the binary access log")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Diagnostic verbosity: debug, info, warn, error")
	rootCmd.Flags().Float64Var(&acceptRate, "accept-rate", 0, "Accepted connections per second, 0 for unlimited")
}

// applyArgs folds the positional arguments into the config. Each is
// optional left to right.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) >= 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[0], err)
		}
		cfg.Server.Port = port
	}
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid worker count %q: %w", args[1], err)
		}
		cfg.Workers.Count = n
	}
	if len(args) >= 3 {
		cfg.Docroot = args[2]
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyArgs(cfg, args); err != nil {
		return err
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if cmd.Flags().Changed("access-log") {
		cfg.AccessLog.Path = accessLogPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("accept-rate") {
		cfg.Server.AcceptRate = acceptRate
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Logging.Level)

	if err := metrics.Init(); err != nil {
		// Best effort: the server runs without a reporter.
		log.Warn("metrics reporter: %v", err)
	}
	if cfg.Metrics.Addr != "" {
		metrics.StartPromServer(cfg.Metrics.Addr)
		log.Info("metrics endpoint on %s", cfg.Metrics.Addr)
	}

	var alog *accesslog.Log
	handler := httpserv.HandleClient
	if cfg.AccessLog.Path != "" {
		alog, err = accesslog.Open(cfg.AccessLog.Path)
		if err != nil {
			log.Warn("access log disabled: %v", err)
		} else {
			handler = func(conn net.Conn, docroot string) error {
				return httpserv.ServeConn(conn, docroot, func(o httpserv.Observation) {
					if err := alog.Record(accesslog.Entry{
						TimestampMS: time.Now().UnixMilli(),
						Remote:      o.Remote,
						Method:      o.Method,
						Path:        o.Path,
						Status:      o.Status,
						Bytes:       o.Bytes,
						LatencyMS:   o.LatencyMS,
					}); err != nil {
						log.Warn("access log write: %v", err)
					}
				})
			}
		}
	}

	ln, err := server.Listen(cfg.Server.Host, cfg.Server.Port, server.ListenBacklog)
	if err != nil {
		log.Error("listen on port %d: %v", cfg.Server.Port, err)
		return err
	}

	p, err := pool.New(cfg.Workers.Count, server.QueueCapacity, cfg.Docroot, handler, log)
	if err != nil {
		log.Error("failed to create worker pool: %v", err)
		ln.Close()
		return err
	}

	log.Info("Listening on port %d with %d workers, docroot=%s",
		cfg.Server.Port, cfg.Workers.Count, cfg.Docroot)

	// The pool starts on FIFO; SJF is installed by a live swap so a
	// failed construction just keeps the default policy.
	choice := cfg.ResolveScheduler(schedulerFlag, os.Getenv(config.SchedulerEnvVar), log)
	if choice == config.SchedulerSJF {
		s, err := sched.NewSJF(server.QueueCapacity)
		if err == nil {
			err = p.SetScheduler(s)
		}
		if err != nil {
			log.Warn("Using FIFO scheduler (sjf create failed: %v)", err)
		} else {
			log.Info("Using SJF scheduler")
		}
	} else {
		log.Info("Using FIFO scheduler")
	}

	// A terminating signal stops the accept loop by closing the
	// listener; everything else is ordinary shutdown sequencing.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	est := server.NewEstimator(cfg.Docroot)
	acc := server.NewAcceptor(ln, p, est, log, cfg.Server.AcceptRate)
	runErr := acc.Run(ctx)

	log.Info("shutting down")
	p.Destroy()
	ln.Close()
	if alog != nil {
		if err := alog.Close(); err != nil {
			log.Warn("access log close: %v", err)
		}
	}
	metrics.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = metrics.ShutdownPromServer(shutdownCtx)

	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
