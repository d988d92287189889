// Command kestrelmon runs a simulated kestrel runtime and observes its
// callback traffic: Prometheus metrics, optional Lua agents, and SIGQUIT
// handling, all attached through the runtime callback dispatcher.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kestrelvm/kestrel/internal/agent"
	"github.com/kestrelvm/kestrel/internal/callbacks"
	"github.com/kestrelvm/kestrel/internal/sigbridge"
	"github.com/kestrelvm/kestrel/internal/simvm"
	"github.com/kestrelvm/kestrel/internal/telemetry"
)

type options struct {
	agentDir    string
	metricsAddr string
	threads     int
	classes     int
	iterations  int
	timeout     time.Duration
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "kestrelmon",
		Short:        "Run a simulated kestrel runtime and watch its lifecycle events",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.agentDir, "agent-dir", "", "directory of Lua agent scripts to load")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9135")
	cmd.Flags().IntVar(&opts.threads, "threads", 4, "simulated runtime threads")
	cmd.Flags().IntVar(&opts.classes, "classes", 8, "classes pushed through the definition pipeline")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 16, "event rounds per simulated thread")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "maximum workload run time")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	return cmd
}

func run(opts *options) error {
	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	dispatcher := callbacks.New(callbacks.WithLogger(log))

	// Observers register before any dispatch traffic starts; this is the
	// exclusive-access window the registration contract requires.
	reg := prometheus.NewRegistry()
	collector := telemetry.NewCollector(reg)
	collector.Attach(dispatcher)

	if opts.agentDir != "" {
		mgr, err := agent.LoadDir(opts.agentDir, log)
		if err != nil {
			return err
		}
		mgr.AttachAll(dispatcher)
		defer mgr.Close()
	}

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, reg, log)
		defer shutdownMetrics(srv, log)
	}

	relay := sigbridge.New(dispatcher, sigbridge.WithLogger(log))
	relay.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	dispatcher.StartDebugger()
	log.Info().Bool("debugger_configured", dispatcher.IsDebuggerConfigured()).
		Msg("runtime starting")

	workload := simvm.New(dispatcher, simvm.Config{
		Threads:    opts.threads,
		Classes:    opts.classes,
		Iterations: opts.iterations,
	}, simvm.WithLogger(log))

	runErr := workload.Run(ctx)

	// Teardown order matters: stop every dispatch source first, then the
	// lock-exempt debugger shutdown.
	relay.Stop()
	dispatcher.StopDebugger()

	stats := dispatcher.Stats()
	log.Info().
		Uint64("dispatches", stats.Dispatches).
		Uint64("invocations", stats.Invocations).
		Uint64("registered", stats.Registered).
		Msg("runtime finished")

	return runErr
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
}
