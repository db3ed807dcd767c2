package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/overlaycast/supporter-monitor/internal/config"
	"github.com/overlaycast/supporter-monitor/internal/ingress"
	"github.com/overlaycast/supporter-monitor/internal/monitor"
	"github.com/overlaycast/supporter-monitor/internal/rpcjson"
	"github.com/overlaycast/supporter-monitor/pkg/supporterrpc"
)

var (
	ingressAddr    string
	metricsAddr    string
	statsFile      string
	logLevel       string
	maxConcurrency int

	peerRequiredMsgs    int
	peerTimeoutBound    time.Duration
	isAliveTimeoutBound time.Duration
	peerRemovalTime     time.Duration
	tickInterval        time.Duration
	assignmentTTL       time.Duration

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "supporter-monitor",
	Short: "Peer-assisted content distribution supporter monitor",
	Long: `supporter-monitor tracks overlay peers and the supporters assigned
to serve them, classifying peers into a small state machine and assigning
starving peers onto supporters with spare capacity on a fixed tick.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("supporter-monitor %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the supporter monitor daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(logLevel)

		cfg := config.Default()
		cfg.IngressAddr = ingressAddr
		cfg.MetricsAddr = metricsAddr
		cfg.StatsFile = statsFile
		cfg.MaxConcurrency = maxConcurrency
		cfg.PeerRequiredMsgs = peerRequiredMsgs
		cfg.PeerTimeoutBound = peerTimeoutBound
		cfg.IsAliveTimeoutBound = isAliveTimeoutBound
		cfg.PeerRemovalTime = peerRemovalTime
		cfg.TickInterval = tickInterval
		cfg.AssignmentTTL = assignmentTTL
		if err := cfg.Validate(); err != nil {
			log.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := run(ctx, log, cfg); err != nil {
			log.Error("supporter-monitor exited with error", "error", err)
			os.Exit(1)
		}
		return nil
	},
}

func run(ctx context.Context, log *slog.Logger, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(reg)

	var stats *monitor.StatsSink
	if cfg.StatsFile != "" {
		f, err := os.OpenFile(cfg.StatsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open stats file: %w", err)
		}
		defer f.Close()
		stats = monitor.NewStatsSink(f)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	dispatcher := supporterrpc.NewGRPCDispatcher(log, supporterrpc.DispatcherConfig{
		MaxConcurrency: cfg.MaxConcurrency,
		DialOptions:    dialOpts,
		Metrics:        metrics,
	})

	clock := clockwork.NewRealClock()
	monitorCfg := cfg.MonitorConfig(clock)

	coordOpts := []monitor.Option{WithOptionalStatsSink(stats), WithOptionalMetrics(metrics)}
	if cfg.AssignmentTTL > 0 {
		coordOpts = append(coordOpts, monitor.WithAssignmentTTL(cfg.AssignmentTTL))
	}
	coordinator, err := monitor.NewCoordinator(log, monitorCfg, dispatcher, coordOpts...)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.IngressAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.IngressAddr, err)
	}
	grpcServer := grpc.NewServer()
	ingress.Register(grpcServer, ingress.NewServer(log, coordinator))

	errChan := make(chan error, 2)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	go func() {
		log.Info("ingress listening", "addr", cfg.IngressAddr, "codec", rpcjson.Name)
		if err := grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("ingress server: %w", err)
		}
	}()

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		// Ticks run on a context that shutdown does not cancel, so a probe or
		// dispatch round already in progress is allowed to finish.
		tickCtx := context.WithoutCancel(ctx)
		ticker := clock.NewTicker(monitorCfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				coordinator.Tick(tickCtx)
			}
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		grpcServer.GracefulStop()
		<-tickDone
		return nil
	case err := <-errChan:
		grpcServer.GracefulStop()
		return err
	}
}

// WithOptionalStatsSink is a nil-tolerant wrapper around
// monitor.WithStatsSink: for a nil sink it returns an option that leaves the
// coordinator's stats sink unset.
func WithOptionalStatsSink(sink *monitor.StatsSink) monitor.Option {
	if sink == nil {
		return func(*monitor.Coordinator) {}
	}
	return monitor.WithStatsSink(sink)
}

// WithOptionalMetrics mirrors WithOptionalStatsSink for *monitor.Metrics.
func WithOptionalMetrics(m *monitor.Metrics) monitor.Option {
	if m == nil {
		return func(*monitor.Coordinator) {}
	}
	return monitor.WithMetrics(m)
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: lvl,
	}))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")

	runCmd.Flags().StringVar(&ingressAddr, "ingress-addr", config.DefaultIngressAddr, "Address to listen on for peer-facing ingress RPC")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Address to bind the Prometheus metrics server to")
	runCmd.Flags().StringVar(&statsFile, "stats-file", "", "File to append tab-separated per-tick state snapshots to")
	runCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 8, "Maximum concurrent supporter RPCs per probe or dispatch round")
	runCmd.Flags().IntVar(&peerRequiredMsgs, "peer-required-msgs", 0, "Override the sliding-window admission threshold (0 = spec default)")
	runCmd.Flags().DurationVar(&peerTimeoutBound, "peer-timeout-bound", 0, "Override the Supported-state grace period (0 = spec default)")
	runCmd.Flags().DurationVar(&isAliveTimeoutBound, "is-alive-timeout-bound", 0, "Override the is-alive staleness bound (0 = spec default)")
	runCmd.Flags().DurationVar(&peerRemovalTime, "peer-removal-time", 0, "Override the any-message staleness bound for reaping peers (0 = spec default)")
	runCmd.Flags().DurationVar(&tickInterval, "tick-interval", 0, "Override the coordinator's tick cadence (0 = spec default)")
	runCmd.Flags().DurationVar(&assignmentTTL, "assignment-ttl", 0, "TTL for the historical assignment counter (0 = never evict)")

	rootCmd.AddCommand(runCmd)
}

func main() {
	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
