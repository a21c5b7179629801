package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mosaic/internal/app"
	"github.com/custodia-labs/mosaic/internal/core/services"
	"github.com/custodia-labs/mosaic/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled topic discovery in the foreground",
	Long: `Run the topic batch on the interval set by
scheduler.topic_discovery.interval (6h by default) until interrupted.

The topic file is watched and reloaded when it changes. Task state is kept
in ~/.mosaic/data/items.db so restarts keep the schedule. Run metrics are
served in Prometheus format on --metrics-addr.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().String("metrics-addr", ":9464", "address for /metrics (empty disables)")
	daemonCmd.Flags().Bool("json-logs", false, "log as JSON")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs { //nolint:errcheck // flag registered in init
		logger.SetJSON(true)
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	schedStore, err := a.SchedulerStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topics := app.NewTopics(a.Settings.Batch.TopicsFile, a.Settings.Batch.QueryTemplate, false)
	if err := topics.Watch(ctx); err != nil {
		logger.Warn("Topic file will not be reloaded: %v", err)
	}

	addr, _ := cmd.Flags().GetString("metrics-addr") //nolint:errcheck // flag registered in init
	if addr != "" {
		srv, err := serveMetrics(addr, a.Metrics.Handler())
		if err != nil {
			return err
		}
		cmd.Printf("Metrics on http://%s/metrics\n", srv.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	cfg := settingsService.GetSchedulerConfig()
	if !cfg.Enabled {
		cmd.Println(styles.Warning.Render("Scheduler is disabled (scheduler.enabled = false); waiting for interrupt."))
	}
	scheduler := services.NewScheduler(cfg, schedStore, a.Batch, a.TopicSource(topics))

	cmd.Println("Daemon started. Press Ctrl+C to stop.")
	err = scheduler.Start(ctx)
	_ = scheduler.Stop()
	if errors.Is(err, context.Canceled) {
		cmd.Println("Daemon stopped.")
		return nil
	}
	return err
}

// serveMetrics listens on addr and serves /metrics and /healthz in the
// background. The returned server's Addr is the bound address.
func serveMetrics(addr string, metrics http.Handler) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
	return srv, nil
}
