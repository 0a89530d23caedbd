package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agleyzer/hlsmonitor/internal/api"
	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API and every configured monitor",
	Long: `Start the HTTP server exposing monitor CRUD and status endpoints, and
launch a Monitor (Active) for every [[monitor]] entry in the configuration
file, along with the webhook dispatcher for every [[webhook]] subscription.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	appCfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(appCfg.Server.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifyCh := make(chan engine.Notification, 256)
	onCreate := func(m *engine.Monitor) {
		go forwardNotifications(ctx, m, notifyCh)
	}

	reg := api.NewRegistry(logger, onCreate)

	for _, def := range appCfg.Monitor {
		monCfg := def.ToMonitorConfig(appCfg.Defaults)
		m := engine.New(def.ID, monCfg, def.ToStreamItems(), logger.With("monitor_id", def.ID))
		reg.Add(m)
		go forwardNotifications(ctx, m, notifyCh)
		if err := m.Start(ctx); err != nil {
			return fmt.Errorf("starting monitor %q: %w", def.ID, err)
		}
		logger.Info("monitor started", "monitor_id", m.ID(), "alias", def.ID, "streams", len(def.Streams))
	}

	if len(appCfg.Webhook) > 0 {
		webhooks := make([]engine.Webhook, len(appCfg.Webhook))
		for i, wh := range appCfg.Webhook {
			eventTypes := make([]engine.NotificationType, len(wh.Events))
			for j, e := range wh.Events {
				eventTypes[j] = engine.NotificationType(e)
			}
			webhooks[i] = engine.Webhook{URL: wh.URL, Secret: wh.Secret, EventTypes: eventTypes}
		}
		dispatcher := engine.NewDispatcher(webhooks, engine.DefaultDispatcherConfig(), logger.With("component", "webhook_dispatcher"))
		go dispatcher.Run(ctx, notifyCh)
	}

	httpServer := &http.Server{
		Addr:              appCfg.Server.Listen,
		Handler:           api.Router(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		for _, m := range reg.All() {
			m.Stop()
		}
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Info("hlsmonitor serving", "listen", appCfg.Server.Listen, "monitors", len(appCfg.Monitor))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func forwardNotifications(ctx context.Context, m *engine.Monitor, out chan<- engine.Notification) {
	in := m.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}
}
