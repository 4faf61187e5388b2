package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/mediastorage/internal/config"
	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/mailer"
	"github.com/marmos91/mediastorage/internal/telemetry"
	"github.com/marmos91/mediastorage/pkg/cachingproxy"
	"github.com/marmos91/mediastorage/pkg/metrics"
)

var (
	listenAddr string
	pidFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the caching proxy",
	Long: `Start the caching proxy: a local disk cache fronting a storage server's
get/describe traffic, with a background purger reclaiming expired entries.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/mediastorage/config.yaml.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&listenAddr, "addr", ":8081", "HTTP listen address")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: none)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "caching-proxy",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	metrics.InitRegistry(cfg.Metrics.Enabled)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	mail := mailer.New(mailer.Config{
		Enabled:  cfg.SMTP.Enabled,
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Timeout:  cfg.SMTP.Timeout,
		TLS:      cfg.SMTP.TLS,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		Subject:  cfg.SMTP.Subject,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
		Cooldown: cfg.SMTP.Cooldown,
	})

	cacheMetrics := metrics.NewCachingProxyMetrics(metrics.Registerer())
	proxy := cachingproxy.New(cachingproxy.Config{
		Root:           cfg.Storage.Path,
		MinCacheTime:   int64(cfg.Rules.MinCacheTime.Seconds()),
		MaxCacheTime:   int64(cfg.Rules.MaxCacheTime.Seconds()),
		RequestTimeout: cfg.Rules.Timeout,
		PurgeInterval:  cfg.Storage.PurgeInterval,
	}, cfg.Rules.Timeout, cacheMetrics, mail)

	if err := proxy.Start(); err != nil {
		return fmt.Errorf("failed to start caching proxy: %w", err)
	}
	defer proxy.Stop()

	cleanupPid, err := writePidFile(pidFile)
	if err != nil {
		return err
	}
	defer cleanupPid()

	httpServer := &http.Server{Addr: listenAddr, Handler: proxy.Server.NewRouter()}
	serverDone := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("caching proxy listening", "addr", listenAddr)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		<-serverDone
		logger.Info("caching proxy stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("caching proxy error", "error", err)
			return err
		}
		logger.Info("caching proxy stopped")
	}

	return nil
}
