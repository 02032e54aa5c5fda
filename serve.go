package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/panelsim/internal/adapter/artifact"
	"github.com/xiaot623/panelsim/internal/adapter/llm"
	"github.com/xiaot623/panelsim/internal/adapter/notify"
	"github.com/xiaot623/panelsim/internal/config"
	"github.com/xiaot623/panelsim/internal/repository"
	"github.com/xiaot623/panelsim/internal/service"
	transporthttp "github.com/xiaot623/panelsim/internal/transport/http"
	"github.com/xiaot623/panelsim/policy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting panelsim",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("artifact_backend", cfg.Artifacts.Backend))

	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return eris.Wrap(err, "failed to initialize store")
	}
	defer db.Close()

	llmClient, err := llm.NewLLMClient(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return eris.Wrap(err, "failed to initialize llm client")
	}

	artifacts, err := newArtifactStore(cfg.Artifacts, db)
	if err != nil {
		return eris.Wrap(err, "failed to initialize artifact store")
	}

	notifier, closeNotifier, err := newNotifier(cfg.Notify)
	if err != nil {
		return eris.Wrap(err, "failed to initialize notifier")
	}
	defer closeNotifier()

	policyEngine, err := policy.Load(ctx, cfg.PolicyFile)
	if err != nil {
		return eris.Wrap(err, "failed to initialize policy engine")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := service.New(db, llmClient, artifacts, notifier, policyEngine, service.NewMetrics(registry), serviceOptions(cfg), logger)
	server := transporthttp.NewServer(svc, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("HTTP API listening", zap.String("addr", addr))
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(server, svc)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("panelsim stopped")
	return nil
}

// shutdown stops accepting requests, then waits for in-flight runs.
func shutdown(server *echo.Echo, svc *service.Service) error {
	logger.Info("shutting down panelsim", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown http server gracefully", zap.Error(err))
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		logger.Warn("in-flight runs did not finish before shutdown", zap.Error(err))
	}
	return nil
}

func serviceOptions(c *config.Config) service.Options {
	return service.Options{
		Model:              c.LLM.Model,
		Temperature:        c.LLM.Temperature,
		MaxTokens:          c.LLM.MaxTokens,
		DefaultRespondents: c.Runs.DefaultRespondents,
		MaxRespondents:     c.Runs.MaxRespondents,
	}
}

func newArtifactStore(c config.ArtifactConfig, db *repository.SQLiteStore) (artifact.Store, error) {
	switch c.Backend {
	case "db":
		return artifact.NewDBStore(db), nil
	default:
		return artifact.NewFileStore(c.Dir, c.PublicBaseURL)
	}
}

// newNotifier assembles the configured notifiers. The returned func closes
// any connection it opened.
func newNotifier(c config.NotifyConfig) (notify.Notifier, func(), error) {
	var notifiers notify.Multi
	closeFn := func() {}

	if c.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(c.WebhookURL))
	}
	if c.NATSURL != "" {
		n, err := notify.ConnectNATS(c.NATSURL, c.NATSSubject)
		if err != nil {
			return nil, closeFn, err
		}
		notifiers = append(notifiers, n)
		closeFn = func() {
			if err := n.Close(); err != nil {
				logger.Warn("failed to drain nats connection", zap.Error(err))
			}
		}
	}

	if len(notifiers) == 0 {
		return notify.Nop{}, closeFn, nil
	}
	return notifiers, closeFn, nil
}
