// Package service runs briefs through the respondent simulation pipeline.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/panelsim/internal/adapter/artifact"
	"github.com/xiaot623/panelsim/internal/adapter/llm"
	"github.com/xiaot623/panelsim/internal/adapter/notify"
	"github.com/xiaot623/panelsim/internal/repository"
	"github.com/xiaot623/panelsim/internal/survey"
	"github.com/xiaot623/panelsim/policy"
)

// Options tunes the generation call and brief defaults.
type Options struct {
	Model              string
	Temperature        float64
	MaxTokens          int
	DefaultRespondents int
	MaxRespondents     int
}

// DefaultOptions mirrors the built-in configuration.
func DefaultOptions() Options {
	return Options{
		Model:              "gpt-4o-mini",
		Temperature:        0.8,
		MaxTokens:          4096,
		DefaultRespondents: 25,
		MaxRespondents:     500,
	}
}

// Service owns the run lifecycle. It is the only writer of run records.
type Service struct {
	store        repository.Store
	llmClient    llm.LLMClient
	artifacts    artifact.Store
	notifier     notify.Notifier
	policyEngine *policy.Engine
	metrics      *Metrics
	parser       *survey.Parser
	opts         Options
	logger       *zap.Logger
	now          func() time.Time

	inflight sync.WaitGroup
}

func New(store repository.Store, llmClient llm.LLMClient, artifacts artifact.Store, notifier notify.Notifier, policyEngine *policy.Engine, metrics *Metrics, opts Options, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		llmClient:    llmClient,
		artifacts:    artifacts,
		notifier:     notifier,
		policyEngine: policyEngine,
		metrics:      metrics,
		parser:       survey.NewParser(),
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}
}

// Metrics returns the service's collectors.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Wait blocks until every in-flight run has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DownloadURL is the API path serving a run's workbook.
func DownloadURL(runID string) string {
	return fmt.Sprintf("/api/runs/%s/download", runID)
}
