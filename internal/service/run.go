package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xiaot623/panelsim/internal/adapter/artifact"
	"github.com/xiaot623/panelsim/internal/adapter/llm"
	"github.com/xiaot623/panelsim/internal/domain"
	"github.com/xiaot623/panelsim/internal/repository"
	"github.com/xiaot623/panelsim/internal/survey"
	"github.com/xiaot623/panelsim/internal/workbook"
)

// SubmitRun validates a brief, persists a queued run and starts it in the
// background. It returns without waiting for the run or its notifications.
func (s *Service) SubmitRun(ctx context.Context, body domain.CreateRunRequest) (*domain.CreateRunResponse, error) {
	if v := body.NullViolations(); len(v) > 0 {
		return nil, &domain.ValidationError{Violations: v}
	}
	req := body.ToRunRequest(s.opts.DefaultRespondents)
	if err := s.policyEngine.AdmitRun(ctx, req, s.opts.MaxRespondents); err != nil {
		return nil, err
	}

	run := &domain.Run{
		RunID:        uuid.New().String(),
		Status:       domain.RunStatusQueued,
		ResearchType: req.ResearchType,
		SegmentText:  req.SegmentText,
		Questions:    req.Questions,
		SampleSize:   req.SampleSize,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.UpsertRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "failed to create run")
	}

	s.traceEvent(ctx, run.RunID, domain.EventTypeRunQueued, domain.RunQueuedPayload{
		ResearchType:  req.ResearchType,
		SampleSize:    req.SampleSize,
		QuestionCount: len(req.Questions),
	})
	s.metrics.submitted.WithLabelValues(string(req.ResearchType)).Inc()

	s.logger.Info("run queued",
		zap.String("run_id", run.RunID),
		zap.String("research_type", string(req.ResearchType)),
		zap.Int("n_respondents", req.SampleSize),
		zap.Int("questions", len(req.Questions)))

	s.inflight.Add(1)
	go s.executeRun(run.RunID, req)

	return &domain.CreateRunResponse{
		RunID:       run.RunID,
		Status:      domain.RunStatusQueued,
		DownloadURL: DownloadURL(run.RunID),
	}, nil
}

// executeRun drives a queued run to a terminal status. Every error,
// panics included, ends the run as failed.
func (s *Service) executeRun(runID string, req domain.RunRequest) {
	defer s.inflight.Done()

	ctx := context.Background()
	logger := s.logger.With(zap.String("run_id", runID))
	startedAt := s.now().UTC()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("run panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.failRun(ctx, runID, req, startedAt, eris.Errorf("panic: %v", r))
		}
	}()

	// Queued is announced here, off the request path.
	s.notifyStatus(ctx, &domain.Run{RunID: runID, Status: domain.RunStatusQueued, ResearchType: req.ResearchType})
	startedAt = s.now().UTC()

	ok, err := s.store.MarkRunStarted(ctx, runID, startedAt)
	if err != nil {
		s.failRun(ctx, runID, req, startedAt, err)
		return
	}
	if !ok {
		logger.Warn("run is no longer queued, skipping")
		return
	}
	s.traceEvent(ctx, runID, domain.EventTypeRunStarted, nil)
	s.notifyStatus(ctx, &domain.Run{RunID: runID, Status: domain.RunStatusRunning, ResearchType: req.ResearchType})
	logger.Info("run started")

	ref, err := s.produceWorkbook(ctx, runID, req)
	if err != nil {
		s.failRun(ctx, runID, req, startedAt, err)
		return
	}

	s.completeRun(ctx, startedAt, &domain.Run{
		RunID:        runID,
		Status:       domain.RunStatusSucceeded,
		ResearchType: req.ResearchType,
		ArtifactRef:  ref,
	})
}

// produceWorkbook runs prompt, generation, parsing, tabulation and export,
// and stores the workbook. It returns the artifact reference.
func (s *Service) produceWorkbook(ctx context.Context, runID string, req domain.RunRequest) (string, error) {
	prompt := survey.BuildPrompt(req)

	reply, err := s.generate(ctx, runID, prompt)
	if err != nil {
		return "", err
	}

	parsed := s.parser.Parse(reply, req.Questions, req.SampleSize)
	if parsed.Fallback {
		s.metrics.fallbacks.Inc()
		s.traceEvent(ctx, runID, domain.EventTypeResponseFallback, domain.ResponseFallbackPayload{
			Reason:  parsed.Reason,
			Records: len(parsed.Records),
		})
		s.logger.Warn("model reply unusable, using fallback records",
			zap.String("run_id", runID),
			zap.String("reason", parsed.Reason))
	}

	table := survey.Tabulate(parsed.Records)
	data, err := workbook.Build(table, req.ResearchType)
	if err != nil {
		return "", eris.Wrap(err, "failed to build workbook")
	}

	ref, err := s.artifacts.Put(ctx, artifact.RunKey(runID), data)
	if err != nil {
		return "", eris.Wrap(err, "failed to store workbook")
	}
	s.traceEvent(ctx, runID, domain.EventTypeArtifactStored, domain.ArtifactStoredPayload{
		Ref:   ref,
		Bytes: len(data),
		Rows:  len(table.Rows),
	})
	return ref, nil
}

// generate makes the run's single call to the generation service.
func (s *Service) generate(ctx context.Context, runID string, prompt survey.Prompt) (string, error) {
	requestID := "llm_" + uuid.New().String()[:8]
	temperature := s.opts.Temperature
	maxTokens := s.opts.MaxTokens

	s.traceEvent(ctx, runID, domain.EventTypeLLMCallStarted, domain.LLMCallStartedPayload{
		RequestID: requestID,
		Model:     s.opts.Model,
	})

	start := time.Now()
	resp, err := s.llmClient.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: s.opts.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: prompt.System},
			{Role: llm.RoleUser, Content: prompt.User},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})

	done := domain.LLMCallDonePayload{
		RequestID: requestID,
		Model:     s.opts.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		done.Error = err.Error()
	} else if resp.Usage != nil {
		done.PromptTokens = resp.Usage.PromptTokens
		done.CompletionTokens = resp.Usage.CompletionTokens
		done.TotalTokens = resp.Usage.TotalTokens
	}
	s.traceEvent(ctx, runID, domain.EventTypeLLMCallDone, done)

	if err != nil {
		return "", eris.Wrap(err, "generation call failed")
	}
	return resp.Content(), nil
}

func (s *Service) failRun(ctx context.Context, runID string, req domain.RunRequest, startedAt time.Time, cause error) {
	msg := cause.Error()
	s.traceEvent(ctx, runID, domain.EventTypeRunFailed, domain.RunFailedPayload{Message: msg})
	s.completeRun(ctx, startedAt, &domain.Run{
		RunID:        runID,
		Status:       domain.RunStatusFailed,
		ResearchType: req.ResearchType,
		ErrorMessage: msg,
	})
}

// completeRun writes a terminal status. A run that is already terminal is
// left untouched.
func (s *Service) completeRun(ctx context.Context, startedAt time.Time, run *domain.Run) {
	logger := s.logger.With(zap.String("run_id", run.RunID))
	completedAt := s.now().UTC()

	ok, err := s.store.MarkRunCompleted(ctx, run.RunID, repository.RunResult{
		Status:       run.Status,
		CompletedAt:  completedAt,
		ArtifactRef:  run.ArtifactRef,
		ErrorMessage: run.ErrorMessage,
	})
	if err != nil {
		logger.Error("failed to record run outcome", zap.String("status", string(run.Status)), zap.Error(err))
		return
	}
	if !ok {
		logger.Warn("run already terminal, outcome dropped", zap.String("status", string(run.Status)))
		return
	}

	if run.Status == domain.RunStatusSucceeded {
		s.traceEvent(ctx, run.RunID, domain.EventTypeRunSucceeded, nil)
		logger.Info("run succeeded", zap.String("artifact_ref", run.ArtifactRef))
	} else {
		logger.Error("run failed", zap.String("error", run.ErrorMessage))
	}

	s.metrics.completed.WithLabelValues(string(run.Status)).Inc()
	s.metrics.duration.Observe(completedAt.Sub(startedAt).Seconds())
	run.CompletedAt = &completedAt
	s.notifyStatus(ctx, run)
}
