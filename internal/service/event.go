package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xiaot623/panelsim/internal/adapter/notify"
	"github.com/xiaot623/panelsim/internal/domain"
)

// recordEvent records an event to the store.
func (s *Service) recordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) error {
	var payloadBytes json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return eris.Wrap(err, "failed to marshal payload")
		}
		payloadBytes = b
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      s.now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}
	return s.store.CreateEvent(ctx, event)
}

// traceEvent records an event and only logs a failure.
func (s *Service) traceEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, runID, eventType, payload); err != nil {
		s.logger.Error("failed to record event",
			zap.String("run_id", runID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// notifyStatus tells listeners about a transition; failures are logged.
func (s *Service) notifyStatus(ctx context.Context, run *domain.Run) {
	n := notify.Notification{
		RunID:        run.RunID,
		Status:       run.Status,
		ResearchType: string(run.ResearchType),
		ErrorMessage: run.ErrorMessage,
		Ts:           s.now().UTC(),
	}
	if run.Downloadable() {
		n.DownloadURL = DownloadURL(run.RunID)
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("run_id", run.RunID),
			zap.String("status", string(run.Status)),
			zap.Error(err))
	}
}
