package service

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"

	"github.com/xiaot623/panelsim/internal/domain"
	"github.com/xiaot623/panelsim/internal/workbook"
)

// Download is a run's workbook, either as a stream or as a redirect.
type Download struct {
	Filename    string
	ContentType string
	// RedirectURL is set when the workbook is hosted elsewhere; Body is nil then.
	RedirectURL string
	Body        io.ReadCloser
}

// GetRun returns the stored run or domain.ErrRunNotFound.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get run")
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

// GetRunStatus returns the polled view of a run. download_url is set only
// once the run has succeeded.
func (s *Service) GetRunStatus(ctx context.Context, runID string) (*domain.RunStatusResponse, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	resp := &domain.RunStatusResponse{
		RunID:       run.RunID,
		Status:      run.Status,
		CreatedAt:   run.CreatedAt,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	if run.Downloadable() {
		url := DownloadURL(run.RunID)
		resp.DownloadURL = &url
	}
	if run.Status == domain.RunStatusFailed {
		resp.ErrorMessage = run.ErrorMessage
	}
	return resp, nil
}

// GetPreview summarizes a succeeded run from its stored brief.
func (s *Service) GetPreview(ctx context.Context, runID string) (*domain.RunPreview, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunStatusSucceeded {
		return nil, &domain.NotReadyError{RunID: runID, Status: run.Status}
	}
	questions := run.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return &domain.RunPreview{
		RunID:        run.RunID,
		ResearchType: run.ResearchType,
		SampleSize:   run.SampleSize,
		Questions:    questions,
		Status:       run.Status,
	}, nil
}

// OpenDownload returns the workbook of a succeeded run. The caller closes
// Body when it is set.
func (s *Service) OpenDownload(ctx context.Context, runID string) (*Download, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Downloadable() {
		return nil, &domain.NotReadyError{RunID: runID, Status: run.Status}
	}

	dl := &Download{
		Filename:    fmt.Sprintf("%s.xlsx", run.RunID),
		ContentType: workbook.ContentType,
	}
	if url, ok := s.artifacts.RedirectURL(run.ArtifactRef); ok {
		dl.RedirectURL = url
		return dl, nil
	}
	body, err := s.artifacts.Open(ctx, run.ArtifactRef)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open artifact of run %s", runID)
	}
	dl.Body = body
	return dl, nil
}

// GetRunEvents lists the lifecycle events of an existing run.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get run events")
	}
	return events, nil
}
