// Package repository defines run persistence and its SQLite implementation.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/panelsim/internal/domain"
)

// Store defines the interface for run persistence.
type Store interface {
	// Run operations
	UpsertRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	// MarkRunStarted moves a queued run to running. It reports false when
	// the run was not queued.
	MarkRunStarted(ctx context.Context, runID string, startedAt time.Time) (bool, error)
	// MarkRunCompleted moves a non-terminal run to a terminal status. It
	// reports false when the run was already terminal.
	MarkRunCompleted(ctx context.Context, runID string, result RunResult) (bool, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Artifact blobs
	PutArtifact(ctx context.Context, key string, data []byte) error
	GetArtifact(ctx context.Context, key string) ([]byte, error)

	// Lifecycle
	Close() error
}

// RunResult holds the fields written when a run reaches a terminal status.
type RunResult struct {
	Status       domain.RunStatus
	CompletedAt  time.Time
	ArtifactRef  string
	ErrorMessage string
}
