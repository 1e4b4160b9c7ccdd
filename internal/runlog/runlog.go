// Package runlog records one row per ingestion run so past activity can be
// inspected after the fact.
package runlog

import (
	"context"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Run struct {
	ID         string
	Script     string
	Status     Status
	Symbols    int
	Succeeded  int
	Failed     int
	Inserted   int64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
}
