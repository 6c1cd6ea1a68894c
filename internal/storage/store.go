package storage

import (
	"context"

	"github.com/Soamid/evogil-sub000/internal/model"
)

// Store persists finalized run results. Intermediate tree state is never
// written.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns summaries ordered by creation time, then id.
	ListRuns(ctx context.Context) ([]model.RunSummary, error)
}
