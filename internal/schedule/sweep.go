package schedule

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/botdock/botdock/internal/model"
)

// StaleDocumentLister finds documents stuck in a non-terminal status.
type StaleDocumentLister interface {
	ListStale(ctx context.Context, cutoff int64, limit uint) ([]model.Document, error)
}

type DocumentEnqueuer interface {
	Enqueue(ctx context.Context, doc *model.Document) bool
}

// SweepJob re-submits documents whose ingestion never reached a terminal
// status: the enqueue was dropped on a full queue, or the process died
// mid-run. Ingestion is idempotent, so re-running a half-indexed document
// is safe.
type SweepJob struct {
	docs       StaleDocumentLister
	queue      DocumentEnqueuer
	staleAfter time.Duration
	batch      uint
}

func NewSweepJob(docs StaleDocumentLister, queue DocumentEnqueuer, staleAfter time.Duration) *SweepJob {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &SweepJob{docs: docs, queue: queue, staleAfter: staleAfter, batch: 100}
}

func (j *SweepJob) Name() string {
	return "ingest_sweep"
}

func (j *SweepJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.staleAfter).UnixMilli()
	docs, err := j.docs.ListStale(ctx, cutoff, j.batch)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	logger := logutil.GetLogger(ctx)
	requeued := 0
	for i := range docs {
		if !j.queue.Enqueue(ctx, &docs[i]) {
			break
		}
		requeued++
	}
	logger.Info("stale documents swept",
		zap.Int("found", len(docs)),
		zap.Int("requeued", requeued),
	)
	return nil
}
