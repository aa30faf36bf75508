package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/botdock/botdock/internal/model"
)

type fakeStaleLister struct {
	docs       []model.Document
	err        error
	lastCutoff int64
}

func (f *fakeStaleLister) ListStale(ctx context.Context, cutoff int64, limit uint) ([]model.Document, error) {
	f.lastCutoff = cutoff
	return f.docs, f.err
}

type fakeEnqueuer struct {
	enqueued []string
	capacity int
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, doc *model.Document) bool {
	if f.capacity > 0 && len(f.enqueued) >= f.capacity {
		return false
	}
	f.enqueued = append(f.enqueued, doc.ID)
	return true
}

func TestSweepRequeuesStaleDocuments(t *testing.T) {
	lister := &fakeStaleLister{docs: []model.Document{
		{ID: "a", Status: model.DocumentStatusPending},
		{ID: "b", Status: model.DocumentStatusProcessing},
	}}
	queue := &fakeEnqueuer{}
	job := NewSweepJob(lister, queue, 10*time.Minute)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []string{"a", "b"}, queue.enqueued)

	// cutoff is staleAfter in the past
	require.Less(t, lister.lastCutoff, time.Now().UnixMilli())
	require.Greater(t, lister.lastCutoff, time.Now().Add(-11*time.Minute).UnixMilli())
}

func TestSweepStopsWhenQueueFull(t *testing.T) {
	lister := &fakeStaleLister{docs: []model.Document{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	queue := &fakeEnqueuer{capacity: 1}
	job := NewSweepJob(lister, queue, time.Minute)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []string{"a"}, queue.enqueued)
}

func TestSweepPropagatesListError(t *testing.T) {
	lister := &fakeStaleLister{err: fmt.Errorf("db down")}
	job := NewSweepJob(lister, &fakeEnqueuer{}, time.Minute)
	require.Error(t, job.Run(context.Background()))
}

func TestSweepNoStaleDocuments(t *testing.T) {
	queue := &fakeEnqueuer{}
	job := NewSweepJob(&fakeStaleLister{}, queue, time.Minute)
	require.NoError(t, job.Run(context.Background()))
	require.Empty(t, queue.enqueued)
}
