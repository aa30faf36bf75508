package ingest

import (
	"context"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/botdock/botdock/internal/model"
)

// Dispatcher runs document ingestions asynchronously on a bounded worker
// pool. Documents are independent of each other; the only shared state is
// the external stores the pipeline writes to.
type Dispatcher struct {
	pipeline *Pipeline
	tasks    chan *model.Document
	workers  int

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	done      chan struct{}
}

func NewDispatcher(pipeline *Pipeline, workers int, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		pipeline: pipeline,
		tasks:    make(chan *model.Document, queueSize),
		workers:  workers,
		done:     make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for w := 0; w < d.workers; w++ {
			d.wg.Add(1)
			go d.run(ctx)
		}
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case doc := <-d.tasks:
			// the pipeline records its own outcome; the error here is
			// already logged with full context
			_ = d.pipeline.Process(ctx, doc)
		}
	}
}

// Enqueue schedules a document for ingestion. Returns false when the queue
// is full; the caller leaves the record pending and the sweep job retries.
func (d *Dispatcher) Enqueue(ctx context.Context, doc *model.Document) bool {
	select {
	case d.tasks <- doc:
		return true
	default:
		logutil.GetLogger(ctx).Warn("ingest queue full, leaving document pending",
			zap.String("chatbot_id", doc.ChatbotID),
			zap.String("document_id", doc.ID),
		)
		return false
	}
}

func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
