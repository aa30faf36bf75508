package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/botdock/botdock/internal/ai"
	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

// BlobStore yields the raw bytes of an uploaded file. A missing key maps to
// apperr.ErrNotFound so the pipeline can distinguish "storage still
// propagating" from a hard read failure.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// DocumentStore records ingestion outcomes on the document metadata record.
type DocumentStore interface {
	SetStatus(ctx context.Context, chatbotID, docID, status string, now int64) error
	SetComplete(ctx context.Context, chatbotID, docID string, chunkCount int, now int64) error
	SetFailed(ctx context.Context, chatbotID, docID, reason string, now int64) error
}

// VectorIndex is the per-chatbot namespace chunks are written into. Upsert
// must be keyed by (documentID, chunkIndex) so reruns overwrite.
type VectorIndex interface {
	Ensure(ctx context.Context, chatbotID string, dimension int) error
	Upsert(ctx context.Context, chunk *model.ChunkVector) error
}

type Extractor interface {
	Extract(data []byte, contentType string, fileName string) (string, error)
}

type Options struct {
	MaxChunkChars      int
	OverlapChars       int
	DownloadRetries    int
	DownloadRetryDelay time.Duration
	ChunkRetries       int
	ChunkRetryDelay    time.Duration
	ChunkWorkers       int
}

func (o *Options) applyDefaults() {
	if o.MaxChunkChars <= 0 {
		o.MaxChunkChars = defaultMaxChunkChars
	}
	if o.DownloadRetries <= 0 {
		o.DownloadRetries = 3
	}
	if o.DownloadRetryDelay <= 0 {
		o.DownloadRetryDelay = 2 * time.Second
	}
	if o.ChunkRetries <= 0 {
		o.ChunkRetries = 3
	}
	if o.ChunkRetryDelay <= 0 {
		o.ChunkRetryDelay = time.Second
	}
	if o.ChunkWorkers <= 0 {
		o.ChunkWorkers = 4
	}
}

// Pipeline turns one uploaded document into indexed chunk vectors:
// download, extract, chunk, embed+index, then record the terminal status.
// The outcome is all-or-nothing; partial progress is only ever visible as
// already-upserted vectors that the next (idempotent) run overwrites.
type Pipeline struct {
	blobs     BlobStore
	documents DocumentStore
	index     VectorIndex
	extractor Extractor
	embedder  ai.IEmbedder
	opts      Options
}

func NewPipeline(blobs BlobStore, documents DocumentStore, index VectorIndex, extractor Extractor, embedder ai.IEmbedder, opts Options) *Pipeline {
	opts.applyDefaults()
	return &Pipeline{
		blobs:     blobs,
		documents: documents,
		index:     index,
		extractor: extractor,
		embedder:  embedder,
		opts:      opts,
	}
}

// Process runs the full ingestion for one document record. The returned
// error is for the caller's logs; the user-visible outcome is whatever got
// written to the document record.
func (p *Pipeline) Process(ctx context.Context, doc *model.Document) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("chatbot_id", doc.ChatbotID),
		zap.String("document_id", doc.ID),
		zap.String("storage_key", doc.StorageKey),
	)
	if err := p.documents.SetStatus(ctx, doc.ChatbotID, doc.ID, model.DocumentStatusProcessing, time.Now().UnixMilli()); err != nil {
		logger.Error("mark processing failed", zap.Error(err))
		return err
	}

	data, err := p.download(ctx, doc.StorageKey, logger)
	if err != nil {
		return p.fail(ctx, doc, logger, fmt.Errorf("download: %w", err))
	}

	text, err := p.extractor.Extract(data, doc.ContentType, doc.FileName)
	if err != nil {
		return p.fail(ctx, doc, logger, err)
	}

	chunks := Chunk(text, p.opts.MaxChunkChars, p.opts.OverlapChars)
	logger.Info("document chunked", zap.Int("chunks", len(chunks)), zap.Int("text_len", len(text)))
	if len(chunks) == 0 {
		// nothing indexable; the document is still complete
		if err := p.documents.SetComplete(ctx, doc.ChatbotID, doc.ID, 0, time.Now().UnixMilli()); err != nil {
			logger.Error("mark complete failed", zap.Error(err))
			return err
		}
		return nil
	}

	if err := p.index.Ensure(ctx, doc.ChatbotID, p.embedder.Dimension()); err != nil {
		return p.fail(ctx, doc, logger, fmt.Errorf("%w: ensure index: %v", apperr.ErrIndexProvider, err))
	}

	if err := p.indexChunks(ctx, doc, chunks, logger); err != nil {
		return p.fail(ctx, doc, logger, err)
	}

	if err := p.documents.SetComplete(ctx, doc.ChatbotID, doc.ID, len(chunks), time.Now().UnixMilli()); err != nil {
		logger.Error("mark complete failed", zap.Error(err))
		return err
	}
	logger.Info("document ingested", zap.Int("chunks", len(chunks)))
	return nil
}

// download retries only the not-found case: the upload notification can
// land before storage is read-consistent. Everything else is immediately
// fatal.
func (p *Pipeline) download(ctx context.Context, key string, logger *zap.Logger) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= p.opts.DownloadRetries; attempt++ {
		data, err := p.blobs.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !apperr.IsNotFound(err) || attempt == p.opts.DownloadRetries {
			return nil, err
		}
		logger.Info("file not ready, waiting",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.opts.DownloadRetries),
		)
		if err := sleep(ctx, p.opts.DownloadRetryDelay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// indexChunks embeds and upserts every chunk with a bounded worker pool,
// collecting a per-chunk result and reducing to a single outcome. Write
// order across chunks is irrelevant: each upsert is independently keyed.
func (p *Pipeline) indexChunks(ctx context.Context, doc *model.Document, chunks []string, logger *zap.Logger) error {
	workers := p.opts.ChunkWorkers
	if workers > len(chunks) {
		workers = len(chunks)
	}
	jobs := make(chan int)
	results := make([]error, len(chunks))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.indexOne(ctx, doc, i, chunks[i])
			}
		}()
	}
	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := 0
	var firstErr error
	for i, err := range results {
		if err == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	if failed > 0 {
		logger.Error("chunk indexing failed",
			zap.Int("failed", failed),
			zap.Int("total", len(chunks)),
			zap.Error(firstErr),
		)
		return firstErr
	}
	return nil
}

func (p *Pipeline) indexOne(ctx context.Context, doc *model.Document, idx int, text string) error {
	var lastErr error
	for attempt := 1; attempt <= p.opts.ChunkRetries; attempt++ {
		lastErr = p.embedAndUpsert(ctx, doc, idx, text)
		if lastErr == nil {
			return nil
		}
		// index provider failures are configuration-level, not transient
		if apperr.IsTerminalIngest(lastErr) {
			return lastErr
		}
		if attempt < p.opts.ChunkRetries {
			if err := sleep(ctx, p.opts.ChunkRetryDelay); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func (p *Pipeline) embedAndUpsert(ctx context.Context, doc *model.Document, idx int, text string) error {
	vec, err := p.embedder.Embed(ctx, text, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return err
	}
	return p.index.Upsert(ctx, &model.ChunkVector{
		DocumentID: doc.ID,
		ChunkIndex: idx,
		ChatbotID:  doc.ChatbotID,
		Text:       text,
		SourceRef:  doc.StorageKey,
		Embedding:  vec,
		Ctime:      time.Now().UnixMilli(),
	})
}

func (p *Pipeline) fail(ctx context.Context, doc *model.Document, logger *zap.Logger, cause error) error {
	logger.Error("ingestion failed", zap.Error(cause))
	if err := p.documents.SetFailed(ctx, doc.ChatbotID, doc.ID, cause.Error(), time.Now().UnixMilli()); err != nil {
		logger.Error("mark failed failed", zap.Error(err))
	}
	return cause
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
