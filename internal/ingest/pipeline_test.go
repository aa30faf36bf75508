package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

type fakeBlobStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	failures int
	calls    int
}

func (f *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, key)
	}
	data, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, key)
	}
	return data, nil
}

type fakeDocumentStore struct {
	mu         sync.Mutex
	statuses   []string
	chunkCount int
	failReason string
}

func (f *fakeDocumentStore) SetStatus(ctx context.Context, chatbotID, docID, status string, now int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeDocumentStore) SetComplete(ctx context.Context, chatbotID, docID string, chunkCount int, now int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, model.DocumentStatusComplete)
	f.chunkCount = chunkCount
	return nil
}

func (f *fakeDocumentStore) SetFailed(ctx context.Context, chatbotID, docID, reason string, now int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, model.DocumentStatusFailed)
	f.failReason = reason
	return nil
}

func (f *fakeDocumentStore) lastStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

type fakeVectorIndex struct {
	mu          sync.Mutex
	ensured     map[string]int
	chunks      map[string]*model.ChunkVector
	upsertErr   error
	upsertCalls int
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{
		ensured: make(map[string]int),
		chunks:  make(map[string]*model.ChunkVector),
	}
}

func (f *fakeVectorIndex) Ensure(ctx context.Context, chatbotID string, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[chatbotID] = dimension
	return nil
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, chunk *model.ChunkVector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	key := fmt.Sprintf("%s/%d", chunk.DocumentID, chunk.ChunkIndex)
	f.chunks[key] = chunk
	return nil
}

func (f *fakeVectorIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(data []byte, contentType string, fileName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(data), nil
}

type fakeEmbedder struct {
	mu        sync.Mutex
	dimension int
	err       error
	failFor   string
	calls     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failFor != "" && text == f.failFor {
		return nil, fmt.Errorf("%w: boom", apperr.ErrEmbeddingProvider)
	}
	vec := make([]float32, f.dimension)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }
func (f *fakeEmbedder) Dimension() int    { return f.dimension }

func testDoc() *model.Document {
	return &model.Document{
		ID:          "doc-1",
		ChatbotID:   "bot-1",
		OrgID:       "org-1",
		StorageKey:  "chatbots/bot-1/doc-1/file.txt",
		FileName:    "file.txt",
		ContentType: "text/plain",
		Status:      model.DocumentStatusPending,
	}
}

func fastOpts() Options {
	return Options{
		MaxChunkChars:      80,
		DownloadRetries:    3,
		DownloadRetryDelay: time.Millisecond,
		ChunkRetries:       2,
		ChunkRetryDelay:    time.Millisecond,
		ChunkWorkers:       2,
	}
}

func TestPipelineProcessSuccess(t *testing.T) {
	doc := testDoc()
	text := "First paragraph of content.\n\nSecond paragraph of content.\n\nThird paragraph of content."
	blobs := &fakeBlobStore{data: map[string][]byte{doc.StorageKey: []byte(text)}}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()
	emb := &fakeEmbedder{dimension: 8}

	p := NewPipeline(blobs, docs, idx, &fakeExtractor{}, emb, fastOpts())
	require.NoError(t, p.Process(context.Background(), doc))

	require.Equal(t, model.DocumentStatusComplete, docs.lastStatus())
	require.Equal(t, model.DocumentStatusProcessing, docs.statuses[0])
	require.Equal(t, idx.count(), docs.chunkCount)
	require.Greater(t, docs.chunkCount, 1)
	require.Equal(t, 8, idx.ensured[doc.ChatbotID])
	for key, chunk := range idx.chunks {
		require.Equal(t, doc.ID, chunk.DocumentID)
		require.Equal(t, doc.StorageKey, chunk.SourceRef)
		require.Len(t, chunk.Embedding, 8)
		require.NotEmpty(t, key)
	}
}

func TestPipelineProcessEmptyDocumentCompletesWithoutIndex(t *testing.T) {
	doc := testDoc()
	blobs := &fakeBlobStore{data: map[string][]byte{doc.StorageKey: []byte("   \n\n   ")}}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()

	p := NewPipeline(blobs, docs, idx, &fakeExtractor{}, &fakeEmbedder{dimension: 8}, fastOpts())
	require.NoError(t, p.Process(context.Background(), doc))

	require.Equal(t, model.DocumentStatusComplete, docs.lastStatus())
	require.Equal(t, 0, docs.chunkCount)
	require.Empty(t, idx.ensured)
	require.Zero(t, idx.count())
}

func TestPipelineProcessRetriesMissingBlob(t *testing.T) {
	doc := testDoc()
	blobs := &fakeBlobStore{
		data:     map[string][]byte{doc.StorageKey: []byte("Some indexable content here.")},
		failures: 2,
	}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()

	p := NewPipeline(blobs, docs, idx, &fakeExtractor{}, &fakeEmbedder{dimension: 4}, fastOpts())
	require.NoError(t, p.Process(context.Background(), doc))
	require.Equal(t, 3, blobs.calls)
	require.Equal(t, model.DocumentStatusComplete, docs.lastStatus())
}

func TestPipelineProcessFailsWhenBlobNeverAppears(t *testing.T) {
	doc := testDoc()
	blobs := &fakeBlobStore{data: map[string][]byte{}}
	docs := &fakeDocumentStore{}

	p := NewPipeline(blobs, docs, newFakeVectorIndex(), &fakeExtractor{}, &fakeEmbedder{dimension: 4}, fastOpts())
	err := p.Process(context.Background(), doc)
	require.Error(t, err)
	require.Equal(t, 3, blobs.calls)
	require.Equal(t, model.DocumentStatusFailed, docs.lastStatus())
	require.NotEmpty(t, docs.failReason)
}

func TestPipelineProcessExtractionFailureIsTerminal(t *testing.T) {
	doc := testDoc()
	blobs := &fakeBlobStore{data: map[string][]byte{doc.StorageKey: []byte("%PDF garbage")}}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()
	extractor := &fakeExtractor{err: fmt.Errorf("%w: broken", apperr.ErrExtraction)}

	p := NewPipeline(blobs, docs, idx, extractor, &fakeEmbedder{dimension: 4}, fastOpts())
	err := p.Process(context.Background(), doc)
	require.ErrorIs(t, err, apperr.ErrExtraction)
	require.Equal(t, model.DocumentStatusFailed, docs.lastStatus())
	require.Empty(t, idx.ensured)
}

func TestPipelineProcessChunkFailureFailsDocument(t *testing.T) {
	doc := testDoc()
	text := "Good first paragraph here.\n\nThis paragraph will fail to embed.\n\nGood last paragraph here."
	blobs := &fakeBlobStore{data: map[string][]byte{doc.StorageKey: []byte(text)}}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()
	emb := &fakeEmbedder{dimension: 4, failFor: "This paragraph will fail to embed."}

	opts := fastOpts()
	opts.MaxChunkChars = 40
	p := NewPipeline(blobs, docs, idx, &fakeExtractor{}, emb, opts)
	err := p.Process(context.Background(), doc)
	require.ErrorIs(t, err, apperr.ErrEmbeddingProvider)
	require.Equal(t, model.DocumentStatusFailed, docs.lastStatus())
	require.Contains(t, docs.failReason, "chunk")
}

func TestPipelineProcessIndexErrorNotRetried(t *testing.T) {
	doc := testDoc()
	blobs := &fakeBlobStore{data: map[string][]byte{doc.StorageKey: []byte("Single paragraph of content.")}}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()
	idx.upsertErr = fmt.Errorf("%w: wrong vector dimension", apperr.ErrIndexProvider)

	opts := fastOpts()
	opts.ChunkRetries = 3
	p := NewPipeline(blobs, docs, idx, &fakeExtractor{}, &fakeEmbedder{dimension: 4}, opts)
	err := p.Process(context.Background(), doc)
	require.ErrorIs(t, err, apperr.ErrIndexProvider)
	require.Equal(t, 1, idx.upsertCalls)
	require.Equal(t, model.DocumentStatusFailed, docs.lastStatus())
}

func TestPipelineProcessTransientIndexErrorRetried(t *testing.T) {
	doc := testDoc()
	blobs := &fakeBlobStore{data: map[string][]byte{doc.StorageKey: []byte("Single paragraph of content.")}}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()
	idx.upsertErr = fmt.Errorf("connection reset")

	opts := fastOpts()
	opts.ChunkRetries = 3
	p := NewPipeline(blobs, docs, idx, &fakeExtractor{}, &fakeEmbedder{dimension: 4}, opts)
	require.Error(t, p.Process(context.Background(), doc))
	require.Equal(t, 3, idx.upsertCalls)
	require.Equal(t, model.DocumentStatusFailed, docs.lastStatus())
}

func TestPipelineProcessRerunOverwrites(t *testing.T) {
	doc := testDoc()
	text := "Alpha paragraph content.\n\nBeta paragraph content."
	blobs := &fakeBlobStore{data: map[string][]byte{doc.StorageKey: []byte(text)}}
	docs := &fakeDocumentStore{}
	idx := newFakeVectorIndex()

	opts := fastOpts()
	opts.MaxChunkChars = 30
	p := NewPipeline(blobs, docs, idx, &fakeExtractor{}, &fakeEmbedder{dimension: 4}, opts)
	require.NoError(t, p.Process(context.Background(), doc))
	first := idx.count()
	require.NoError(t, p.Process(context.Background(), doc))
	require.Equal(t, first, idx.count())
}

func TestDispatcherEnqueueFullQueue(t *testing.T) {
	d := NewDispatcher(nil, 1, 1)
	require.True(t, d.Enqueue(context.Background(), testDoc()))
	require.False(t, d.Enqueue(context.Background(), testDoc()))
}
