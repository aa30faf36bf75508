package model

// ChunkVector is one indexed slice of a document's extracted text. The pair
// (DocumentID, ChunkIndex) is the upsert key: re-ingesting a document
// overwrites its vectors instead of duplicating them.
type ChunkVector struct {
	DocumentID string
	ChunkIndex int
	ChatbotID  string
	Text       string
	SourceRef  string
	Embedding  []float32
	Ctime      int64
}

// ScoredChunk is a retrieval hit, most similar first.
type ScoredChunk struct {
	DocumentID string
	ChunkIndex int
	Text       string
	SourceRef  string
	Score      float64
}
