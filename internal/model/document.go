package model

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusComplete   = "complete"
	DocumentStatusFailed     = "failed"
)

// Document is the metadata record for one uploaded source file. The record
// exists before the bytes necessarily do; storage may still be propagating
// when ingestion first runs.
type Document struct {
	ID          string `json:"id"`
	ChatbotID   string `json:"chatbot_id"`
	OrgID       string `json:"org_id"`
	StorageKey  string `json:"storage_key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Status      string `json:"status"`
	ChunkCount  int    `json:"chunk_count"`
	FailReason  string `json:"fail_reason,omitempty"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
