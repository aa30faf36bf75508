package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/botdock/botdock/internal/blobstore"
	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
	"github.com/botdock/botdock/internal/repo"
)

// Enqueuer hands a document to the async ingestion workers. A false return
// means the queue is full; the record stays pending and the sweep job picks
// it up later.
type Enqueuer interface {
	Enqueue(ctx context.Context, doc *model.Document) bool
}

// VectorDeleter removes a document's chunks from the vector index.
type VectorDeleter interface {
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}

const maxUploadBytes = 32 << 20

// DocumentService owns the document lifecycle: register the metadata
// record, store the bytes, trigger ingestion, and cascade deletes across
// blob storage, the vector index and the metadata record.
type DocumentService struct {
	docs    *repo.DocumentRepo
	bots    *repo.ChatbotRepo
	blobs   blobstore.Store
	vectors VectorDeleter
	queue   Enqueuer
}

func NewDocumentService(docs *repo.DocumentRepo, bots *repo.ChatbotRepo, blobs blobstore.Store, vectors VectorDeleter, queue Enqueuer) *DocumentService {
	return &DocumentService{docs: docs, bots: bots, blobs: blobs, vectors: vectors, queue: queue}
}

// Upload stores the file bytes and registers a pending document, then hands
// it to the ingestion workers. The record is the source of truth; if the
// enqueue is dropped the sweep job re-submits the still-pending record.
func (s *DocumentService) Upload(ctx context.Context, orgID, chatbotID, fileName, contentType string, data []byte) (*model.Document, error) {
	fileName = sanitizeFileName(fileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name is required", apperr.ErrInvalid)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", apperr.ErrInvalid)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrInvalid, maxUploadBytes)
	}
	bot, err := s.authorizeChatbot(ctx, orgID, chatbotID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	doc := &model.Document{
		ID:          uuid.NewString(),
		ChatbotID:   bot.ID,
		OrgID:       bot.OrgID,
		FileName:    fileName,
		ContentType: contentType,
		Status:      model.DocumentStatusPending,
		Ctime:       now,
		Mtime:       now,
	}
	doc.StorageKey = fmt.Sprintf("chatbots/%s/%s/%s", bot.ID, doc.ID, fileName)

	if err := s.blobs.Put(ctx, doc.StorageKey, data, contentType); err != nil {
		return nil, err
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.queue.Enqueue(ctx, doc)
	logutil.GetLogger(ctx).Info("document registered",
		zap.String("chatbot_id", bot.ID),
		zap.String("document_id", doc.ID),
		zap.String("file_name", fileName),
		zap.Int("size", len(data)),
	)
	return doc, nil
}

// Notify re-submits a document for ingestion, e.g. after the bytes were
// written to storage out of band or after a failed run. Ingestion is
// idempotent, so notifying a complete document just rebuilds its vectors.
func (s *DocumentService) Notify(ctx context.Context, orgID, chatbotID, docID string) (*model.Document, error) {
	if _, err := s.authorizeChatbot(ctx, orgID, chatbotID); err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, chatbotID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status == model.DocumentStatusFailed {
		if err := s.docs.SetStatus(ctx, chatbotID, docID, model.DocumentStatusPending, time.Now().UnixMilli()); err != nil {
			return nil, err
		}
		doc.Status = model.DocumentStatusPending
	}
	s.queue.Enqueue(ctx, doc)
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, orgID, chatbotID, docID string) (*model.Document, error) {
	if _, err := s.authorizeChatbot(ctx, orgID, chatbotID); err != nil {
		return nil, err
	}
	return s.docs.Get(ctx, chatbotID, docID)
}

func (s *DocumentService) List(ctx context.Context, orgID, chatbotID, status string, limit, offset uint) ([]model.Document, error) {
	if _, err := s.authorizeChatbot(ctx, orgID, chatbotID); err != nil {
		return nil, err
	}
	return s.docs.List(ctx, chatbotID, status, limit, offset)
}

// Delete cascades: blob first, then vectors, then the metadata record. A
// blob that is already gone is not an error.
func (s *DocumentService) Delete(ctx context.Context, orgID, chatbotID, docID string) error {
	if _, err := s.authorizeChatbot(ctx, orgID, chatbotID); err != nil {
		return err
	}
	doc, err := s.docs.Get(ctx, chatbotID, docID)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("chatbot_id", chatbotID),
		zap.String("document_id", docID),
	)
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil && !apperr.IsNotFound(err) {
		return err
	}
	removed, err := s.vectors.DeleteByDocument(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, chatbotID, docID); err != nil {
		return err
	}
	logger.Info("document deleted", zap.Int64("vectors_removed", removed))
	return nil
}

func (s *DocumentService) authorizeChatbot(ctx context.Context, orgID, chatbotID string) (*model.Chatbot, error) {
	bot, err := s.bots.Get(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if bot.OrgID != orgID {
		return nil, apperr.ErrForbidden
	}
	return bot, nil
}

// sanitizeFileName reduces the client-supplied name to its final path
// element so it cannot escape the document's storage prefix.
func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
