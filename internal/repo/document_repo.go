package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/botdock/botdock/internal/model"
	"github.com/botdock/botdock/internal/pkg/dbutil"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "chatbot_id", "org_id", "storage_key", "file_name", "content_type",
	"status", "chunk_count", "fail_reason", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":           doc.ID,
		"chatbot_id":   doc.ChatbotID,
		"org_id":       doc.OrgID,
		"storage_key":  doc.StorageKey,
		"file_name":    doc.FileName,
		"content_type": doc.ContentType,
		"status":       doc.Status,
		"chunk_count":  doc.ChunkCount,
		"fail_reason":  doc.FailReason,
		"ctime":        doc.Ctime,
		"mtime":        doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if dbutil.IsConflict(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, chatbotID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"chatbot_id": chatbotID,
		"id":         docID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, apperr.ErrNotFound
	}
	var doc model.Document
	if err := scanDocument(rows, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns a chatbot's documents, newest first. An empty status matches
// all statuses.
func (r *DocumentRepo) List(ctx context.Context, chatbotID, status string, limit, offset uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"chatbot_id": chatbotID,
		"_orderby":   "ctime desc",
	}
	if status != "" {
		where["status"] = status
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		var doc model.Document
		if err := scanDocument(rows, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListStale returns documents stuck in a non-terminal status whose mtime is
// at or before the cutoff. The sweep job re-enqueues them.
func (r *DocumentRepo) ListStale(ctx context.Context, cutoff int64, limit uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"status in": []interface{}{model.DocumentStatusPending, model.DocumentStatusProcessing},
		"mtime <=":  cutoff,
		"_orderby":  "mtime asc",
		"_limit":    []uint{0, limit},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		var doc model.Document
		if err := scanDocument(rows, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) SetStatus(ctx context.Context, chatbotID, docID, status string, now int64) error {
	return r.update(ctx, chatbotID, docID, map[string]interface{}{
		"status": status,
		"mtime":  now,
	})
}

func (r *DocumentRepo) SetComplete(ctx context.Context, chatbotID, docID string, chunkCount int, now int64) error {
	return r.update(ctx, chatbotID, docID, map[string]interface{}{
		"status":      model.DocumentStatusComplete,
		"chunk_count": chunkCount,
		"fail_reason": "",
		"mtime":       now,
	})
}

func (r *DocumentRepo) SetFailed(ctx context.Context, chatbotID, docID, reason string, now int64) error {
	return r.update(ctx, chatbotID, docID, map[string]interface{}{
		"status":      model.DocumentStatusFailed,
		"fail_reason": reason,
		"mtime":       now,
	})
}

func (r *DocumentRepo) Delete(ctx context.Context, chatbotID, docID string) error {
	const query = `DELETE FROM documents WHERE chatbot_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, chatbotID, docID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) update(ctx context.Context, chatbotID, docID string, fields map[string]interface{}) error {
	where := map[string]interface{}{
		"chatbot_id": chatbotID,
		"id":         docID,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, fields)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanDocument(rows *sql.Rows, doc *model.Document) error {
	return rows.Scan(
		&doc.ID, &doc.ChatbotID, &doc.OrgID, &doc.StorageKey, &doc.FileName,
		&doc.ContentType, &doc.Status, &doc.ChunkCount, &doc.FailReason,
		&doc.Ctime, &doc.Mtime,
	)
}
