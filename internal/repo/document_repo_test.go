package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
	"github.com/botdock/botdock/internal/testutil"
)

func testDocument(chatbotID string) *model.Document {
	now := time.Now().UnixMilli()
	id := uuid.NewString()
	return &model.Document{
		ID:          id,
		ChatbotID:   chatbotID,
		OrgID:       "org-1",
		StorageKey:  "chatbots/" + chatbotID + "/" + id + "/faq.txt",
		FileName:    "faq.txt",
		ContentType: "text/plain",
		Status:      model.DocumentStatusPending,
		Ctime:       now,
		Mtime:       now,
	}
}

func TestDocumentRepoLifecycle(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewDocumentRepo(conn)
	chatbotID := uuid.NewString()

	doc := testDocument(chatbotID)
	require.NoError(t, r.Create(ctx, doc))
	require.ErrorIs(t, r.Create(ctx, doc), apperr.ErrConflict)

	got, err := r.Get(ctx, chatbotID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusPending, got.Status)
	require.Equal(t, doc.StorageKey, got.StorageKey)

	_, err = r.Get(ctx, chatbotID, uuid.NewString())
	require.ErrorIs(t, err, apperr.ErrNotFound)

	now := time.Now().UnixMilli()
	require.NoError(t, r.SetStatus(ctx, chatbotID, doc.ID, model.DocumentStatusProcessing, now))
	got, err = r.Get(ctx, chatbotID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusProcessing, got.Status)

	require.NoError(t, r.SetComplete(ctx, chatbotID, doc.ID, 7, time.Now().UnixMilli()))
	got, err = r.Get(ctx, chatbotID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusComplete, got.Status)
	require.Equal(t, 7, got.ChunkCount)
	require.Empty(t, got.FailReason)

	require.NoError(t, r.SetFailed(ctx, chatbotID, doc.ID, "extraction blew up", time.Now().UnixMilli()))
	got, err = r.Get(ctx, chatbotID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusFailed, got.Status)
	require.Equal(t, "extraction blew up", got.FailReason)

	require.NoError(t, r.Delete(ctx, chatbotID, doc.ID))
	require.ErrorIs(t, r.Delete(ctx, chatbotID, doc.ID), apperr.ErrNotFound)
}

func TestDocumentRepoListFilters(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewDocumentRepo(conn)
	chatbotID := uuid.NewString()

	for i := 0; i < 3; i++ {
		doc := testDocument(chatbotID)
		doc.Ctime += int64(i)
		require.NoError(t, r.Create(ctx, doc))
	}
	failed := testDocument(chatbotID)
	failed.Status = model.DocumentStatusFailed
	require.NoError(t, r.Create(ctx, failed))

	all, err := r.List(ctx, chatbotID, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)

	pending, err := r.List(ctx, chatbotID, model.DocumentStatusPending, 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	limited, err := r.List(ctx, chatbotID, "", 2, 0)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestDocumentRepoListStale(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	r := NewDocumentRepo(conn)
	chatbotID := uuid.NewString()

	old := testDocument(chatbotID)
	old.Mtime = time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, r.Create(ctx, old))

	fresh := testDocument(chatbotID)
	require.NoError(t, r.Create(ctx, fresh))

	done := testDocument(chatbotID)
	done.Status = model.DocumentStatusComplete
	done.Mtime = old.Mtime
	require.NoError(t, r.Create(ctx, done))

	cutoff := time.Now().Add(-30 * time.Minute).UnixMilli()
	stale, err := r.ListStale(ctx, cutoff, 10)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, doc := range stale {
		ids[doc.ID] = true
		require.Contains(t, []string{model.DocumentStatusPending, model.DocumentStatusProcessing}, doc.Status)
	}
	require.True(t, ids[old.ID])
	require.False(t, ids[fresh.ID])
	require.False(t, ids[done.ID])
}
