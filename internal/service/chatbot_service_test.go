package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
	"github.com/botdock/botdock/internal/repo"
	"github.com/botdock/botdock/internal/testutil"
)

func TestChatbotServiceCreateAndUpdate(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	svc := NewChatbotService(repo.NewChatbotRepo(conn))
	orgID := uuid.NewString()

	bot, err := svc.Create(ctx, orgID, &CreateChatbotRequest{
		Name:        "support",
		ModelFamily: "OpenAI",
		Model:       "gpt-4o-mini",
	})
	require.NoError(t, err)
	require.Equal(t, "openai", bot.ModelFamily)
	require.Equal(t, model.ChatbotStatusActive, bot.Status)
	require.InDelta(t, 0.7, bot.Temperature, 0.001)
	require.Equal(t, 2048, bot.MaxTokens)

	_, err = svc.Create(ctx, orgID, &CreateChatbotRequest{
		Name:        "bad",
		ModelFamily: "quantum",
		Model:       "m",
	})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.Create(ctx, orgID, &CreateChatbotRequest{
		Name:        "bad",
		ModelFamily: "openai",
	})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	status := model.ChatbotStatusInactive
	prompt := "new prompt"
	updated, err := svc.Update(ctx, orgID, bot.ID, &UpdateChatbotRequest{
		Status:       &status,
		SystemPrompt: &prompt,
	})
	require.NoError(t, err)
	require.Equal(t, model.ChatbotStatusInactive, updated.Status)
	require.Equal(t, "new prompt", updated.SystemPrompt)

	badStatus := "paused"
	_, err = svc.Update(ctx, orgID, bot.ID, &UpdateChatbotRequest{Status: &badStatus})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.Get(ctx, "other-org", bot.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	bots, err := svc.List(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, bots, 1)
}
