package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/botdock/botdock/internal/ai"
	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

type fakeChatbotGetter struct {
	bot *model.Chatbot
	err error
}

func (f *fakeChatbotGetter) Get(ctx context.Context, id string) (*model.Chatbot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bot, nil
}

type fakeQueryEmbedder struct {
	err   error
	calls int
}

func (f *fakeQueryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

func (f *fakeQueryEmbedder) ModelName() string { return "fake-embed" }
func (f *fakeQueryEmbedder) Dimension() int    { return 4 }

type fakeRetriever struct {
	chunks []model.ScoredChunk
	err    error
	lastK  int
}

func (f *fakeRetriever) Search(ctx context.Context, chatbotID string, query []float32, k int) ([]model.ScoredChunk, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type capturingProvider struct {
	lastReq ai.GenerateRequest
	reply   string
	err     error
}

func (p *capturingProvider) Name() string { return "fake" }

func (p *capturingProvider) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	p.lastReq = req
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func activeBot() *model.Chatbot {
	return &model.Chatbot{
		ID:           "bot-1",
		OrgID:        "org-1",
		Name:         "support bot",
		Status:       model.ChatbotStatusActive,
		SystemPrompt: "You are a support assistant.",
		ModelFamily:  "fake",
		Model:        "fake-large",
		Temperature:  0.7,
		MaxTokens:    512,
	}
}

func newTestChatService(bots ChatbotGetter, emb ai.IEmbedder, ret Retriever, provider ai.IProvider) *ChatService {
	return NewChatService(bots, emb, ret, map[string]ai.IProvider{"fake": provider}, ChatOptions{TopK: 3})
}

func TestChatAnswerWithContext(t *testing.T) {
	provider := &capturingProvider{reply: "Here is your answer."}
	retriever := &fakeRetriever{chunks: []model.ScoredChunk{
		{Text: "Refunds take 5 days.", Score: 0.95},
		{Text: "Contact support by email.", Score: 0.82},
	}}
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, &fakeQueryEmbedder{}, retriever, provider)

	result, err := svc.Answer(context.Background(), "bot-1", "how long do refunds take?", "")
	require.NoError(t, err)
	require.Equal(t, "Here is your answer.", result.Reply)
	require.NotEmpty(t, result.SessionID)
	require.Equal(t, 3, retriever.lastK)

	require.Equal(t, "fake-large", provider.lastReq.Model)
	require.Equal(t, "You are a support assistant.", provider.lastReq.System)
	require.Contains(t, provider.lastReq.Prompt, "Context from knowledge base:\n")
	require.Contains(t, provider.lastReq.Prompt, "Refunds take 5 days.\n\nContact support by email.")
	require.Contains(t, provider.lastReq.Prompt, "User: how long do refunds take?\n\nAssistant:")
}

func TestChatAnswerNoIndexNoContextSection(t *testing.T) {
	provider := &capturingProvider{reply: "General answer."}
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, &fakeQueryEmbedder{}, &fakeRetriever{}, provider)

	result, err := svc.Answer(context.Background(), "bot-1", "hello", "sess-9")
	require.NoError(t, err)
	require.Equal(t, "sess-9", result.SessionID)
	require.NotContains(t, provider.lastReq.Prompt, "Context from knowledge base")
	require.Equal(t, "User: hello\n\nAssistant:", provider.lastReq.Prompt)
}

func TestChatAnswerEmbedFailureDegrades(t *testing.T) {
	provider := &capturingProvider{reply: "Still answered."}
	embedder := &fakeQueryEmbedder{err: fmt.Errorf("%w: down", apperr.ErrEmbeddingProvider)}
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, embedder, &fakeRetriever{}, provider)

	result, err := svc.Answer(context.Background(), "bot-1", "anything", "")
	require.NoError(t, err)
	require.Equal(t, "Still answered.", result.Reply)
	require.NotContains(t, provider.lastReq.Prompt, "Context from knowledge base")
}

func TestChatAnswerRetrievalFailureDegrades(t *testing.T) {
	provider := &capturingProvider{reply: "ok"}
	retriever := &fakeRetriever{err: fmt.Errorf("%w: index down", apperr.ErrRetrieval)}
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, &fakeQueryEmbedder{}, retriever, provider)

	_, err := svc.Answer(context.Background(), "bot-1", "anything", "")
	require.NoError(t, err)
}

func TestChatAnswerMissingChatbot(t *testing.T) {
	svc := newTestChatService(&fakeChatbotGetter{err: apperr.ErrNotFound}, &fakeQueryEmbedder{}, &fakeRetriever{}, &capturingProvider{})
	_, err := svc.Answer(context.Background(), "nope", "hello", "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestChatAnswerInactiveChatbot(t *testing.T) {
	bot := activeBot()
	bot.Status = model.ChatbotStatusInactive
	svc := newTestChatService(&fakeChatbotGetter{bot: bot}, &fakeQueryEmbedder{}, &fakeRetriever{}, &capturingProvider{})
	_, err := svc.Answer(context.Background(), "bot-1", "hello", "")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestChatAnswerEmptyMessage(t *testing.T) {
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, &fakeQueryEmbedder{}, &fakeRetriever{}, &capturingProvider{})
	_, err := svc.Answer(context.Background(), "bot-1", "   ", "")
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestChatAnswerGenerationFailure(t *testing.T) {
	provider := &capturingProvider{err: fmt.Errorf("upstream exploded")}
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, &fakeQueryEmbedder{}, &fakeRetriever{}, provider)
	_, err := svc.Answer(context.Background(), "bot-1", "hello", "")
	require.ErrorIs(t, err, apperr.ErrGeneration)
}

func TestChatAnswerEmptyReplyIsGenerationError(t *testing.T) {
	provider := &capturingProvider{reply: "   "}
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, &fakeQueryEmbedder{}, &fakeRetriever{}, provider)
	_, err := svc.Answer(context.Background(), "bot-1", "hello", "")
	require.ErrorIs(t, err, apperr.ErrGeneration)
}

func TestChatAnswerUnknownFamily(t *testing.T) {
	bot := activeBot()
	bot.ModelFamily = "mystery"
	svc := newTestChatService(&fakeChatbotGetter{bot: bot}, &fakeQueryEmbedder{}, &fakeRetriever{}, &capturingProvider{})
	_, err := svc.Answer(context.Background(), "bot-1", "hello", "")
	require.ErrorIs(t, err, apperr.ErrGeneration)
}

func TestChatQueryEmbeddingCached(t *testing.T) {
	embedder := &fakeQueryEmbedder{}
	provider := &capturingProvider{reply: "ok"}
	svc := newTestChatService(&fakeChatbotGetter{bot: activeBot()}, embedder, &fakeRetriever{}, provider)

	_, err := svc.Answer(context.Background(), "bot-1", "same question", "")
	require.NoError(t, err)
	_, err = svc.Answer(context.Background(), "bot-1", "same question", "")
	require.NoError(t, err)
	require.Equal(t, 1, embedder.calls)
}
