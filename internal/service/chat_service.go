package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkoukk/tiktoken-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/botdock/botdock/internal/ai"
	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

// ChatbotGetter loads the chatbot a widget turn is addressed to.
type ChatbotGetter interface {
	Get(ctx context.Context, id string) (*model.Chatbot, error)
}

// Retriever is the read side of the vector index. A chatbot with no index
// yields an empty result, never an error.
type Retriever interface {
	Search(ctx context.Context, chatbotID string, query []float32, k int) ([]model.ScoredChunk, error)
}

type ChatOptions struct {
	TopK    int
	Timeout time.Duration
}

func (o *ChatOptions) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
}

// ChatService answers one widget turn. Turns are stateless: every request
// carries the full user message and the service never reads prior turns.
// Retrieval failures degrade to an empty context; only generation failures
// surface as errors.
type ChatService struct {
	bots      ChatbotGetter
	embedder  ai.IEmbedder
	retriever Retriever
	providers map[string]ai.IProvider
	opts      ChatOptions

	embedCache *expirable.LRU[string, []float32]
	tokenizer  *tiktoken.Tiktoken
}

func NewChatService(bots ChatbotGetter, embedder ai.IEmbedder, retriever Retriever, providers map[string]ai.IProvider, opts ChatOptions) *ChatService {
	opts.applyDefaults()
	// tokenizer is only used for logging prompt sizes; a load failure just
	// disables the counter
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		tokenizer = nil
	}
	return &ChatService{
		bots:       bots,
		embedder:   embedder,
		retriever:  retriever,
		providers:  providers,
		opts:       opts,
		embedCache: expirable.NewLRU[string, []float32](4096, nil, 10*time.Minute),
		tokenizer:  tokenizer,
	}
}

type ChatResult struct {
	Reply     string
	SessionID string
}

// Answer runs one turn: embed the message, retrieve the nearest chunks from
// the chatbot's namespace, assemble the prompt and generate. SessionID is
// minted when the caller does not supply one.
func (s *ChatService) Answer(ctx context.Context, chatbotID, message, sessionID string) (*ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", apperr.ErrInvalid)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("chatbot_id", chatbotID),
		zap.String("session_id", sessionID),
	)

	bot, err := s.bots.Get(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if bot.Status != model.ChatbotStatusActive {
		return nil, fmt.Errorf("%w: chatbot is inactive", apperr.ErrForbidden)
	}

	chunks := s.retrieve(ctx, logger, chatbotID, message)
	prompt := buildPrompt(chunks, message)
	if s.tokenizer != nil {
		logger.Debug("prompt assembled",
			zap.Int("context_chunks", len(chunks)),
			zap.Int("prompt_tokens", len(s.tokenizer.Encode(prompt, nil, nil))),
		)
	}

	provider := s.providers[strings.ToLower(bot.ModelFamily)]
	if provider == nil {
		logger.Error("no provider configured for model family", zap.String("family", bot.ModelFamily))
		return nil, fmt.Errorf("%w: model family %s", apperr.ErrGeneration, bot.ModelFamily)
	}
	reply, err := provider.Generate(ctx, ai.GenerateRequest{
		Model:       bot.Model,
		System:      bot.SystemPrompt,
		Prompt:      prompt,
		Temperature: bot.Temperature,
		MaxTokens:   bot.MaxTokens,
	})
	if err != nil {
		logger.Error("generation failed", zap.String("family", bot.ModelFamily), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperr.ErrGeneration, err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, fmt.Errorf("%w: empty response from %s", apperr.ErrGeneration, bot.ModelFamily)
	}
	return &ChatResult{Reply: reply, SessionID: sessionID}, nil
}

// retrieve embeds the message and searches the chatbot's namespace. Any
// failure on this path is logged and degrades to no context; the turn still
// gets an answer, just an ungrounded one.
func (s *ChatService) retrieve(ctx context.Context, logger *zap.Logger, chatbotID, message string) []model.ScoredChunk {
	vec, err := s.embedQuery(ctx, message)
	if err != nil {
		logger.Warn("query embedding failed, answering without context", zap.Error(err))
		return nil
	}
	chunks, err := s.retriever.Search(ctx, chatbotID, vec, s.opts.TopK)
	if err != nil {
		logger.Warn("retrieval failed, answering without context", zap.Error(err))
		return nil
	}
	return chunks
}

func (s *ChatService) embedQuery(ctx context.Context, message string) ([]float32, error) {
	key := s.cacheKey(message)
	if vec, ok := s.embedCache.Get(key); ok {
		return vec, nil
	}
	vec, err := s.embedder.Embed(ctx, message, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	s.embedCache.Add(key, vec)
	return vec, nil
}

func (s *ChatService) cacheKey(message string) string {
	hash := sha256.Sum256([]byte(s.embedder.ModelName() + "\x00" + message))
	return hex.EncodeToString(hash[:])
}

func buildPrompt(chunks []model.ScoredChunk, message string) string {
	var sb strings.Builder
	if len(chunks) > 0 {
		texts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			texts = append(texts, c.Text)
		}
		sb.WriteString("Context from knowledge base:\n")
		sb.WriteString(strings.Join(texts, "\n\n"))
		sb.WriteString("\n\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(message)
	sb.WriteString("\n\nAssistant:")
	return sb.String()
}
