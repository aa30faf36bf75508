package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/botdock/botdock/internal/ai"
	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
	"github.com/botdock/botdock/internal/repo"
)

type ChatbotService struct {
	bots     *repo.ChatbotRepo
	families map[string]struct{}
}

func NewChatbotService(bots *repo.ChatbotRepo) *ChatbotService {
	families := make(map[string]struct{})
	for _, name := range ai.Families() {
		families[name] = struct{}{}
	}
	return &ChatbotService{bots: bots, families: families}
}

type CreateChatbotRequest struct {
	Name         string
	SystemPrompt string
	ModelFamily  string
	Model        string
	Temperature  float32
	MaxTokens    int
}

func (s *ChatbotService) Create(ctx context.Context, orgID string, req *CreateChatbotRequest) (*model.Chatbot, error) {
	family := strings.ToLower(strings.TrimSpace(req.ModelFamily))
	if _, ok := s.families[family]; !ok {
		return nil, fmt.Errorf("%w: unsupported model family %s", apperr.ErrInvalid, req.ModelFamily)
	}
	if req.Model == "" {
		return nil, fmt.Errorf("%w: model is required", apperr.ErrInvalid)
	}
	now := time.Now().UnixMilli()
	bot := &model.Chatbot{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		Name:         req.Name,
		Status:       model.ChatbotStatusActive,
		SystemPrompt: req.SystemPrompt,
		ModelFamily:  family,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Ctime:        now,
		Mtime:        now,
	}
	if bot.Temperature <= 0 {
		bot.Temperature = 0.7
	}
	if bot.MaxTokens <= 0 {
		bot.MaxTokens = 2048
	}
	if err := s.bots.Create(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *ChatbotService) Get(ctx context.Context, orgID, id string) (*model.Chatbot, error) {
	bot, err := s.bots.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bot.OrgID != orgID {
		return nil, apperr.ErrForbidden
	}
	return bot, nil
}

type UpdateChatbotRequest struct {
	Name         *string
	Status       *string
	SystemPrompt *string
	ModelFamily  *string
	Model        *string
	Temperature  *float32
	MaxTokens    *int
}

func (s *ChatbotService) Update(ctx context.Context, orgID, id string, req *UpdateChatbotRequest) (*model.Chatbot, error) {
	bot, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		bot.Name = *req.Name
	}
	if req.Status != nil {
		switch *req.Status {
		case model.ChatbotStatusActive, model.ChatbotStatusInactive:
			bot.Status = *req.Status
		default:
			return nil, fmt.Errorf("%w: unknown status %s", apperr.ErrInvalid, *req.Status)
		}
	}
	if req.SystemPrompt != nil {
		bot.SystemPrompt = *req.SystemPrompt
	}
	if req.ModelFamily != nil {
		family := strings.ToLower(strings.TrimSpace(*req.ModelFamily))
		if _, ok := s.families[family]; !ok {
			return nil, fmt.Errorf("%w: unsupported model family %s", apperr.ErrInvalid, *req.ModelFamily)
		}
		bot.ModelFamily = family
	}
	if req.Model != nil {
		bot.Model = *req.Model
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		bot.MaxTokens = *req.MaxTokens
	}
	bot.Mtime = time.Now().UnixMilli()
	if err := s.bots.Update(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *ChatbotService) List(ctx context.Context, orgID string) ([]model.Chatbot, error) {
	return s.bots.ListByOrg(ctx, orgID)
}
