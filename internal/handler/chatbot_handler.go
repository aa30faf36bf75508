package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/botdock/botdock/internal/pkg/errcode"
	"github.com/botdock/botdock/internal/pkg/response"
	"github.com/botdock/botdock/internal/pkg/validate"
	"github.com/botdock/botdock/internal/service"
)

type ChatbotHandler struct {
	chatbots *service.ChatbotService
}

func NewChatbotHandler(chatbots *service.ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{chatbots: chatbots}
}

type createChatbotRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	SystemPrompt string  `json:"system_prompt" validate:"max=8000"`
	ModelFamily  string  `json:"model_family" validate:"required"`
	Model        string  `json:"model" validate:"required"`
	Temperature  float32 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int     `json:"max_tokens" validate:"gte=0,lte=32768"`
}

func (h *ChatbotHandler) Create(c *gin.Context) {
	var req createChatbotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if fields := validate.Struct(&req); fields != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	bot, err := h.chatbots.Create(c.Request.Context(), getOrgID(c), &service.CreateChatbotRequest{
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		ModelFamily:  req.ModelFamily,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, bot)
}

func (h *ChatbotHandler) Get(c *gin.Context) {
	bot, err := h.chatbots.Get(c.Request.Context(), getOrgID(c), c.Param("chatbot_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, bot)
}

type updateChatbotRequest struct {
	Name         *string  `json:"name"`
	Status       *string  `json:"status"`
	SystemPrompt *string  `json:"system_prompt"`
	ModelFamily  *string  `json:"model_family"`
	Model        *string  `json:"model"`
	Temperature  *float32 `json:"temperature"`
	MaxTokens    *int     `json:"max_tokens"`
}

func (h *ChatbotHandler) Update(c *gin.Context) {
	var req updateChatbotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	bot, err := h.chatbots.Update(c.Request.Context(), getOrgID(c), c.Param("chatbot_id"), &service.UpdateChatbotRequest{
		Name:         req.Name,
		Status:       req.Status,
		SystemPrompt: req.SystemPrompt,
		ModelFamily:  req.ModelFamily,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, bot)
}

func (h *ChatbotHandler) List(c *gin.Context) {
	bots, err := h.chatbots.List(c.Request.Context(), getOrgID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, bots)
}
