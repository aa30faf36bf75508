package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/botdock/botdock/internal/pkg/errcode"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
	"github.com/botdock/botdock/internal/pkg/response"
	"github.com/botdock/botdock/internal/service"
)

// fallbackReply is what the widget shows when generation fails. End users
// never see provider errors.
const fallbackReply = "Sorry, I encountered an error. Please try again."

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// Answer serves one widget turn. The endpoint is public: the chatbot id in
// the path is the only addressing, and every turn is independent.
func (h *ChatHandler) Answer(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.chat.Answer(c.Request.Context(), c.Param("chatbot_id"), req.Message, req.SessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrGeneration) {
			logutil.GetLogger(c.Request.Context()).Error("chat turn failed",
				zap.String("chatbot_id", c.Param("chatbot_id")),
				zap.Error(err),
			)
			sessionID := req.SessionID
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			response.Success(c, chatResponse{Response: fallbackReply, SessionID: sessionID})
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, chatResponse{Response: result.Reply, SessionID: result.SessionID})
}
