package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/botdock/botdock/internal/middleware"
)

type RouterDeps struct {
	Chat          *ChatHandler
	Chatbots      *ChatbotHandler
	Documents     *DocumentHandler
	JWTSecret     []byte
	ChatRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	// widget endpoint, no auth; the chatbot id in the path is the only
	// addressing
	chat := api.Group("")
	chat.Use(middleware.RateLimit(deps.ChatRateLimit))
	chat.POST("/chat/:chatbot_id", deps.Chat.Answer)

	mgmt := api.Group("")
	mgmt.Use(middleware.JWTAuth(deps.JWTSecret))
	mgmt.POST("/chatbots", deps.Chatbots.Create)
	mgmt.GET("/chatbots", deps.Chatbots.List)
	mgmt.GET("/chatbots/:chatbot_id", deps.Chatbots.Get)
	mgmt.PUT("/chatbots/:chatbot_id", deps.Chatbots.Update)

	mgmt.POST("/chatbots/:chatbot_id/documents", deps.Documents.Upload)
	mgmt.GET("/chatbots/:chatbot_id/documents", deps.Documents.List)
	mgmt.GET("/chatbots/:chatbot_id/documents/:document_id", deps.Documents.Get)
	mgmt.POST("/chatbots/:chatbot_id/documents/:document_id/ingest", deps.Documents.Notify)
	mgmt.DELETE("/chatbots/:chatbot_id/documents/:document_id", deps.Documents.Delete)
}
