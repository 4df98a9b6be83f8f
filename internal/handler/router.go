package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docchat-dev/docchat/internal/middleware"
)

type RouterDeps struct {
	Chat           *ChatHandler
	Documents      *DocumentHandler
	Health         *HealthHandler
	JWTSecret      []byte
	ChatRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Check)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	chatGroup := authGroup.Group("/chat")
	chatGroup.Use(middleware.RateLimit(deps.ChatRateWindow))
	chatGroup.POST("/message", deps.Chat.SendMessage)
	chatGroup.POST("/stream", deps.Chat.StreamMessage)

	authGroup.GET("/chat/conversations", deps.Chat.ListConversations)
	authGroup.GET("/chat/conversations/:id/messages", deps.Chat.GetMessages)
	authGroup.DELETE("/chat/conversations/:id", deps.Chat.DeleteConversation)

	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/count", deps.Documents.Count)

	adminGroup := authGroup.Group("/documents")
	adminGroup.Use(middleware.RequireAdmin())
	adminGroup.POST("", deps.Documents.Upload)
	adminGroup.DELETE("/:source", deps.Documents.Delete)
	adminGroup.POST("/reindex", deps.Documents.Reindex)
}
