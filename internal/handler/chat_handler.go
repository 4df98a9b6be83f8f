package handler

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/middleware"
	"github.com/docchat-dev/docchat/internal/model"
	"github.com/docchat-dev/docchat/internal/pkg/errcode"
	"github.com/docchat-dev/docchat/internal/pkg/response"
	"github.com/docchat-dev/docchat/internal/rag"
	"github.com/docchat-dev/docchat/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "message is required")
		return
	}
	reply, err := h.chat.SendMessage(c.Request.Context(), middleware.UserID(c), req.ConversationID, req.Message)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, reply)
}

// StreamMessage relays the answer as server-sent events. Token events come
// first, then the sources event and the terminal done event. The assistant
// message is persisted only after done has been sent.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "message is required")
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	stream, err := h.chat.StreamMessage(ctx, userID, req.ConversationID, req.Message)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	defer stream.Events.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Conversation-Id", stream.ConversationID)

	var answer strings.Builder
	var sources []model.SourceInfo
	done := false
	for {
		event, err := stream.Events.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeSSE(c, rag.QueryEvent{Type: rag.EventError, Content: err.Error()})
			return
		}
		switch event.Type {
		case rag.EventToken:
			answer.WriteString(event.Content)
		case rag.EventSources:
			sources = event.Sources
		case rag.EventDone:
			done = true
		}
		// the answer is complete once done arrives, so a failed write of a
		// trailing frame must not drop the transcript
		if !writeSSE(c, event) {
			break
		}
	}

	if done {
		if err := h.chat.CommitStream(ctx, userID, stream.ConversationID, answer.String(), sources); err != nil {
			logutil.GetLogger(ctx).Error("persist streamed answer failed",
				zap.String("conversation_id", stream.ConversationID),
				zap.Error(err),
			)
		}
	}
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations, err := h.chat.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, gin.H{"conversations": conversations})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.chat.GetMessages(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.chat.DeleteConversation(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func writeSSE(c *gin.Context, event rag.QueryEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
