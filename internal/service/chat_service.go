package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/conversation"
	"github.com/docchat-dev/docchat/internal/model"
	"github.com/docchat-dev/docchat/internal/rag"
)

// ChatReply is the synchronous answer payload.
type ChatReply struct {
	ConversationID string             `json:"conversation_id"`
	Answer         string             `json:"answer"`
	Sources        []model.SourceInfo `json:"sources"`
}

// ChatStream couples a streaming answer with the conversation it belongs
// to. The assistant message is only persisted when the caller invokes
// CommitStream after draining the stream; an abandoned stream leaves no
// assistant message behind.
type ChatStream struct {
	ConversationID string
	Events         *rag.EventStream
}

type ChatService struct {
	engine        *rag.Engine
	conversations *conversation.Store
}

func NewChatService(engine *rag.Engine, conversations *conversation.Store) *ChatService {
	return &ChatService{engine: engine, conversations: conversations}
}

// SendMessage answers a question and records both sides of the exchange.
func (s *ChatService) SendMessage(ctx context.Context, userID string, conversationID string, question string) (*ChatReply, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	if conversationID == "" {
		conversationID = conversation.NewConversationID()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
	)

	if err := s.conversations.SaveMessage(ctx, userID, conversationID, model.Message{
		Role:    model.RoleUser,
		Content: question,
	}); err != nil {
		logger.Error("save user message failed", zap.Error(err))
		return nil, err
	}

	answer, sources, err := s.engine.Query(ctx, question)
	if err != nil {
		logger.Error("query failed", zap.Error(err))
		return nil, err
	}

	if err := s.conversations.SaveMessage(ctx, userID, conversationID, model.Message{
		Role:    model.RoleAssistant,
		Content: answer,
		Sources: sources,
	}); err != nil {
		logger.Error("save assistant message failed", zap.Error(err))
		return nil, err
	}
	return &ChatReply{ConversationID: conversationID, Answer: answer, Sources: sources}, nil
}

// StreamMessage records the user message and opens the answer stream. The
// caller relays events and, once it has seen the done event, persists the
// assembled answer with CommitStream.
func (s *ChatService) StreamMessage(ctx context.Context, userID string, conversationID string, question string) (*ChatStream, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	if conversationID == "" {
		conversationID = conversation.NewConversationID()
	}

	if err := s.conversations.SaveMessage(ctx, userID, conversationID, model.Message{
		Role:    model.RoleUser,
		Content: question,
	}); err != nil {
		return nil, err
	}

	events, err := s.engine.QueryStream(ctx, question)
	if err != nil {
		return nil, err
	}
	return &ChatStream{ConversationID: conversationID, Events: events}, nil
}

// CommitStream persists the assistant side of a completed stream.
func (s *ChatService) CommitStream(ctx context.Context, userID string, conversationID string, answer string, sources []model.SourceInfo) error {
	return s.conversations.SaveMessage(ctx, userID, conversationID, model.Message{
		Role:    model.RoleAssistant,
		Content: answer,
		Sources: sources,
	})
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.conversations.ListConversations(ctx, userID)
}

func (s *ChatService) GetMessages(ctx context.Context, userID string, conversationID string) ([]model.Message, error) {
	return s.conversations.GetMessages(ctx, userID, conversationID)
}

func (s *ChatService) DeleteConversation(ctx context.Context, userID string, conversationID string) error {
	return s.conversations.DeleteConversation(ctx, userID, conversationID)
}
