package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/model"
)

const (
	conversationKeyFmt = "chatbot:conversations:%s"
	messageKeyFmt      = "chatbot:messages:%s:%s"

	// retention applies per user and per conversation, refreshed on write
	retention = 7 * 24 * time.Hour

	titleLimit = 50
)

// Store keeps per-user chat transcripts in Redis. Conversation metadata
// lives in one hash per user keyed by conversation id; messages live in one
// list per conversation. Everything expires together after the retention
// window of inactivity.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func conversationKey(userID string) string {
	return fmt.Sprintf(conversationKeyFmt, userID)
}

func messageKey(userID string, conversationID string) string {
	return fmt.Sprintf(messageKeyFmt, userID, conversationID)
}

// NewConversationID mints an id for a conversation that has not been
// persisted yet. Nothing is written until the first SaveMessage.
func NewConversationID() string {
	return uuid.NewString()
}

// SaveMessage appends one message and updates the conversation metadata.
// A first message creates the conversation, titling it from the message
// content. Both keys get their retention refreshed.
func (s *Store) SaveMessage(ctx context.Context, userID string, conversationID string, msg model.Message) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	conv, err := s.getConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if conv == nil {
		conv = &model.Conversation{
			ConversationID: conversationID,
			Title:          makeTitle(msg.Content),
			CreatedAt:      now,
		}
	}
	conv.MessageCount++
	conv.UpdatedAt = now

	msgData, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	convData, err := json.Marshal(conv)
	if err != nil {
		return err
	}

	convKey := conversationKey(userID)
	msgKey := messageKey(userID, conversationID)

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, msgKey, msgData)
	pipe.HSet(ctx, convKey, conversationID, convData)
	pipe.Expire(ctx, msgKey, retention)
	pipe.Expire(ctx, convKey, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// ListConversations returns the user's conversations, most recently active
// first. A user with no history gets an empty list.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	entries, err := s.client.HGetAll(ctx, conversationKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	conversations := make([]model.Conversation, 0, len(entries))
	for id, raw := range entries {
		var conv model.Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err != nil {
			logutil.GetLogger(ctx).Warn("skip undecodable conversation entry",
				zap.String("user_id", userID),
				zap.String("conversation_id", id),
				zap.Error(err),
			)
			continue
		}
		conversations = append(conversations, conv)
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// GetMessages returns a conversation's messages in append order. An unknown
// conversation yields an empty list, not an error.
func (s *Store) GetMessages(ctx context.Context, userID string, conversationID string) ([]model.Message, error) {
	raws, err := s.client.LRange(ctx, messageKey(userID, conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	messages := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		var msg model.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteConversation drops the transcript and the metadata entry. Deleting
// an unknown conversation is a no-op.
func (s *Store) DeleteConversation(ctx context.Context, userID string, conversationID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, messageKey(userID, conversationID))
	pipe.HDel(ctx, conversationKey(userID), conversationID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *Store) getConversation(ctx context.Context, userID string, conversationID string) (*model.Conversation, error) {
	raw, err := s.client.HGet(ctx, conversationKey(userID), conversationID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	var conv model.Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &conv, nil
}

func makeTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit]) + "..."
}
