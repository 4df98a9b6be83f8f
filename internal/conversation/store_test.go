package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/docchat-dev/docchat/internal/model"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client), mr
}

func TestSaveMessageCreatesConversation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	convID := NewConversationID()

	err := store.SaveMessage(ctx, "alice", convID, model.Message{Role: model.RoleUser, Content: "hello there"})
	require.NoError(t, err)

	conversations, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, convID, conversations[0].ConversationID)
	require.Equal(t, "hello there", conversations[0].Title)
	require.Equal(t, 1, conversations[0].MessageCount)
}

func TestSaveMessageTruncatesTitle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	long := "this question is deliberately much longer than the fifty character title limit"

	convID := NewConversationID()
	require.NoError(t, store.SaveMessage(ctx, "alice", convID, model.Message{Role: model.RoleUser, Content: long}))

	conversations, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Len(t, []rune(conversations[0].Title), 53)
	require.Equal(t, long[:50]+"...", conversations[0].Title)
}

func TestGetMessagesInOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	convID := NewConversationID()

	require.NoError(t, store.SaveMessage(ctx, "alice", convID, model.Message{Role: model.RoleUser, Content: "question"}))
	require.NoError(t, store.SaveMessage(ctx, "alice", convID, model.Message{
		Role:    model.RoleAssistant,
		Content: "answer",
		Sources: []model.SourceInfo{{Document: "guide.md", Chunk: "ref", RelevanceScore: 0.9}},
	}))

	messages, err := store.GetMessages(ctx, "alice", convID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, model.RoleUser, messages[0].Role)
	require.Equal(t, model.RoleAssistant, messages[1].Role)
	require.Equal(t, "guide.md", messages[1].Sources[0].Document)
	require.NotEmpty(t, messages[0].MessageID)
	require.False(t, messages[0].CreatedAt.IsZero())
}

func TestListConversationsSortedByActivity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := NewConversationID()
	second := NewConversationID()
	require.NoError(t, store.SaveMessage(ctx, "alice", first, model.Message{Role: model.RoleUser, Content: "older"}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.SaveMessage(ctx, "alice", second, model.Message{Role: model.RoleUser, Content: "newer"}))

	conversations, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	require.Equal(t, second, conversations[0].ConversationID)
	require.Equal(t, first, conversations[1].ConversationID)
}

func TestConversationsIsolatedPerUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	convID := NewConversationID()
	require.NoError(t, store.SaveMessage(ctx, "alice", convID, model.Message{Role: model.RoleUser, Content: "hi"}))

	conversations, err := store.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, conversations)

	messages, err := store.GetMessages(ctx, "bob", convID)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestDeleteConversation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	convID := NewConversationID()

	require.NoError(t, store.SaveMessage(ctx, "alice", convID, model.Message{Role: model.RoleUser, Content: "hi"}))
	require.NoError(t, store.DeleteConversation(ctx, "alice", convID))

	conversations, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, conversations)

	// deleting again is a no-op
	require.NoError(t, store.DeleteConversation(ctx, "alice", convID))
}

func TestRetentionSetOnKeys(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	convID := NewConversationID()

	require.NoError(t, store.SaveMessage(ctx, "alice", convID, model.Message{Role: model.RoleUser, Content: "hi"}))

	require.Greater(t, mr.TTL("chatbot:conversations:alice"), time.Duration(0))
	require.Greater(t, mr.TTL("chatbot:messages:alice:"+convID), time.Duration(0))

	// expiry wipes the transcript
	mr.FastForward(8 * 24 * time.Hour)
	messages, err := store.GetMessages(ctx, "alice", convID)
	require.NoError(t, err)
	require.Empty(t, messages)
}
