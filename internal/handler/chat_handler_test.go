package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/docchat-dev/docchat/internal/ai"
	"github.com/docchat-dev/docchat/internal/conversation"
	"github.com/docchat-dev/docchat/internal/middleware"
	"github.com/docchat-dev/docchat/internal/model"
	"github.com/docchat-dev/docchat/internal/rag"
	"github.com/docchat-dev/docchat/internal/service"
)

type fakeSearchStore struct {
	results []model.SearchResult
}

func (s *fakeSearchStore) AddDocuments(ctx context.Context, chunks []model.DocumentChunk) ([]string, error) {
	return make([]string, len(chunks)), nil
}

func (s *fakeSearchStore) Search(ctx context.Context, query string, k int, scoreThreshold float64) ([]model.SearchResult, error) {
	return s.results, nil
}

func (s *fakeSearchStore) DeleteBySource(ctx context.Context, source string) error { return nil }

func (s *fakeSearchStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func newModelBackend(t *testing.T, answer string, chatStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if chatStatus != http.StatusOK {
			http.Error(w, "model unavailable", chatStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"content": answer},
			"done":    true,
		})
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{0.1, 0.2, 0.3}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newStreamFixture(t *testing.T, backendURL string, results []model.SearchResult) *service.ChatService {
	t.Helper()
	factory := ai.NewFactory(
		ai.KindOllama, ai.Config{Model: "test-model", BaseURL: backendURL},
		ai.KindOllama, ai.Config{Model: "test-embed", BaseURL: backendURL},
	)
	engine := rag.NewEngine(factory, func(ctx context.Context, embedder ai.IEmbeddingProvider) (rag.VectorStore, error) {
		return &fakeSearchStore{results: results}, nil
	}, rag.Options{ChunkSize: 1000, ChunkOverlap: 200, TopK: 5, ScoreThreshold: 0.7})
	require.NoError(t, engine.Initialize(context.Background()))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return service.NewChatService(engine, conversation.NewStore(client))
}

// breakingWriter accepts writes until one contains failOn, then fails that
// write and every later one.
type breakingWriter struct {
	header http.Header
	buf    bytes.Buffer
	failOn string
	failed bool
}

func (w *breakingWriter) Header() http.Header { return w.header }

func (w *breakingWriter) WriteHeader(code int) {}

func (w *breakingWriter) Flush() {}

func (w *breakingWriter) Write(p []byte) (int, error) {
	if w.failed || (w.failOn != "" && bytes.Contains(p, []byte(w.failOn))) {
		w.failed = true
		return 0, errors.New("client went away")
	}
	return w.buf.Write(p)
}

func newStreamContext(t *testing.T, w http.ResponseWriter, userID string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"message":"question?"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserIDKey, userID)
	return c
}

func searchHit(source string, content string) model.SearchResult {
	return model.SearchResult{
		Chunk: model.DocumentChunk{Content: content, Source: source},
		Score: 0.9,
	}
}

func TestStreamMessageCommitsWhenFinalWriteFails(t *testing.T) {
	backend := newModelBackend(t, "streamed answer", http.StatusOK)
	svc := newStreamFixture(t, backend.URL, []model.SearchResult{searchHit("a.md", "text")})
	handler := NewChatHandler(svc)

	w := &breakingWriter{header: http.Header{}, failOn: `"type":"done"`}
	c := newStreamContext(t, w, "alice")
	handler.StreamMessage(c)

	convID := w.header.Get("X-Conversation-Id")
	require.NotEmpty(t, convID)

	messages, err := svc.GetMessages(context.Background(), "alice", convID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, model.RoleAssistant, messages[1].Role)
	require.Equal(t, "streamed answer", messages[1].Content)
	require.Equal(t, "a.md", messages[1].Sources[0].Document)
}

func TestStreamMessageDropsAnswerWhenStreamBreaksEarly(t *testing.T) {
	backend := newModelBackend(t, "streamed answer", http.StatusOK)
	svc := newStreamFixture(t, backend.URL, []model.SearchResult{searchHit("a.md", "text")})
	handler := NewChatHandler(svc)

	w := &breakingWriter{header: http.Header{}, failOn: `"type":"token"`}
	c := newStreamContext(t, w, "alice")
	handler.StreamMessage(c)

	messages, err := svc.GetMessages(context.Background(), "alice", w.header.Get("X-Conversation-Id"))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, model.RoleUser, messages[0].Role)
}

func TestStreamMessageWritesErrorEvent(t *testing.T) {
	backend := newModelBackend(t, "", http.StatusInternalServerError)
	svc := newStreamFixture(t, backend.URL, []model.SearchResult{searchHit("a.md", "text")})
	handler := NewChatHandler(svc)

	rec := httptest.NewRecorder()
	c := newStreamContext(t, rec, "alice")
	handler.StreamMessage(c)

	require.Contains(t, rec.Body.String(), `"type":"error"`)

	messages, err := svc.GetMessages(context.Background(), "alice", rec.Header().Get("X-Conversation-Id"))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, model.RoleUser, messages[0].Role)
}
