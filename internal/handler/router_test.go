package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/docchat-dev/docchat/internal/pkg/jwt"
	"github.com/docchat-dev/docchat/internal/rag"
)

func newTestRouter(t *testing.T, deps RouterDeps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), deps)
	return engine
}

func TestHealthRouteIsPublic(t *testing.T) {
	router := newTestRouter(t, RouterDeps{
		Health:    NewHealthHandler(rag.NewEngine(nil, nil, rag.Options{})),
		Chat:      NewChatHandler(nil),
		Documents: NewDocumentHandler(nil),
		JWTSecret: []byte("secret"),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "initializing")
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t, RouterDeps{
		Health:    NewHealthHandler(nil),
		Chat:      NewChatHandler(nil),
		Documents: NewDocumentHandler(nil),
		JWTSecret: []byte("secret"),
	})

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/chat/message"},
		{http.MethodPost, "/api/v1/chat/stream"},
		{http.MethodGet, "/api/v1/chat/conversations"},
		{http.MethodPost, "/api/v1/documents"},
		{http.MethodGet, "/api/v1/documents/count"},
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(route.method, route.path, nil)
		router.ServeHTTP(rec, req)
		require.Contains(t, rec.Body.String(), "authorization",
			"%s %s should require auth", route.method, route.path)
	}
}

func TestProtectedRoutesRejectBadToken(t *testing.T) {
	router := newTestRouter(t, RouterDeps{
		Health:    NewHealthHandler(nil),
		Chat:      NewChatHandler(nil),
		Documents: NewDocumentHandler(nil),
		JWTSecret: []byte("secret"),
	})

	token, err := jwt.GenerateToken("user-1", "", []byte("other-secret"), time.Hour)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), "invalid token")
}

func TestDocumentMutationRequiresAdminRole(t *testing.T) {
	router := newTestRouter(t, RouterDeps{
		Health:    NewHealthHandler(nil),
		Chat:      NewChatHandler(nil),
		Documents: NewDocumentHandler(nil),
		JWTSecret: []byte("secret"),
	})

	token, err := jwt.GenerateToken("user-1", "", []byte("secret"), time.Hour)
	require.NoError(t, err)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/documents"},
		{http.MethodDelete, "/api/v1/documents/readme.md"},
		{http.MethodPost, "/api/v1/documents/reindex"},
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(rec, req)
		require.Contains(t, rec.Body.String(), "admin role required",
			"%s %s should be admin-only", route.method, route.path)
	}
}
