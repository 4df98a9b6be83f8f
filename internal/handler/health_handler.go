package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/docchat-dev/docchat/internal/pkg/response"
	"github.com/docchat-dev/docchat/internal/rag"
)

type HealthHandler struct {
	engine *rag.Engine
}

func NewHealthHandler(engine *rag.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := "ok"
	if !h.engine.Initialized() {
		status = "initializing"
	}
	response.Success(c, gin.H{
		"status":      status,
		"initialized": h.engine.Initialized(),
	})
}
