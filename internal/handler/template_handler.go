package handler

import (
	"errors"
	"io"
	"net/http"

	"model-viewer-go/internal/middleware"
	"model-viewer-go/internal/service"

	"github.com/gin-gonic/gin"
)

// TemplateHandler 负责处理模板相关的 API 请求。
type TemplateHandler struct {
	templates service.TemplateService
}

// NewTemplateHandler 创建一个新的 TemplateHandler 实例。
func NewTemplateHandler(templates service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "success", templates)
}

// InstantiateRequest 定义了从模板创建配置的请求体，modelId 可选。
type InstantiateRequest struct {
	ModelID *string `json:"modelId"`
}

// Instantiate 将指定模板复制为当前会话的一条新配置。
func (h *TemplateHandler) Instantiate(c *gin.Context) {
	var req InstantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, badRequest("Invalid request body"))
		return
	}
	profile, err := h.templates.Instantiate(c.Request.Context(), c.Param("templateName"), middleware.SessionID(c), req.ModelID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "Settings created from template", profile)
}
