package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"model-viewer-go/internal/middleware"
	"model-viewer-go/internal/model"
	"model-viewer-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ProfileHandler 负责处理查看器配置相关的 API 请求。
type ProfileHandler struct {
	profiles service.ProfileService
}

// NewProfileHandler 创建一个新的 ProfileHandler 实例。
func NewProfileHandler(profiles service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Save 为当前会话保存一条新配置。
func (h *ProfileHandler) Save(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, badRequest("Invalid request body"))
		return
	}
	profile, err := h.profiles.Save(c.Request.Context(), middleware.SessionID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "Settings saved successfully", profile)
}

// Latest 返回会话最新的配置，没有时返回默认配置。
func (h *ProfileHandler) Latest(c *gin.Context) {
	profile, isDefault, err := h.profiles.GetLatest(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":      http.StatusOK,
		"message":   "success",
		"data":      profile,
		"isDefault": isDefault,
	})
}

func (h *ProfileHandler) ListSession(c *gin.Context) {
	profiles, err := h.profiles.ListForSession(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "success", profiles)
}

func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "success", profile)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, badRequest("Invalid request body"))
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "Settings updated successfully", profile)
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	profile, err := h.profiles.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "Settings deleted successfully", gin.H{"id": profile.ID})
}

// Export 以 JSON 附件的形式导出会话最新的配置。
func (h *ProfileHandler) Export(c *gin.Context) {
	snapshot, err := h.profiles.Export(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="3d-viewer-settings.json"`)
	c.IndentedJSON(http.StatusOK, snapshot)
}

// ImportRequest 定义了配置导入 API 的请求体结构。
type ImportRequest struct {
	Settings json.RawMessage `json:"settings"`
}

// Import 将快照叠加到默认渲染参数之上，缺省字段取默认值。
func (h *ProfileHandler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("Invalid request body"))
		return
	}
	if len(req.Settings) == 0 || bytes.Equal(bytes.TrimSpace(req.Settings), []byte("null")) {
		respondError(c, badRequest("No settings data provided", service.FieldError{Field: "settings", Message: "settings is required"}))
		return
	}
	base := model.BaselineProfile()
	snapshot := base.Snapshot()
	if err := json.Unmarshal(req.Settings, &snapshot); err != nil {
		respondError(c, badRequest("Invalid settings data", service.FieldError{Field: "settings", Message: err.Error()}))
		return
	}
	profile, err := h.profiles.Import(c.Request.Context(), middleware.SessionID(c), snapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "Settings imported successfully", profile)
}
