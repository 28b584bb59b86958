package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"model-viewer-go/internal/model"
	"model-viewer-go/internal/service"
	"model-viewer-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// multipartOverhead 是 multipart 请求中文件以外部分允许占用的字节数。
const multipartOverhead = 1 << 20

// AssetHandler 负责处理所有与模型资产相关的 API 请求。
type AssetHandler struct {
	ingestion   service.IngestionService
	catalog     service.CatalogService
	search      service.SearchService
	maxFileSize int64
}

// NewAssetHandler 创建一个新的 AssetHandler 实例。
func NewAssetHandler(ingestion service.IngestionService, catalog service.CatalogService, search service.SearchService, maxFileSize int64) *AssetHandler {
	return &AssetHandler{ingestion: ingestion, catalog: catalog, search: search, maxFileSize: maxFileSize}
}

// Upload 处理 multipart 上传，文件字段名为 "model"。
func (h *AssetHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+multipartOverhead)

	fileHeader, err := c.FormFile("model")
	if err != nil {
		if isBodyTooLarge(err) {
			respondError(c, &service.Error{Kind: service.KindTooLarge, Message: "File too large. Maximum size is " + model.FormatSize(h.maxFileSize)})
			return
		}
		respondError(c, badRequest("No file uploaded", service.FieldError{Field: "model", Message: "a .glb or .gltf file is required"}))
		return
	}

	req := service.IngestRequest{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		ClientIP: c.ClientIP(),
	}
	if name, ok := c.GetPostForm("name"); ok {
		req.Name = &name
	}
	if raw := c.PostForm("tags"); raw != "" {
		req.Tags = parseTags(raw)
	}
	if raw, ok := c.GetPostForm("isPublic"); ok && raw != "" {
		isPublic, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, badRequest("Validation failed", service.FieldError{Field: "isPublic", Message: "isPublic must be a boolean"}))
			return
		}
		req.IsPublic = &isPublic
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: failed to open uploaded file", err)
		respondError(c, err)
		return
	}
	defer file.Close()
	req.Reader = file

	asset, err := h.ingestion.Ingest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, "Model uploaded successfully", asset)
}

// List 分页列出公开资产。
func (h *AssetHandler) List(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.catalog.List(c.Request.Context(), service.ListParams{
		Page:   page,
		Limit:  limit,
		Sort:   c.Query("sort"),
		Format: c.Query("format"),
		Search: c.Query("search"),
		Tag:    c.Query("tag"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "success", result)
}

// Search 通过全文索引检索公开资产。
func (h *AssetHandler) Search(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.search.Search(c.Request.Context(), c.Query("q"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "success", result)
}

func (h *AssetHandler) Stats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "success", stats)
}

// Get 返回资产详情，同时增加浏览次数。
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "success", asset)
}

// Download 以附件形式返回模型文件。
func (h *AssetHandler) Download(c *gin.Context) {
	dl, err := h.catalog.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if dl.RedirectURL != "" {
		c.Redirect(http.StatusFound, dl.RedirectURL)
		return
	}
	defer dl.Body.Close()

	contentType := "model/gltf-binary"
	if dl.Asset.Format == model.FormatGLTF {
		contentType = "model/gltf+json"
	}
	c.DataFromReader(http.StatusOK, dl.Size, contentType, dl.Body, map[string]string{
		"Content-Disposition": `attachment; filename="` + dl.FileName + `"`,
	})
}

// UpdateAssetRequest 定义了资产更新 API 的请求体结构。
type UpdateAssetRequest struct {
	Name     *string   `json:"name"`
	Tags     *[]string `json:"tags"`
	IsPublic *bool     `json:"isPublic"`
}

func (h *AssetHandler) Update(c *gin.Context) {
	var req UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("Invalid request body"))
		return
	}
	asset, err := h.catalog.Update(c.Request.Context(), c.Param("id"), service.UpdateAssetParams{
		Name:     req.Name,
		Tags:     req.Tags,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "Model updated successfully", asset)
}

func (h *AssetHandler) Delete(c *gin.Context) {
	asset, err := h.catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, "Model deleted successfully", gin.H{"id": asset.ID, "name": asset.Name})
}

// parseTags 接受 JSON 数组或逗号分隔的字符串。
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	var tags []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &tags) == nil {
		return tags
	}
	return strings.Split(raw, ",")
}

// pageParams 解析 page 和 limit 查询参数，缺省时返回 0 由业务层填充默认值。
func pageParams(c *gin.Context) (int, int, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	if limit > 100 {
		return 0, 0, badRequest("Validation failed", service.FieldError{Field: "limit", Message: "Limit must be between 1 and 100"})
	}
	return page, limit, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, badRequest("Validation failed", service.FieldError{Field: key, Message: key + " must be a positive integer"})
	}
	return v, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
