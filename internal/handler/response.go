// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"model-viewer-go/internal/service"
	"model-viewer-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// statusFor 将业务错误类别映射为 HTTP 状态码。
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnsupportedType, service.KindUnsupportedExtension:
		return http.StatusUnsupportedMediaType
	case service.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case service.KindNotFound, service.KindAssetNotFound, service.KindTemplateNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError 统一渲染错误响应。底层错误信息只在非 release 模式下返回。
func respondError(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		e = &service.Error{Kind: service.KindPersistence, Message: "Internal server error", Err: err}
	}
	status := statusFor(e.Kind)
	body := gin.H{
		"code":    status,
		"kind":    e.Kind,
		"message": e.Message,
	}
	if len(e.Fields) > 0 {
		body["errors"] = e.Fields
	}
	if e.Err != nil && gin.Mode() != gin.ReleaseMode {
		body["error"] = e.Err.Error()
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed: "+c.Request.Method+" "+c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, body)
}

func respondData(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    data,
	})
}

func badRequest(message string, fields ...service.FieldError) error {
	return &service.Error{Kind: service.KindValidation, Message: message, Fields: fields}
}
