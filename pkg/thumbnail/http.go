package thumbnail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider 调用外部渲染服务生成缩略图。
type HTTPProvider struct {
	serverURL string
	client    *http.Client
}

// NewHTTPProvider 创建一个新的渲染服务客户端。
func NewHTTPProvider(serverURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{serverURL: serverURL, client: &http.Client{Timeout: timeout}}
}

type renderRequest struct {
	Location string `json:"location"`
}

type renderResponse struct {
	URL string `json:"url"`
}

// Generate 请求渲染服务并返回缩略图 URL。
func (p *HTTPProvider) Generate(ctx context.Context, location string) (string, error) {
	body, err := json.Marshal(renderRequest{Location: location})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/thumbnails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用缩略图服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("缩略图服务返回错误 [%d]: %s", resp.StatusCode, string(msg))
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("解析缩略图服务响应失败: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("缩略图服务返回了空的 URL")
	}
	return out.URL, nil
}
