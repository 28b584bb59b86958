// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"model-viewer-go/internal/config"
	"model-viewer-go/internal/model"
	"model-viewer-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Indexer 是资产搜索索引的最小接口，便于在未启用 Elasticsearch 时替换为空实现。
type Indexer interface {
	IndexAsset(ctx context.Context, doc model.AssetSearchDocument) error
	DeleteAsset(ctx context.Context, assetID string) error
	SearchAssets(ctx context.Context, query string, from, size int) ([]string, int64, error)
}

// Client 封装了 go-elasticsearch 客户端和目标索引名。
type Client struct {
	es        *elasticsearch.Client
	indexName string
}

// NewClient 初始化 Elasticsearch 客户端，并在索引不存在时创建它。
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{es: client, indexName: esCfg.IndexName}
	if err := c.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return c, nil
}

// assetMapping 是资产索引的映射：name 同时支持全文与精确排序，tags 按关键字过滤。
const assetMapping = `{
	"mappings": {
		"properties": {
			"asset_id":   { "type": "keyword" },
			"name": {
				"type": "text",
				"fields": { "keyword": { "type": "keyword", "ignore_above": 256 } }
			},
			"tags":       { "type": "keyword" },
			"format":     { "type": "keyword" },
			"is_public":  { "type": "boolean" },
			"size":       { "type": "long" },
			"views":      { "type": "long" },
			"created_at": { "type": "date" }
		}
	}
}`

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (c *Client) createIndexIfNotExists() error {
	res, err := c.es.Indices.Exists([]string{c.indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", c.indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(assetMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", c.indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", c.indexName)
	return nil
}

// IndexAsset 以资产 ID 为文档 ID 写入（覆盖）索引文档。
func (c *Client) IndexAsset(ctx context.Context, doc model.AssetSearchDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: doc.AssetID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引资产到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index asset")
	}
	return nil
}

// DeleteAsset 删除资产文档，文档不存在时不视为错误。
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	req := esapi.DeleteRequest{
		Index:      c.indexName,
		DocumentID: assetID,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		log.Errorf("从 Elasticsearch 删除资产出错: %s", res.String())
		return errors.New("failed to delete asset document")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// BuildSearchQuery 构造对公开资产的 multi_match 查询。
func BuildSearchQuery(query string, from, size int) map[string]interface{} {
	return map[string]interface{}{
		"from": from,
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":     query,
							"fields":    []string{"name^2", "tags"},
							"fuzziness": "AUTO",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"is_public": true}},
				},
			},
		},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}
}

// SearchAssets 执行全文检索，按相关度返回资产 ID 和命中总数。
func (c *Client) SearchAssets(ctx context.Context, query string, from, size int) ([]string, int64, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(BuildSearchQuery(query, from, size)); err != nil {
		return nil, 0, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(&buf),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Elasticsearch 搜索出错: %s", res.String())
		return nil, 0, errors.New("elasticsearch search failed")
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, err
	}
	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, parsed.Hits.Total.Value, nil
}

// NoopIndexer 在未启用 Elasticsearch 时使用。
type NoopIndexer struct{}

func (NoopIndexer) IndexAsset(context.Context, model.AssetSearchDocument) error { return nil }
func (NoopIndexer) DeleteAsset(context.Context, string) error                   { return nil }
func (NoopIndexer) SearchAssets(context.Context, string, int, int) ([]string, int64, error) {
	return nil, 0, ErrDisabled
}

// ErrDisabled 表示搜索索引未启用，调用方应回退到数据库查询。
var ErrDisabled = errors.New("elasticsearch disabled")
