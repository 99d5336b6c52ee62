package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPDocumentService 通过 HTTP 调用外部文档渲染服务
//
//	POST {baseURL}/documents  {"kind":..,"application_id":..,"data":{..}}
//	200/201 → {"url": "..."}
type HTTPDocumentService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDocumentService 创建 HTTP 文档服务客户端；client 为 nil 时使用默认客户端
// 超时由 Gateway 的 context 控制
func NewHTTPDocumentService(baseURL string, client *http.Client) *HTTPDocumentService {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDocumentService{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type generateResponse struct {
	URL string `json:"url"`
}

func (s *HTTPDocumentService) Generate(ctx context.Context, req DocumentRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("序列化文档请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("构造文档请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("调用文档服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("文档服务返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("解析文档服务响应失败: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("文档服务未返回文档地址")
	}
	return out.URL, nil
}

// StaticDocumentService 未接入渲染服务时使用：文档由 PDF 服务按规范地址即时渲染，
// 这里只返回规范地址
type StaticDocumentService struct {
	publicBaseURL string
}

// NewStaticDocumentService 创建静态地址文档服务
func NewStaticDocumentService(publicBaseURL string) *StaticDocumentService {
	return &StaticDocumentService{publicBaseURL: publicBaseURL}
}

func (s *StaticDocumentService) Generate(_ context.Context, req DocumentRequest) (string, error) {
	return DocumentURL(s.publicBaseURL, req.Kind, req.ApplicationID), nil
}
