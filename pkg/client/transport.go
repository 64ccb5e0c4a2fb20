package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxReasonBytes 失败原因最多读取的字节数
const maxReasonBytes = 4096

// Fragment 服务端渲染的评论片段
type Fragment struct {
	HTML string
	// Slot 片段应插入的容器ID，服务端未提供时为空
	Slot string
}

// Transport 评论接口
type Transport interface {
	Create(ctx context.Context, articleID int64, replyTo *int64, content string) (int64, error)
	Fragment(ctx context.Context, id int64) (Fragment, error)
	Edit(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) error
	Preview(ctx context.Context, source string) (string, error)
}

// HTTPTransport 通过HTTP访问评论接口
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport 创建HTTP传输，token 为空时以匿名身份访问
func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
		return nil, &ServerError{Status: resp.StatusCode, Reason: strings.TrimSpace(string(reason))}
	}
	return resp, nil
}

func (t *HTTPTransport) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("编码请求失败: %w", err)
	}
	return t.do(ctx, method, path, "application/json", bytes.NewReader(b))
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return b, nil
}

func discard(resp *http.Response) error {
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Create 发表评论，返回新评论ID
func (t *HTTPTransport) Create(ctx context.Context, articleID int64, replyTo *int64, content string) (int64, error) {
	payload := map[string]string{
		"article_id": formatID(articleID),
		"content":    content,
	}
	if replyTo != nil {
		payload["reply_to"] = formatID(*replyTo)
	}
	resp, err := t.send(ctx, http.MethodPost, "/comment", payload)
	if err != nil {
		return 0, err
	}
	b, err := readBody(resp)
	if err != nil {
		return 0, err
	}

	var created struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(b, &created); err != nil {
		return 0, fmt.Errorf("解析响应失败: %w", err)
	}
	id, err := created.ID.Int64()
	if err != nil {
		return 0, fmt.Errorf("解析评论ID失败: %w", err)
	}
	return id, nil
}

// Fragment 获取评论的渲染片段
func (t *HTTPTransport) Fragment(ctx context.Context, id int64) (Fragment, error) {
	resp, err := t.do(ctx, http.MethodGet, "/comment/"+formatID(id), "", nil)
	if err != nil {
		return Fragment{}, err
	}
	slot := resp.Header.Get("X-Fragment-Slot")
	b, err := readBody(resp)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{HTML: string(b), Slot: slot}, nil
}

// Edit 编辑评论
func (t *HTTPTransport) Edit(ctx context.Context, id int64, content string) error {
	resp, err := t.send(ctx, http.MethodPatch, "/comment", map[string]string{
		"comment_id": formatID(id),
		"content":    content,
	})
	if err != nil {
		return err
	}
	return discard(resp)
}

// Delete 删除评论
func (t *HTTPTransport) Delete(ctx context.Context, id int64) error {
	resp, err := t.do(ctx, http.MethodDelete, "/comment/"+formatID(id), "", nil)
	if err != nil {
		return err
	}
	return discard(resp)
}

// Preview 渲染markdown预览
func (t *HTTPTransport) Preview(ctx context.Context, source string) (string, error) {
	resp, err := t.do(ctx, http.MethodPost, "/comment/preview", "text/markdown; charset=utf-8", strings.NewReader(source))
	if err != nil {
		return "", err
	}
	b, err := readBody(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PreviewQuery 以查询参数发送预览，兼容只支持GET的部署
func (t *HTTPTransport) PreviewQuery(ctx context.Context, source string) (string, error) {
	resp, err := t.do(ctx, http.MethodGet, "/comment/preview?content="+url.QueryEscape(source), "", nil)
	if err != nil {
		return "", err
	}
	b, err := readBody(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// isNetwork 超时与取消一律视为网络失败
func isNetwork(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
