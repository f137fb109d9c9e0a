// Package llm 封装本机模型服务，提供可用性探测、按对话划分的
// 会话上下文，以及一次一答的文本生成调用。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"apin-chat-go/internal/config"
)

// SystemInstruction 是注入每个会话的固定人设提示词。
// 上下文只在单个对话内维持，不做跨对话记忆。
const SystemInstruction = "You are Apin, an AI assistant. You are helpful, creative, and engaging. " +
	"Keep your responses conversational and concise unless specifically asked for detailed information. " +
	"You maintain context within this conversation but don't remember previous conversations."

// Temperature 是所有生成请求统一使用的采样温度，不支持逐次调整。
const Temperature = 0.7

// Reason 细分模型不可用的原因。
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonDeviceNotEligible 配置的模型没有安装在本机。
	ReasonDeviceNotEligible
	// ReasonServiceNotEnabled 本机模型服务没有运行或被禁用。
	ReasonServiceNotEnabled
	// ReasonModelLoading 服务已启动但模型仍在加载。
	ReasonModelLoading
	// ReasonOther 其他错误，详情见 Detail。
	ReasonOther
)

// Availability 描述一次可用性探测的结果。状态随平台变化，
// 调用方需要轮询而不是缓存一次了事。
type Availability struct {
	Available bool
	Reason    Reason
	Detail    string
}

// Message 返回面向用户的状态描述。
func (a Availability) Message() string {
	if a.Available {
		return "AI Ready"
	}
	switch a.Reason {
	case ReasonDeviceNotEligible:
		return "Model is not installed on this device"
	case ReasonServiceNotEnabled:
		return "Please start the local AI service"
	case ReasonModelLoading:
		return "AI model is loading..."
	default:
		return "AI unavailable: " + a.Detail
	}
}

// 对话级错误分类。Manager 将它们的文本直接透传给用户。
var (
	ErrModelUnavailable = errors.New("AI model is not available")
	ErrSessionBusy      = errors.New("AI is currently processing another request")
)

// GenerationError 包装模型服务返回的生成失败详情。
type GenerationError struct {
	Detail string
}

func (e *GenerationError) Error() string {
	return "Failed to generate response: " + e.Detail
}

// Client 定义模型服务适配器的接口。
type Client interface {
	// Availability 探测当前可用性，无副作用。
	Availability(ctx context.Context) Availability
	// CreateSession 幂等地为对话建立会话上下文，覆盖同 ID 的旧会话。
	CreateSession(conversationID string)
	// RemoveSession 丢弃会话上下文，不存在时为 no-op。
	RemoveSession(conversationID string)
	// GenerateResponse 发起一次 prompt→completion 调用。
	// 同一对话同时只允许一个在途请求，繁忙时立刻返回 ErrSessionBusy。
	GenerateResponse(ctx context.Context, conversationID, prompt string) (string, error)
}

// session 保存单个对话的模型上下文。busy 标志保证每个会话
// 至多一个在途请求：Busy 状态下再次进入直接失败，不排队。
type session struct {
	busy       bool
	transcript []chatMessage
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type localClient struct {
	cfg    config.ModelConfig
	client *http.Client

	mu       sync.Mutex
	sessions map[string]*session
}

// NewClient 基于配置创建一个本机模型服务客户端。
func NewClient(cfg config.ModelConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &localClient{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		sessions: make(map[string]*session),
	}
}

// Availability 通过 /api/tags 探测服务与模型状态。
func (c *localClient) Availability(ctx context.Context) Availability {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return Availability{Reason: ReasonOther, Detail: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// 连不上服务：未启动或未启用
		return Availability{Reason: ReasonServiceNotEnabled, Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return Availability{Reason: ReasonModelLoading}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return Availability{Reason: ReasonOther, Detail: fmt.Sprintf("status %s: %s", resp.Status, string(body))}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Availability{Reason: ReasonOther, Detail: fmt.Sprintf("decode tags: %v", err)}
	}

	if c.cfg.Name != "" && !hasModel(tags, c.cfg.Name) {
		return Availability{Reason: ReasonDeviceNotEligible, Detail: c.cfg.Name}
	}
	return Availability{Available: true}
}

// hasModel 判断模型是否已安装，"qwen3" 可匹配 "qwen3:8b" 这类带标签的名字。
func hasModel(tags tagsResponse, name string) bool {
	for _, m := range tags.Models {
		if m.Name == name || strings.SplitN(m.Name, ":", 2)[0] == name {
			return true
		}
	}
	return false
}

// CreateSession 建立（或重置）对话的会话上下文并注入系统提示词。
func (c *localClient) CreateSession(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[conversationID] = &session{
		transcript: []chatMessage{{Role: "system", Content: SystemInstruction}},
	}
}

// RemoveSession 丢弃对话的会话上下文。
func (c *localClient) RemoveSession(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, conversationID)
}

// GenerateResponse 执行一次生成调用。前置检查按顺序：可用性、
// 会话存在（缺失则惰性创建）、会话空闲。成功后把这轮问答并入
// 会话上下文，后续请求即可带上对话内记忆。
func (c *localClient) GenerateResponse(ctx context.Context, conversationID, prompt string) (string, error) {
	if avail := c.Availability(ctx); !avail.Available {
		return "", ErrModelUnavailable
	}

	c.mu.Lock()
	sess, ok := c.sessions[conversationID]
	if !ok {
		sess = &session{
			transcript: []chatMessage{{Role: "system", Content: SystemInstruction}},
		}
		c.sessions[conversationID] = sess
	}
	if sess.busy {
		c.mu.Unlock()
		return "", ErrSessionBusy
	}
	sess.busy = true
	messages := make([]chatMessage, len(sess.transcript), len(sess.transcript)+1)
	copy(messages, sess.transcript)
	messages = append(messages, chatMessage{Role: "user", Content: prompt})
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		// 请求期间会话可能已随对话删除
		if s, ok := c.sessions[conversationID]; ok && s == sess {
			s.busy = false
		}
		c.mu.Unlock()
	}()

	answer, err := c.chat(ctx, messages)
	if err != nil {
		return "", &GenerationError{Detail: err.Error()}
	}

	c.mu.Lock()
	if s, ok := c.sessions[conversationID]; ok && s == sess {
		s.transcript = append(s.transcript,
			chatMessage{Role: "user", Content: prompt},
			chatMessage{Role: "assistant", Content: answer},
		)
	}
	c.mu.Unlock()

	return answer, nil
}

// chat 调用模型服务的非流式 chat 接口。
func (c *localClient) chat(ctx context.Context, messages []chatMessage) (string, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Name,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: Temperature},
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var chunk chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	return chunk.Message.Content, nil
}
