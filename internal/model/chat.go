// Package model 包含了应用的数据模型定义。
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderTitle 是新建对话的初始标题，首条用户消息到达后被改写。
const PlaceholderTitle = "New Chat"

// titleWordLimit 标题取首条用户消息的前几个词。
const titleWordLimit = 5

// Message 代表对话中的一条消息，创建后不再修改。
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage 创建一条新消息并分配 ID 和时间戳。
func NewMessage(content string, isUser bool) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		IsUser:    isUser,
		Timestamp: time.Now(),
	}
}

// Conversation 代表一次完整的对话：有序的消息列表加元数据。
// 消息只追加不删除，整个对话只能作为整体被删除。
type Conversation struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// NewConversation 创建一个带占位标题的空对话。
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:            uuid.NewString(),
		Title:         PlaceholderTitle,
		Messages:      []Message{},
		CreatedAt:     now,
		LastMessageAt: now,
	}
}

// AddMessage 追加一条消息并刷新最后活动时间。
// 若标题仍为占位符且这是非空的用户消息，则把标题改写为
// 该消息的前五个词；此改写最多发生一次。
func (c *Conversation) AddMessage(m Message) {
	c.Messages = append(c.Messages, m)
	c.LastMessageAt = m.Timestamp

	if c.Title == PlaceholderTitle && m.IsUser && m.Content != "" {
		words := strings.Fields(m.Content)
		if len(words) > titleWordLimit {
			words = words[:titleWordLimit]
		}
		if title := strings.Join(words, " "); title != "" {
			c.Title = title
		}
	}
}
