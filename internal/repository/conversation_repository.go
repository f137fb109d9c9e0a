// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"apin-chat-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// saveKey 是整份对话集合在 Redis 中的固定键。
// 全量序列化、全量读回，不做按对话分键。
const saveKey = "apin:saved_chats"

// ConversationStore 定义对话集合的持久化接口。
type ConversationStore interface {
	// Load 读回整份对话集合，键不存在时返回 (nil, nil)。
	Load(ctx context.Context) ([]*model.Conversation, error)
	// Save 整体覆盖写入对话集合。
	Save(ctx context.Context, conversations []*model.Conversation) error
}

type redisConversationStore struct {
	redisClient *redis.Client
}

// NewConversationStore 创建一个基于 Redis 的 ConversationStore。
func NewConversationStore(redisClient *redis.Client) ConversationStore {
	return &redisConversationStore{redisClient: redisClient}
}

// Load 从固定键读回对话集合。
func (r *redisConversationStore) Load(ctx context.Context) ([]*model.Conversation, error) {
	jsonData, err := r.redisClient.Get(ctx, saveKey).Result()
	if err == redis.Nil {
		return nil, nil // 首次启动，尚无存档
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get saved conversations: %w", err)
	}

	var conversations []*model.Conversation
	if err := json.Unmarshal([]byte(jsonData), &conversations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved conversations: %w", err)
	}
	return conversations, nil
}

// Save 将对话集合序列化后整体写入固定键。不设 TTL，作为持久存档。
func (r *redisConversationStore) Save(ctx context.Context, conversations []*model.Conversation) error {
	jsonData, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}
	if err := r.redisClient.Set(ctx, saveKey, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set saved conversations: %w", err)
	}
	return nil
}
