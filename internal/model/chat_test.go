package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationDefaults(t *testing.T) {
	c := NewConversation()

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, PlaceholderTitle, c.Title)
	assert.Empty(t, c.Messages)
	assert.Equal(t, c.CreatedAt, c.LastMessageAt)
}

func TestAddMessageDerivesTitleOnce(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short message", "hello there", "hello there"},
		{"exactly five words", "one two three four five", "one two three four five"},
		{"truncated to five words", "what is the capital of France please", "what is the capital of"},
		{"collapses whitespace", "  how   do\tI\n bake bread today", "how do I bake bread"},
		{"unicode content", "你好 请 介绍 一下 自己 谢谢", "你好 请 介绍 一下 自己"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation()
			c.AddMessage(NewMessage(tt.content, true))
			assert.Equal(t, tt.want, c.Title)

			// 标题只改写一次
			c.AddMessage(NewMessage("a completely different second message", true))
			assert.Equal(t, tt.want, c.Title)
		})
	}
}

func TestAddMessageKeepsPlaceholderTitle(t *testing.T) {
	t.Run("assistant message", func(t *testing.T) {
		c := NewConversation()
		c.AddMessage(NewMessage("I am the assistant", false))
		assert.Equal(t, PlaceholderTitle, c.Title)

		// 之后的首条用户消息仍然能改写标题
		c.AddMessage(NewMessage("first user words here", true))
		assert.Equal(t, "first user words here", c.Title)
	})

	t.Run("empty user message", func(t *testing.T) {
		c := NewConversation()
		c.AddMessage(NewMessage("", true))
		assert.Equal(t, PlaceholderTitle, c.Title)
	})

	t.Run("whitespace only user message", func(t *testing.T) {
		c := NewConversation()
		c.AddMessage(NewMessage("   \t\n ", true))
		assert.Equal(t, PlaceholderTitle, c.Title)
	})
}

func TestAddMessageOrderingAndLastMessageAt(t *testing.T) {
	c := NewConversation()

	first := NewMessage("question one", true)
	second := NewMessage("answer one", false)
	second.Timestamp = first.Timestamp.Add(time.Second)
	third := NewMessage("question two", true)
	third.Timestamp = second.Timestamp.Add(time.Second)

	c.AddMessage(first)
	c.AddMessage(second)
	c.AddMessage(third)

	require.Len(t, c.Messages, 3)
	assert.Equal(t, []string{"question one", "answer one", "question two"},
		[]string{c.Messages[0].Content, c.Messages[1].Content, c.Messages[2].Content})
	assert.True(t, c.Messages[0].IsUser)
	assert.False(t, c.Messages[1].IsUser)
	assert.Equal(t, third.Timestamp, c.LastMessageAt)
}

func TestConversationJSONRoundTrip(t *testing.T) {
	empty := NewConversation()

	single := NewConversation()
	single.AddMessage(NewMessage("只有 一条 消息", true))

	many := NewConversation()
	many.AddMessage(NewMessage("hello 世界 🌍 how are you", true))
	many.AddMessage(NewMessage("", false)) // 空文本也要精确往返
	many.AddMessage(NewMessage("final answer", false))

	original := []*Conversation{many, single, empty}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded []*Conversation
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded, 3)
	for i, want := range original {
		got := decoded[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Title, got.Title)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, want.LastMessageAt.Equal(got.LastMessageAt))
		require.Len(t, got.Messages, len(want.Messages))
		for j, wm := range want.Messages {
			assert.Equal(t, wm.ID, got.Messages[j].ID)
			assert.Equal(t, wm.Content, got.Messages[j].Content)
			assert.Equal(t, wm.IsUser, got.Messages[j].IsUser)
			assert.True(t, wm.Timestamp.Equal(got.Messages[j].Timestamp))
		}
	}
}
