// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"sync"

	"apin-chat-go/internal/model"
	"apin-chat-go/internal/repository"
	"apin-chat-go/pkg/llm"
	"apin-chat-go/pkg/log"
)

// Snapshot 是 Manager 对外发布的完整状态快照，表现层只读。
type Snapshot struct {
	Conversations []*model.Conversation `json:"conversations"`
	SelectedID    string                `json:"selectedId"`
	Loading       bool                  `json:"loading"`
	ErrorMessage  string                `json:"errorMessage"`
	Available     bool                  `json:"available"`
	StatusMessage string                `json:"statusMessage"`
}

// Manager 是对话集合、选中状态与发送流程的唯一事实来源，
// 也是持久化状态的唯一写入方。所有可变状态由一把互斥锁保护，
// 唯一的等待点是 SendMessage 里对模型服务的调用（调用期间不持锁）。
type Manager struct {
	mu            sync.Mutex
	conversations []*model.Conversation // 最近使用的排在最前
	selectedID    string
	loading       bool
	errMsg        string
	availability  llm.Availability
	inFlight      map[string]bool // conversationID → 有在途生成请求

	llmClient llm.Client
	store     repository.ConversationStore
	archive   repository.ExchangeArchive // 可为 nil

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewManager 创建 Manager 并从持久层读回对话集合。
// 存档缺失或损坏时静默回退为空集合：本地存档是尽力而为的缓存，
// 解码失败不升级为致命错误。
func NewManager(llmClient llm.Client, store repository.ConversationStore, archive repository.ExchangeArchive) *Manager {
	m := &Manager{
		llmClient: llmClient,
		store:     store,
		archive:   archive,
		inFlight:  make(map[string]bool),
		subs:      make(map[int]func(Snapshot)),
	}

	ctx := context.Background()
	conversations, err := store.Load(ctx)
	if err != nil {
		log.Warnf("加载对话存档失败，使用空集合: %v", err)
		conversations = nil
	}
	m.conversations = conversations
	m.availability = llmClient.Availability(ctx)
	return m
}

// CreateConversation 新建对话：插入集合头部、设为选中、
// 立即建立模型会话并持久化。没有失败路径。
func (m *Manager) CreateConversation(ctx context.Context) *model.Conversation {
	conv := model.NewConversation()

	m.mu.Lock()
	m.conversations = append([]*model.Conversation{conv}, m.conversations...)
	m.selectedID = conv.ID
	m.llmClient.CreateSession(conv.ID)
	m.persistLocked(ctx)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
	return conv
}

// SelectConversation 把选中切换到指定对话。
// 未知 ID 静默忽略：选中不变，也不算错误。
func (m *Manager) SelectConversation(id string) {
	m.mu.Lock()
	if m.findLocked(id) == nil {
		m.mu.Unlock()
		return
	}
	m.selectedID = id
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
}

// DeleteConversation 删除对话并销毁其模型会话。被删的是当前
// 选中项时，选中移交给集合新的第一个对话（集合空则清空选中）。
func (m *Manager) DeleteConversation(ctx context.Context, id string) {
	m.mu.Lock()
	idx := -1
	for i, c := range m.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return
	}

	m.conversations = append(m.conversations[:idx], m.conversations[idx+1:]...)
	m.llmClient.RemoveSession(id)

	if m.selectedID == id {
		if len(m.conversations) > 0 {
			m.selectedID = m.conversations[0].ID
		} else {
			m.selectedID = ""
		}
	}
	m.persistLocked(ctx)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
}

// Snapshot 返回当前发布状态的深拷贝。
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe 注册状态变更回调，返回取消函数。回调在每次状态
// 变更后带最新快照被调用，调用时不持有 Manager 锁。
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// findLocked 按 ID 查找对话，调用方必须持锁。
func (m *Manager) findLocked(id string) *model.Conversation {
	for _, c := range m.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// persistLocked 把整个对话集合写入持久层，调用方必须持锁。
// 写入失败只记日志：存档是缓存，不把失败传导给用户操作。
func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.store.Save(ctx, m.conversations); err != nil {
		log.Errorf("保存对话存档失败: %v", err)
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	conversations := make([]*model.Conversation, len(m.conversations))
	for i, c := range m.conversations {
		cc := *c
		cc.Messages = append([]model.Message(nil), c.Messages...)
		conversations[i] = &cc
	}
	return Snapshot{
		Conversations: conversations,
		SelectedID:    m.selectedID,
		Loading:       m.loading,
		ErrorMessage:  m.errMsg,
		Available:     m.availability.Available,
		StatusMessage: m.availability.Message(),
	}
}

// publish 把快照分发给所有订阅者。
func (m *Manager) publish(snap Snapshot) {
	m.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
