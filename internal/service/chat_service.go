package service

import (
	"context"

	"apin-chat-go/internal/model"
	"apin-chat-go/pkg/llm"
	"apin-chat-go/pkg/log"
)

// SendMessage 把用户输入发给当前选中对话并等待模型回复。
// 没有选中对话时为 no-op。用户消息先落盘再发起生成调用，
// 生成失败时不回滚、只把错误文本发布出去。
//
// 同一对话已有在途请求时整个操作被拒绝：不追加消息，只把
// 繁忙错误发布出去，等上一次调用解决后可以重试。
func (m *Manager) SendMessage(ctx context.Context, content string) {
	m.mu.Lock()
	conv := m.findLocked(m.selectedID)
	if conv == nil {
		m.mu.Unlock()
		return
	}
	convID := conv.ID

	if m.inFlight[convID] {
		m.errMsg = llm.ErrSessionBusy.Error()
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.publish(snap)
		return
	}
	m.inFlight[convID] = true

	conv.AddMessage(model.NewMessage(content, true))
	m.persistLocked(ctx)
	m.loading = true
	m.errMsg = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	// 唯一的等待点。同一对话的并发发送会在适配器的忙检查上
	// 立刻失败，不同对话互不阻塞。
	answer, err := m.llmClient.GenerateResponse(ctx, convID, content)

	m.mu.Lock()
	delete(m.inFlight, convID)
	if err != nil {
		m.errMsg = err.Error()
	} else if c := m.findLocked(convID); c != nil {
		// 等待期间对话可能已被删除，删了就丢弃这条回复
		c.AddMessage(model.NewMessage(answer, false))
		m.persistLocked(ctx)
	}
	m.loading = false
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	if err == nil {
		m.archiveExchange(convID, content, answer)
	}
}

// CheckAvailability 重新探测模型可用性并发布。
func (m *Manager) CheckAvailability(ctx context.Context) {
	avail := m.llmClient.Availability(ctx)

	m.mu.Lock()
	m.availability = avail
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
}

// SelectedConversation 返回当前选中对话的拷贝，无选中时返回 nil。
func (m *Manager) SelectedConversation() *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findLocked(m.selectedID)
	if c == nil {
		return nil
	}
	cc := *c
	cc.Messages = append([]model.Message(nil), c.Messages...)
	return &cc
}

// StatusMessage 返回面向用户的模型状态描述。
func (m *Manager) StatusMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availability.Message()
}

// IsAIAvailable 报告上次探测时模型是否可用。
func (m *Manager) IsAIAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availability.Available
}

// archiveExchange 把成功的一轮问答写入归档库。归档是旁路留痕，
// 失败只记日志，绝不影响聊天结果。
func (m *Manager) archiveExchange(conversationID, question, answer string) {
	if m.archive == nil {
		return
	}
	// 用后台上下文：即使触发请求已经结束，也希望归档成功
	record := &model.ExchangeRecord{
		ConversationID: conversationID,
		Question:       question,
		Answer:         answer,
	}
	if err := m.archive.Append(context.Background(), record); err != nil {
		log.Errorf("归档问答记录失败: %v", err)
	}
}
