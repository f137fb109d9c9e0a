// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"apin-chat-go/internal/repository"
	"apin-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与对话相关的 API 请求。
type ConversationHandler struct {
	manager *service.Manager
	archive repository.ExchangeArchive // 可为 nil
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(manager *service.Manager, archive repository.ExchangeArchive) *ConversationHandler {
	return &ConversationHandler{manager: manager, archive: archive}
}

// GetState 返回完整的发布状态快照：对话列表、选中项、加载与错误标志。
func (h *ConversationHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.manager.Snapshot(),
	})
}

// CreateConversation 新建对话并将其设为选中。
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	conv := h.manager.CreateConversation(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    conv,
	})
}

// SelectConversation 切换选中对话。未知 ID 同样返回成功：
// 选中保持不变，与桌面端点击已消失条目的行为一致。
func (h *ConversationHandler) SelectConversation(c *gin.Context) {
	h.manager.SelectConversation(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.manager.Snapshot(),
	})
}

// DeleteConversation 删除对话并销毁其模型会话。
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	h.manager.DeleteConversation(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.manager.Snapshot(),
	})
}

// GetAvailability 重新探测模型可用性并返回结果。
func (h *ConversationHandler) GetAvailability(c *gin.Context) {
	h.manager.CheckAvailability(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"available":     h.manager.IsAIAvailable(),
			"statusMessage": h.manager.StatusMessage(),
		},
	})
}

// GetHistory 返回某个对话的归档问答记录。归档未启用时返回空列表。
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "success",
			"data":    []any{},
		})
		return
	}

	records, err := h.archive.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve exchange history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    records,
	})
}
