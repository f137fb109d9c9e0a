package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"apin-chat-go/internal/model"
	"apin-chat-go/internal/service"
	"apin-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 只监听回环地址，放开来源检查
	},
}

// ChatHandler 负责处理 WebSocket 聊天连接：接收发送意图，
// 推送状态快照与完成通知。
type ChatHandler struct {
	manager *service.Manager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(manager *service.Manager) *ChatHandler {
	return &ChatHandler{manager: manager}
}

// clientMessage 是客户端发来的意图。
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// wsConn 封装连接加一把写锁：订阅回调和完成通知来自不同 goroutine。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	log.Infof("WebSocket 连接已建立: %s", c.ClientIP())

	// 订阅状态变更：每次变更把完整快照推给客户端
	unsubscribe := h.manager.Subscribe(func(snap service.Snapshot) {
		if err := ws.writeJSON(map[string]interface{}{
			"type": "state",
			"data": snap,
		}); err != nil {
			log.Warnf("推送状态快照失败: %v", err)
		}
	})
	defer unsubscribe()

	// 连接建立即下发一次当前状态
	_ = ws.writeJSON(map[string]interface{}{
		"type": "state",
		"data": h.manager.Snapshot(),
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var intent clientMessage
		if err := json.Unmarshal(message, &intent); err != nil {
			log.Warnf("收到无法解析的 WebSocket 消息: %s", string(message))
			continue
		}
		if intent.Type != "message" || intent.Content == "" {
			continue
		}

		// 异步执行发送：同一对话的重复发送被 Manager 的忙检查
		// 直接拒绝，不在这里排队。用后台上下文，生成请求一旦
		// 发出就跑到底，连接断开也不中途取消。
		go func(content string) {
			h.manager.SendMessage(context.Background(), content)
			h.sendCompletion(ws)
		}(intent.Content)
	}
}

// sendCompletion 在一次发送解决（成功或失败）后下发完成通知。
func (h *ChatHandler) sendCompletion(ws *wsConn) {
	err := ws.writeJSON(map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      model.NowLocal(),
	})
	if err != nil {
		log.Warnf("发送完成通知失败: %v", err)
	}
}
