// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apin-chat-go/internal/config"
	"apin-chat-go/internal/handler"
	"apin-chat-go/internal/middleware"
	"apin-chat-go/internal/model"
	"apin-chat-go/internal/repository"
	"apin-chat-go/internal/service"
	"apin-chat-go/pkg/database"
	"apin-chat-go/pkg/llm"
	"apin-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化存储：Redis 存对话集合，MySQL 归档可选
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	var archive repository.ExchangeArchive
	if cfg.Database.MySQL.Enabled {
		database.InitMySQL(cfg.Database.MySQL.DSN)
		if err := database.DB.AutoMigrate(&model.ExchangeRecord{}); err != nil {
			log.Fatal("归档表迁移失败", err)
		}
		archive = repository.NewExchangeArchive(database.DB)
	}

	// 4. 初始化模型服务客户端与会话管理器
	llmClient := llm.NewClient(cfg.Model)
	conversationStore := repository.NewConversationStore(database.RDB)
	manager := service.NewManager(llmClient, conversationStore, archive)
	log.Infof("模型状态: %s", manager.StatusMessage())

	// 5. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 6. 注册路由
	conversationHandler := handler.NewConversationHandler(manager, archive)
	chatHandler := handler.NewChatHandler(manager)

	apiV1 := r.Group("/api/v1")
	{
		conversations := apiV1.Group("/conversations")
		{
			conversations.GET("", conversationHandler.GetState)
			conversations.POST("", conversationHandler.CreateConversation)
			conversations.PUT("/:id/select", conversationHandler.SelectConversation)
			conversations.DELETE("/:id", conversationHandler.DeleteConversation)
			conversations.GET("/:id/history", conversationHandler.GetHistory)
		}
		apiV1.GET("/availability", conversationHandler.GetAvailability)
	}
	r.GET("/chat", chatHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
