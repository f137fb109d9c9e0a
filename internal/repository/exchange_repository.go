package repository

import (
	"context"
	"fmt"

	"apin-chat-go/internal/model"

	"gorm.io/gorm"
)

// ExchangeArchive 定义问答归档的操作接口。归档是可选的审计留痕，
// 写入失败不影响聊天主流程。
type ExchangeArchive interface {
	Append(ctx context.Context, record *model.ExchangeRecord) error
	History(ctx context.Context, conversationID string) ([]model.ExchangeRecord, error)
}

type gormExchangeArchive struct {
	db *gorm.DB
}

// NewExchangeArchive 创建一个基于 MySQL 的 ExchangeArchive。
func NewExchangeArchive(db *gorm.DB) ExchangeArchive {
	return &gormExchangeArchive{db: db}
}

// Append 追加一条问答记录。
func (r *gormExchangeArchive) Append(ctx context.Context, record *model.ExchangeRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to archive exchange: %w", err)
	}
	return nil
}

// History 按时间顺序返回某个对话的全部归档问答。
func (r *gormExchangeArchive) History(ctx context.Context, conversationID string) ([]model.ExchangeRecord, error) {
	var records []model.ExchangeRecord
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange history: %w", err)
	}
	return records, nil
}
