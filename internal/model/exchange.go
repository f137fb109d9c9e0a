package model

import "time"

// ExchangeRecord 代表归档到 MySQL 的一问一答记录。
// 仅在生成成功后写入，属可选的审计留痕，不参与会话状态。
type ExchangeRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"size:36;index;not null" json:"conversationId"`
	Question       string    `gorm:"type:text;not null" json:"question"`
	Answer         string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ExchangeRecord) TableName() string {
	return "exchanges"
}
