package models

import (
	"time"
)

// Message 站内消息（教师/管理员 ↔ 家长端）
type Message struct {
	ID          uint       `json:"id" gorm:"primarykey"`
	SchoolID    string     `json:"school_id" gorm:"type:varchar(36);index;not null"`
	SenderID    uint       `json:"sender_id" gorm:"index;not null"`
	RecipientID uint       `json:"recipient_id" gorm:"index"` // 0 表示全校公告
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Content     string     `json:"content" gorm:"type:text"`
	ReadAt      *time.Time `json:"read_at,omitempty"` // 为空表示未读
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NotificationChannel 通知渠道（Webhook）
type NotificationChannel struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	SchoolID   string    `json:"school_id" gorm:"type:varchar(36);index"` // 为空表示平台全局渠道（备份告警等）
	Name       string    `json:"name" gorm:"not null"`                    // 渠道名称
	Type       string    `json:"type" gorm:"not null"`                    // wechat, dingtalk, feishu, slack
	WebhookURL string    `json:"webhook_url" gorm:"not null"`             // Webhook URL
	Secret     string    `json:"secret"`                                  // 签名密钥（钉钉、飞书需要）
	Events     string    `json:"events"`                                  // JSON数组，订阅的事件类型
	Enabled    bool      `json:"enabled" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NotificationLog 通知发送日志
type NotificationLog struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	ChannelID uint      `json:"channel_id"`
	EventType string    `json:"event_type"` // backup_success, backup_failed, restore_done 等
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Status    string    `json:"status"` // success, failed
	Error     string    `json:"error"`
	SentAt    time.Time `json:"sent_at"`
	CreatedAt time.Time `json:"created_at"`
}
