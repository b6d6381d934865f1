package models

import (
	"time"
)

// UsageEventCK 平台用量事件（ClickHouse 模型，用于 SaaS 运营分析）
type UsageEventCK struct {
	Timestamp time.Time `json:"timestamp"`
	SchoolID  string    `json:"school_id"`
	UserID    uint32    `json:"user_id"`
	EventType string    `json:"event_type"` // login, message_sent, backup_created, restore_done
	Detail    string    `json:"detail"`
}

// UsageStat 按学校聚合的用量统计
type UsageStat struct {
	SchoolID string `json:"school_id"`
	Count    uint64 `json:"count"`
}
