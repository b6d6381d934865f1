package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// School 学校（租户）表
// 平台内所有业务数据都通过 school_id 归属到某一所学校
type School struct {
	ID            string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name          string     `json:"name" gorm:"type:varchar(255);not null"`          // 学校名称
	Code          string     `json:"code" gorm:"type:varchar(50);uniqueIndex"`        // 学校代码（登录/对接用）
	Address       string     `json:"address" gorm:"type:varchar(500)"`                // 地址
	Phone         string     `json:"phone" gorm:"type:varchar(50)"`                   // 联系电话
	Email         string     `json:"email" gorm:"type:varchar(255)"`                  // 联系邮箱
	Plan          string     `json:"plan" gorm:"type:varchar(20);default:'free'"`     // 订阅套餐：free, standard, premium
	BillingStatus string     `json:"billing_status" gorm:"type:varchar(20);default:'trial'"` // 计费状态：trial, active, overdue
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`                       // 套餐到期时间
	Active        bool       `json:"active" gorm:"default:true"`                      // 是否启用
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s *School) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// SchoolStats 平台侧的学校运营统计（超级管理员看板）
type SchoolStats struct {
	TotalSchools   int64            `json:"total_schools"`
	ActiveSchools  int64            `json:"active_schools"`
	TotalStudents  int64            `json:"total_students"`
	TotalUsers     int64            `json:"total_users"`
	PlanBreakdown  []PlanStat       `json:"plan_breakdown"`
	TopSchools     []SchoolSizeStat `json:"top_schools"`
}

type PlanStat struct {
	Plan  string `json:"plan"`
	Count int64  `json:"count"`
}

type SchoolSizeStat struct {
	SchoolID     string `json:"school_id"`
	SchoolName   string `json:"school_name"`
	StudentCount int64  `json:"student_count"`
}
