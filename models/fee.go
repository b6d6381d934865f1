package models

import (
	"time"
)

// FeeStructure 收费项目（按班级/学期设置）
type FeeStructure struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	SchoolID  string     `json:"school_id" gorm:"type:varchar(36);index;not null"`
	Name      string     `json:"name" gorm:"type:varchar(255);not null"` // 如 "2026春季学费"
	ClassID   *uint      `json:"class_id,omitempty" gorm:"index"`        // 为空表示全校通用
	Term      string     `json:"term" gorm:"type:varchar(50)"`           // 学期标识
	Amount    int64      `json:"amount" gorm:"not null"`                 // 金额（分）
	DueDate   *time.Time `json:"due_date,omitempty"`                     // 缴费截止日期
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FeePayment 缴费记录
type FeePayment struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	SchoolID       string    `json:"school_id" gorm:"type:varchar(36);index;not null"`
	StudentID      uint      `json:"student_id" gorm:"index;not null"`
	FeeStructureID uint      `json:"fee_structure_id" gorm:"index;not null"`
	Amount         int64     `json:"amount" gorm:"not null"`                          // 实缴金额（分）
	Method         string    `json:"method" gorm:"type:varchar(20);default:'cash'"`   // cash, bank, wechat, alipay
	Reference      string    `json:"reference" gorm:"type:varchar(100)"`              // 交易流水号
	Status         string    `json:"status" gorm:"type:varchar(20);default:'paid'"`   // paid, refunded
	PaidAt         time.Time `json:"paid_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FeeSummary 缴费汇总（财务看板）
type FeeSummary struct {
	TotalBilled    int64 `json:"total_billed"`    // 应收合计
	TotalCollected int64 `json:"total_collected"` // 实收合计
	PaymentCount   int64 `json:"payment_count"`   // 缴费笔数
}
