package models

import (
	"time"
)

// Exam 考试
type Exam struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	SchoolID  string     `json:"school_id" gorm:"type:varchar(36);index;not null"`
	Name      string     `json:"name" gorm:"type:varchar(255);not null"` // 如 "期中考试"
	Subject   string     `json:"subject" gorm:"type:varchar(100)"`       // 科目
	ClassID   *uint      `json:"class_id,omitempty" gorm:"index"`
	MaxScore  int        `json:"max_score" gorm:"default:100"` // 满分
	HeldAt    *time.Time `json:"held_at,omitempty"`            // 考试时间
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ExamResult 考试成绩
type ExamResult struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	SchoolID  string    `json:"school_id" gorm:"type:varchar(36);index;not null"`
	ExamID    uint      `json:"exam_id" gorm:"index;not null"`
	StudentID uint      `json:"student_id" gorm:"index;not null"`
	Score     float64   `json:"score"`
	Grade     string    `json:"grade" gorm:"type:varchar(5)"` // A/B/C/D/F，按得分率折算
	Remark    string    `json:"remark" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
