package models

import (
	"time"

	"gorm.io/gorm"
)

// Class 班级
type Class struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	SchoolID  string    `json:"school_id" gorm:"type:varchar(36);index;not null"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"` // 如 "一年级"
	Section   string    `json:"section" gorm:"type:varchar(20)"`        // 如 "A班"
	TeacherID *uint     `json:"teacher_id,omitempty"`                   // 班主任（用户ID）
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Class) TableName() string {
	return "classes"
}

// Student 学生
type Student struct {
	ID            uint           `json:"id" gorm:"primarykey"`
	SchoolID      string         `json:"school_id" gorm:"type:varchar(36);index;not null"`
	AdmissionNo   string         `json:"admission_no" gorm:"type:varchar(50);index"` // 学号
	Name          string         `json:"name" gorm:"type:varchar(255);not null"`
	Gender        string         `json:"gender" gorm:"type:varchar(10)"`
	BirthDate     *time.Time     `json:"birth_date,omitempty"`
	ClassID       *uint          `json:"class_id,omitempty" gorm:"index"`
	GuardianName  string         `json:"guardian_name" gorm:"type:varchar(255)"` // 监护人姓名
	GuardianPhone string         `json:"guardian_phone" gorm:"type:varchar(50)"` // 监护人电话
	Address       string         `json:"address" gorm:"type:varchar(500)"`
	Status        string         `json:"status" gorm:"type:varchar(20);default:'enrolled'"` // enrolled, suspended, graduated, left
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
