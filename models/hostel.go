package models

import (
	"time"
)

// Hostel 宿舍楼
type Hostel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	SchoolID  string    `json:"school_id" gorm:"type:varchar(36);index;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Type      string    `json:"type" gorm:"type:varchar(10);default:'mixed'"` // boys, girls, mixed
	Capacity  int       `json:"capacity"`                                     // 总床位数
	Warden    string    `json:"warden" gorm:"type:varchar(255)"`              // 宿管姓名
	Phone     string    `json:"phone" gorm:"type:varchar(50)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HostelAllocation 床位分配记录
type HostelAllocation struct {
	ID          uint       `json:"id" gorm:"primarykey"`
	SchoolID    string     `json:"school_id" gorm:"type:varchar(36);index;not null"`
	HostelID    uint       `json:"hostel_id" gorm:"index;not null"`
	StudentID   uint       `json:"student_id" gorm:"index;not null"`
	Room        string     `json:"room" gorm:"type:varchar(20)"` // 房间号
	Bed         string     `json:"bed" gorm:"type:varchar(10)"`  // 床位号
	AllocatedAt time.Time  `json:"allocated_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"` // 退宿时间，为空表示在住
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
