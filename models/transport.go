package models

import (
	"time"
)

// TransportRoute 校车线路
type TransportRoute struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	SchoolID    string    `json:"school_id" gorm:"type:varchar(36);index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"` // 线路名称
	VehicleNo   string    `json:"vehicle_no" gorm:"type:varchar(50)"`     // 车牌号
	DriverName  string    `json:"driver_name" gorm:"type:varchar(255)"`
	DriverPhone string    `json:"driver_phone" gorm:"type:varchar(50)"`
	Stops       string    `json:"stops" gorm:"type:text"` // 站点列表，JSON数组
	Fare        int64     `json:"fare"`                   // 月费（分）
	Enabled     bool      `json:"enabled" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TransportAssignment 学生乘车分配
type TransportAssignment struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	SchoolID   string    `json:"school_id" gorm:"type:varchar(36);index;not null"`
	RouteID    uint      `json:"route_id" gorm:"index;not null"`
	StudentID  uint      `json:"student_id" gorm:"index;not null"`
	Stop       string    `json:"stop" gorm:"type:varchar(255)"` // 上下车站点
	AssignedAt time.Time `json:"assigned_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
