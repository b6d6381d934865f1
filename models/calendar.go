package models

import (
	"time"
)

// CalendarEvent 校历事件
type CalendarEvent struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	SchoolID    string    `json:"school_id" gorm:"type:varchar(36);index;not null"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Audience    string    `json:"audience" gorm:"type:varchar(20);default:'all'"` // all, teachers, parents
	StartsAt    time.Time `json:"starts_at" gorm:"index;not null"`
	EndsAt      time.Time `json:"ends_at"`
	AllDay      bool      `json:"all_day" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
