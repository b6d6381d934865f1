package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	SchoolID  string         `json:"school_id" gorm:"type:varchar(36);index;uniqueIndex:idx_users_school_username"` // 所属学校，超级管理员为空
	Username  string         `json:"username" gorm:"not null;uniqueIndex:idx_users_school_username"`
	Password  string         `json:"-" gorm:"not null"` // 哈希后的密码
	Email     string         `json:"email"`
	FullName  string         `json:"full_name"`
	Role      string         `json:"role" gorm:"default:teacher"` // superadmin, admin, teacher, accountant
	IsActive  bool           `json:"is_active" gorm:"default:true"`
	LastLogin time.Time      `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
