package models

import (
	"time"
)

// 备份文件存放位置
const (
	BackupLocationLocal = "LOCAL" // 仅本地
	BackupLocationCloud = "CLOUD" // 仅对象存储
	BackupLocationBoth  = "BOTH"  // 本地 + 对象存储
)

// Backup 全量备份产物元数据
// 备份文件一经生成不再修改，文件布局：IV(16B) || AuthTag(16B) || 密文
type Backup struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	FileName    string     `json:"file_name" gorm:"type:varchar(255);not null"`
	FilePath    string     `json:"file_path" gorm:"type:varchar(500)"` // 本地文件路径
	Size        int64      `json:"size"`
	Checksum    string     `json:"checksum" gorm:"type:varchar(64)"` // 导出明文的 SHA-256（压缩加密前）
	Location    string     `json:"location" gorm:"type:varchar(10);default:'LOCAL'"`
	Encrypted   bool       `json:"encrypted" gorm:"default:true"`
	Compressed  bool       `json:"compressed" gorm:"default:true"`
	Type        string     `json:"type" gorm:"type:varchar(20);default:'manual'"` // manual, scheduled
	Status      string     `json:"status" gorm:"type:varchar(20)"`                // running, success, failed
	S3Bucket    string     `json:"s3_bucket,omitempty" gorm:"type:varchar(255)"`
	S3Key       string     `json:"s3_key,omitempty" gorm:"type:varchar(500)"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BackupRestoreRequest 恢复请求
type BackupRestoreRequest struct {
	BackupID string `json:"backup_id" binding:"required"`
}

// BackupStats 备份统计
type BackupStats struct {
	TotalBackups      int        `json:"total_backups"`
	SuccessfulBackups int        `json:"successful_backups"`
	FailedBackups     int        `json:"failed_backups"`
	TotalSize         int64      `json:"total_size"`
	LastBackupAt      *time.Time `json:"last_backup_at"`
	SuccessRate       float64    `json:"success_rate"`
}
