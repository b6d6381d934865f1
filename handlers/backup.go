package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"school-manager/models"
	"school-manager/services"
	"school-manager/tenant"
)

type BackupHandler struct {
	db             *gorm.DB
	backupService  *services.BackupService
	restoreService *services.RestoreService
	s3Service      *services.S3Service
}

func NewBackupHandler(db *gorm.DB, backup *services.BackupService, restore *services.RestoreService, s3 *services.S3Service) *BackupHandler {
	return &BackupHandler{
		db:             db,
		backupService:  backup,
		restoreService: restore,
		s3Service:      s3,
	}
}

// CreateBackup 手动触发全量备份
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	ctx := tenant.WithSystem(c.Request.Context())

	record, err := h.backupService.CreateBackup(ctx, "manual", false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "备份失败",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "备份完成",
		"data":    record,
	})
}

// GetBackups 获取备份历史
func (h *BackupHandler) GetBackups(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.Model(&models.Backup{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if backupType := c.Query("type"); backupType != "" {
		query = query.Where("type = ?", backupType)
	}

	var total int64
	query.Count(&total)

	var backups []models.Backup
	if err := query.Order("started_at DESC").Limit(pageSize).Offset((page - 1) * pageSize).Find(&backups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询备份历史失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"list":      backups,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// GetBackup 获取备份详情
func (h *BackupHandler) GetBackup(c *gin.Context) {
	var backup models.Backup
	if err := h.db.Where("id = ?", c.Param("id")).First(&backup).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "备份记录不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    backup,
	})
}

// DeleteBackup 删除备份及其产物文件
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	ctx := tenant.WithSystem(c.Request.Context())

	if err := h.backupService.DeleteBackup(ctx, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除备份失败",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}

// RestoreBackup 从指定备份恢复全库数据
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	var req models.BackupRestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	log.Printf("⚠️ 开始恢复备份: %s (操作人: %s)", req.BackupID, c.GetString("username"))

	ctx := tenant.WithSystem(c.Request.Context())
	restored, err := h.restoreService.RestoreBackup(ctx, req.BackupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "恢复失败",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "恢复完成",
		"data": gin.H{
			"restored_records": restored,
		},
	})
}

// GetLatestRestorable 最近一个可用于恢复的备份
func (h *BackupHandler) GetLatestRestorable(c *gin.Context) {
	ctx := tenant.WithSystem(c.Request.Context())

	backup, err := h.restoreService.LastRestorableBackup(ctx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "没有可用于恢复的备份",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    backup,
	})
}

// GetBackupStats 备份统计
func (h *BackupHandler) GetBackupStats(c *gin.Context) {
	ctx := tenant.WithSystem(c.Request.Context())

	stats, err := h.backupService.GetBackupStats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询备份统计失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// DownloadBackup 下载备份产物
// 本地文件直接下发，仅存对象存储的备份返回预签名下载链接
func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	var backup models.Backup
	if err := h.db.Where("id = ?", c.Param("id")).First(&backup).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "备份记录不存在",
		})
		return
	}

	if backup.Status != "success" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "备份未成功完成，无法下载",
		})
		return
	}

	if backup.FilePath != "" {
		if _, err := os.Stat(backup.FilePath); err == nil {
			c.FileAttachment(backup.FilePath, backup.FileName)
			return
		}
	}

	if h.s3Service != nil && backup.S3Key != "" {
		url, err := h.s3Service.GetPresignedURL(c.Request.Context(), backup.S3Key, 15*time.Minute)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "生成下载链接失败",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"download_url": url,
				"expires_in":   900,
			},
		})
		return
	}

	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"message": "备份文件不存在",
	})
}

// CleanupBackups 手动触发过期备份清理
func (h *BackupHandler) CleanupBackups(c *gin.Context) {
	ctx := tenant.WithSystem(c.Request.Context())
	h.backupService.CleanupExpiredBackups(ctx)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "清理完成",
	})
}

// TestS3Connection 测试对象存储连通性
func (h *BackupHandler) TestS3Connection(c *gin.Context) {
	if h.s3Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "对象存储未启用",
		})
		return
	}

	if err := h.s3Service.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "对象存储连接失败",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "对象存储连接正常",
		"data": gin.H{
			"bucket": h.s3Service.Bucket(),
		},
	})
}
