package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"school-manager/config"
	"school-manager/models"
	"school-manager/tenant"
)

const (
	backupVersion   = "1.0"
	exportBatchSize = 1000 // 每批导出的行数，限制峰值内存
	backupIVSize    = 16
	backupTagSize   = 16
	backupKeySize   = 32
)

// backupTables 备份表清单（固定顺序：父表在前，恢复时按同样顺序 upsert）
// 注意这是显式清单，与租户隔离清单相互独立
var backupTables = []string{
	"schools",
	"users",
	"classes",
	"students",
	"fee_structures",
	"fee_payments",
	"hostels",
	"hostel_allocations",
	"transport_routes",
	"transport_assignments",
	"exams",
	"exam_results",
	"messages",
	"calendar_events",
}

// BackupService 全量备份服务
// 导出时跨所有租户读取（系统上下文），逐表分批拉取、序列化后即丢弃，
// 数据流经：SHA-256 累加 → gzip 压缩 → AES-256-GCM 加密 → 落盘，
// 文件布局：IV(16B) || AuthTag(16B) || 密文
//
// 内存占用说明：GCM 单标签格式要求整条消息一次 Seal，压缩后的文档会
// 完整缓冲在内存里再加密；峰值内存是 O(压缩后大小) 而不是 O(批)，
// 逐批导出限制的是序列化阶段的行驻留
type BackupService struct {
	db        *gorm.DB
	config    *config.Config
	storage   *config.StorageConfig
	s3        *S3Service // 为空表示未启用远端存储
	notifier  *NotificationService
	batchSize int
}

func NewBackupService(db *gorm.DB, s3 *S3Service) *BackupService {
	return &BackupService{
		db:        db,
		config:    config.GetConfig(),
		storage:   config.LoadStorageConfig(),
		s3:        s3,
		notifier:  NewNotificationService(db),
		batchSize: exportBatchSize,
	}
}

// CreateBackup 创建全量备份
// backupType: manual / scheduled；notifyOnFailure 为真时失败会推送告警渠道
func (s *BackupService) CreateBackup(ctx context.Context, backupType string, notifyOnFailure bool) (*models.Backup, error) {
	key, err := s.encryptionKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.config.BackupDir, 0755); err != nil {
		return nil, fmt.Errorf("创建备份目录失败: %w", err)
	}

	// 文件名：backup-<时间戳（冒号替换为短横线）>-<随机hex>.enc
	randID := make([]byte, 8)
	if _, err := rand.Read(randID); err != nil {
		return nil, fmt.Errorf("生成备份标识失败: %w", err)
	}
	timestamp := strings.ReplaceAll(time.Now().UTC().Format(time.RFC3339), ":", "-")
	fileName := fmt.Sprintf("backup-%s-%s.enc", timestamp, hex.EncodeToString(randID))
	filePath := filepath.Join(s.config.BackupDir, fileName)

	record := &models.Backup{
		ID:        uuid.New().String(),
		FileName:  fileName,
		FilePath:  filePath,
		Location:  models.BackupLocationLocal,
		Type:      backupType,
		Status:    "running",
		StartedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("创建备份记录失败: %w", err)
	}

	checksum, size, err := s.writeArtifact(ctx, filePath, key)

	now := time.Now()
	record.CompletedAt = &now

	if err != nil {
		// 清理写了一半的文件
		os.Remove(filePath)

		record.Status = "failed"
		record.Error = err.Error()
		if saveErr := s.db.WithContext(ctx).Save(record).Error; saveErr != nil {
			log.Printf("❌ 备份 %s 失败状态落库失败，记录会滞留在 running: %v", record.ID, saveErr)
		}

		if notifyOnFailure {
			s.notifier.SendNotification("", "backup_failed", "数据备份失败",
				fmt.Sprintf("备份 %s 执行失败：%v", fileName, err))
		}
		return record, err
	}

	record.Checksum = checksum
	record.Size = size
	record.Status = "success"

	// 上传到S3（尽力而为：失败只降级存储位置，不影响备份本身）
	if s.s3 != nil {
		s3Key := s.s3.BackupKey(fileName)
		if err := s.uploadArtifact(ctx, filePath, s3Key); err != nil {
			log.Printf("⚠️ 备份上传S3失败，保留本地副本: %v", err)
		} else {
			record.Location = models.BackupLocationBoth
			record.S3Bucket = s.s3.Bucket()
			record.S3Key = s3Key
		}
	}

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return record, fmt.Errorf("更新备份记录失败: %w", err)
	}

	log.Printf("✅ 备份完成: %s (%d bytes, checksum %s)", fileName, size, checksum[:12])
	return record, nil
}

// writeArtifact 执行导出并落盘，返回明文校验和与文件大小
func (s *BackupService) writeArtifact(ctx context.Context, filePath string, key []byte) (string, int64, error) {
	iv := make([]byte, backupIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", 0, fmt.Errorf("生成IV失败: %w", err)
	}

	// 校验和覆盖压缩加密前的导出明文
	hasher := sha256.New()

	// GCM 需要完整消息才能出认证标签，这里缓冲的是压缩后的数据，
	// 行数据本身仍按批拉取、写入压缩器后即释放
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)

	if err := s.writeDocument(ctx, io.MultiWriter(hasher, gz)); err != nil {
		return "", 0, err
	}
	if err := gz.Close(); err != nil {
		return "", 0, fmt.Errorf("压缩失败: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", 0, fmt.Errorf("初始化加密器失败: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, backupIVSize)
	if err != nil {
		return "", 0, fmt.Errorf("初始化GCM失败: %w", err)
	}

	sealed := gcm.Seal(nil, iv, compressed.Bytes(), nil)
	authTag := sealed[len(sealed)-backupTagSize:]
	ciphertext := sealed[:len(sealed)-backupTagSize]

	f, err := os.Create(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("创建备份文件失败: %w", err)
	}
	defer f.Close()

	// 文件布局：IV || AuthTag || 密文
	for _, chunk := range [][]byte{iv, authTag, ciphertext} {
		if _, err := f.Write(chunk); err != nil {
			return "", 0, fmt.Errorf("写入备份文件失败: %w", err)
		}
	}

	size := int64(backupIVSize + backupTagSize + len(ciphertext))
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// writeDocument 以流式方式生成备份JSON文档
// {"version":"1.0","timestamp":"...","tables":{"schools":[...],...}}
func (s *BackupService) writeDocument(ctx context.Context, w io.Writer) error {
	// 导出跨越所有租户，使用系统上下文绕过租户隔离
	sysCtx := tenant.WithSystem(ctx)

	if _, err := fmt.Fprintf(w, `{"version":%q,"timestamp":%q,"tables":{`,
		backupVersion, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	for i, table := range backupTables {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%q:[", table); err != nil {
			return err
		}

		if err := s.exportTable(sysCtx, w, table); err != nil {
			return fmt.Errorf("导出表 %s 失败: %w", table, err)
		}

		if _, err := io.WriteString(w, "]"); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "}}")
	return err
}

// exportTable 分批导出单表，每批行序列化写出后即丢弃，不整表驻留内存
func (s *BackupService) exportTable(ctx context.Context, w io.Writer, table string) error {
	first := true
	for offset := 0; ; offset += s.batchSize {
		var rows []map[string]interface{}
		if err := s.db.WithContext(ctx).Table(table).
			Order("id").Limit(s.batchSize).Offset(offset).
			Find(&rows).Error; err != nil {
			return err
		}

		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("序列化记录失败: %w", err)
			}
			if !first {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
			first = false
		}

		if len(rows) < s.batchSize {
			return nil
		}
	}
}

// uploadArtifact 把本地备份文件上传到S3
func (s *BackupService) uploadArtifact(ctx context.Context, filePath, s3Key string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("打开备份文件失败: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	return s.s3.UploadBackup(ctx, s3Key, f, stat.Size())
}

// encryptionKey 从配置解析加密密钥（64位hex = 32字节）
func (s *BackupService) encryptionKey() ([]byte, error) {
	secret := s.config.BackupEncryptionKey
	if secret == "" {
		return nil, fmt.Errorf("未配置 BACKUP_ENCRYPTION_KEY，无法创建加密备份")
	}
	key, err := hex.DecodeString(secret)
	if err != nil || len(key) != backupKeySize {
		return nil, fmt.Errorf("BACKUP_ENCRYPTION_KEY 必须是64位十六进制字符串")
	}
	return key, nil
}

// CleanupExpiredBackups 清理超过保留期的备份（本地文件 + S3对象 + 记录）
func (s *BackupService) CleanupExpiredBackups(ctx context.Context) {
	retention := s.config.BackupRetentionDays
	if retention <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retention)

	var expired []models.Backup
	s.db.WithContext(ctx).Where("created_at < ?", cutoff).Find(&expired)

	for _, b := range expired {
		if b.S3Key != "" && s.s3 != nil {
			if err := s.s3.DeleteBackup(ctx, b.S3Key); err != nil {
				log.Printf("删除S3备份 %s 失败: %v", b.S3Key, err)
			}
		}
		if b.FilePath != "" {
			os.Remove(b.FilePath)
		}
		s.db.WithContext(ctx).Delete(&b)
	}

	if len(expired) > 0 {
		log.Printf("已清理 %d 个过期备份", len(expired))
	}
}

// DeleteBackup 删除指定备份（文件 + S3 + 记录）
func (s *BackupService) DeleteBackup(ctx context.Context, backupID string) error {
	var b models.Backup
	if err := s.db.WithContext(ctx).First(&b, "id = ?", backupID).Error; err != nil {
		return fmt.Errorf("备份不存在: %w", err)
	}

	if b.S3Key != "" && s.s3 != nil {
		if err := s.s3.DeleteBackup(ctx, b.S3Key); err != nil {
			log.Printf("删除S3备份 %s 失败: %v", b.S3Key, err)
		}
	}
	if b.FilePath != "" {
		os.Remove(b.FilePath)
	}

	return s.db.WithContext(ctx).Delete(&b).Error
}

// GetBackupStats 备份统计信息
func (s *BackupService) GetBackupStats(ctx context.Context) (*models.BackupStats, error) {
	var stats models.BackupStats

	var total, successful, failed int64
	db := s.db.WithContext(ctx)
	db.Model(&models.Backup{}).Count(&total)
	db.Model(&models.Backup{}).Where("status = ?", "success").Count(&successful)
	db.Model(&models.Backup{}).Where("status = ?", "failed").Count(&failed)

	stats.TotalBackups = int(total)
	stats.SuccessfulBackups = int(successful)
	stats.FailedBackups = int(failed)

	if total > 0 {
		stats.SuccessRate = float64(successful) / float64(total) * 100
	}

	var totalSize int64
	db.Model(&models.Backup{}).Select("COALESCE(SUM(size), 0)").Row().Scan(&totalSize)
	stats.TotalSize = totalSize

	var last models.Backup
	if err := db.Where("status = ?", "success").Order("created_at DESC").First(&last).Error; err == nil {
		stats.LastBackupAt = &last.CreatedAt
	}

	return &stats, nil
}
