package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"school-manager/config"
	"school-manager/models"
	"school-manager/tenant"
)

// backupDocument 备份文档的逻辑结构
type backupDocument struct {
	Version   string                     `json:"version"`
	Timestamp string                     `json:"timestamp"`
	Tables    map[string]json.RawMessage `json:"tables"`
}

// RestoreService 备份恢复服务
// 解密失败立即中止（GCM 认证失败不会泄露半解密数据）；
// 单条记录写入失败只跳过并记录日志，不中止整个恢复 —— 灾备场景下
// 部分恢复远好于零恢复，代价是恢复不具备事务原子性
type RestoreService struct {
	db       *gorm.DB
	config   *config.Config
	s3       *S3Service
	notifier *NotificationService
}

func NewRestoreService(db *gorm.DB, s3 *S3Service) *RestoreService {
	return &RestoreService{
		db:       db,
		config:   config.GetConfig(),
		s3:       s3,
		notifier: NewNotificationService(db),
	}
}

// RestoreBackup 从指定备份恢复全量数据，返回成功写入的记录数
// 逐条按主键 upsert，幂等：同一备份重复恢复得到相同的最终状态
func (s *RestoreService) RestoreBackup(ctx context.Context, backupID string) (int64, error) {
	var record models.Backup
	if err := s.db.WithContext(ctx).First(&record, "id = ?", backupID).Error; err != nil {
		return 0, fmt.Errorf("备份不存在: %w", err)
	}
	if record.Status != "success" {
		return 0, fmt.Errorf("不能从失败的备份恢复")
	}

	data, err := s.readArtifact(ctx, &record)
	if err != nil {
		return 0, err
	}

	plaintext, err := s.decryptArtifact(data)
	if err != nil {
		s.notifier.SendNotification("", "restore_failed", "备份恢复失败",
			fmt.Sprintf("备份 %s 解密失败：%v", record.FileName, err))
		return 0, err
	}

	// 校验和覆盖导出明文，在写入任何记录前先核对
	if record.Checksum != "" {
		sum := sha256.Sum256(plaintext)
		if hex.EncodeToString(sum[:]) != record.Checksum {
			return 0, fmt.Errorf("备份校验和不匹配，文件可能已损坏")
		}
	}

	var doc backupDocument
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return 0, fmt.Errorf("Invalid backup format")
	}
	if doc.Version == "" || doc.Timestamp == "" || doc.Tables == nil {
		return 0, fmt.Errorf("Invalid backup format")
	}

	restored := s.restoreTables(ctx, &doc)

	s.notifier.SendNotification("", "restore_done", "备份恢复完成",
		fmt.Sprintf("备份 %s 恢复完成，共写入 %d 条记录", record.FileName, restored))

	log.Printf("✅ 恢复完成: %s，共写入 %d 条记录", record.FileName, restored)
	return restored, nil
}

// readArtifact 读取备份文件：优先本地，本地缺失时回退S3
func (s *RestoreService) readArtifact(ctx context.Context, record *models.Backup) ([]byte, error) {
	if record.FilePath != "" {
		if data, err := os.ReadFile(record.FilePath); err == nil {
			return data, nil
		}
	}
	if record.S3Key != "" && s.s3 != nil {
		data, err := s.s3.DownloadBackup(ctx, record.S3Key)
		if err != nil {
			return nil, fmt.Errorf("从S3下载备份失败: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("备份文件不可用")
}

// decryptArtifact 按固定偏移切出 IV / AuthTag / 密文并解密解压
// 密钥错误或密文被篡改时 GCM 认证失败，恢复中止，绝不产生部分明文
func (s *RestoreService) decryptArtifact(data []byte) ([]byte, error) {
	if len(data) < backupIVSize+backupTagSize {
		return nil, fmt.Errorf("备份文件过小，格式不正确")
	}

	secret := s.config.BackupEncryptionKey
	key, err := hex.DecodeString(secret)
	if err != nil || len(key) != backupKeySize {
		return nil, fmt.Errorf("BACKUP_ENCRYPTION_KEY 必须是64位十六进制字符串")
	}

	iv := data[:backupIVSize]
	authTag := data[backupIVSize : backupIVSize+backupTagSize]
	ciphertext := data[backupIVSize+backupTagSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("初始化解密器失败: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, backupIVSize)
	if err != nil {
		return nil, fmt.Errorf("初始化GCM失败: %w", err)
	}

	// GCM 的 Open 期望 密文||标签
	sealed := make([]byte, 0, len(ciphertext)+len(authTag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)

	compressed, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("备份解密失败（密钥错误或文件被篡改）: %w", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("解压失败: %w", err)
	}
	defer gz.Close()

	plaintext, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("解压失败: %w", err)
	}
	return plaintext, nil
}

// restoreTables 按固定依赖顺序逐表恢复，返回成功写入的记录总数
func (s *RestoreService) restoreTables(ctx context.Context, doc *backupDocument) int64 {
	// 恢复要写回所有租户的数据，使用系统上下文
	sysCtx := tenant.WithSystem(ctx)

	var restored int64
	for _, table := range backupTables {
		raw, ok := doc.Tables[table]
		if !ok {
			continue
		}

		var records []map[string]interface{}
		if err := json.Unmarshal(raw, &records); err != nil {
			log.Printf("表 %s 的数据无法解析，跳过: %v", table, err)
			continue
		}

		for _, rec := range records {
			if err := s.upsertRecord(sysCtx, table, rec); err != nil {
				// 单条失败不中止整体恢复
				log.Printf("表 %s 记录恢复失败（已跳过）: %v", table, err)
				continue
			}
			restored++
		}
	}
	return restored
}

// upsertRecord 按主键 upsert 单条记录（存在则更新，不存在则插入）
func (s *RestoreService) upsertRecord(ctx context.Context, table string, rec map[string]interface{}) error {
	assignments := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		if k == "id" {
			continue
		}
		assignments[k] = v
	}

	return s.db.WithContext(ctx).Table(table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(rec).Error
}

// LastRestorableBackup 最近一个可用于恢复的备份
func (s *RestoreService) LastRestorableBackup(ctx context.Context) (*models.Backup, error) {
	var b models.Backup
	err := s.db.WithContext(ctx).
		Where("status = ?", "success").
		Order("created_at DESC").First(&b).Error
	if err != nil {
		return nil, err
	}
	// 文件至少要在本地或S3其中一处
	if b.FilePath == "" && b.S3Key == "" {
		return nil, fmt.Errorf("备份 %s 没有可用文件", b.ID)
	}
	return &b, nil
}
