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
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"school-manager/database"
	"school-manager/models"
	"school-manager/tenant"
)

// 固定测试密钥（64位hex = 32字节）
const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestMain(m *testing.M) {
	// 配置是进程级单例，必须在首次读取前设置环境
	backupDir, err := os.MkdirTemp("", "backup-test-*")
	if err != nil {
		panic(err)
	}
	os.Setenv("BACKUP_ENCRYPTION_KEY", testEncryptionKey)
	os.Setenv("BACKUP_DIR", backupDir)
	os.Setenv("BACKUP_RETENTION_DAYS", "30")

	code := m.Run()
	os.RemoveAll(backupDir)
	os.Exit(code)
}

func setupBackupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "backup.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.School{},
		&models.User{},
		&models.Class{},
		&models.Student{},
		&models.FeeStructure{},
		&models.FeePayment{},
		&models.Hostel{},
		&models.HostelAllocation{},
		&models.TransportRoute{},
		&models.TransportAssignment{},
		&models.Exam{},
		&models.ExamResult{},
		&models.Message{},
		&models.CalendarEvent{},
		&models.NotificationChannel{},
		&models.NotificationLog{},
		&models.Backup{},
	))
	require.NoError(t, db.Use(tenant.NewScopePlugin(database.TenantTables...)))
	return db
}

func seedSchools(t *testing.T, db *gorm.DB) (string, string) {
	t.Helper()

	s1 := models.School{Name: "一中", Code: "no1"}
	s2 := models.School{Name: "二中", Code: "no2"}
	require.NoError(t, db.Create(&s1).Error)
	require.NoError(t, db.Create(&s2).Error)

	ctx1 := tenant.WithSchool(context.Background(), s1.ID)
	ctx2 := tenant.WithSchool(context.Background(), s2.ID)

	require.NoError(t, db.WithContext(ctx1).Create(&models.Student{Name: "张三", AdmissionNo: "A001"}).Error)
	require.NoError(t, db.WithContext(ctx1).Create(&models.Student{Name: "李四", AdmissionNo: "A002"}).Error)
	require.NoError(t, db.WithContext(ctx2).Create(&models.Student{Name: "王五", AdmissionNo: "B001"}).Error)

	require.NoError(t, db.WithContext(ctx1).Create(&models.FeeStructure{Name: "春季学费", Amount: 500000, Term: "2026春"}).Error)
	return s1.ID, s2.ID
}

func TestBackupArtifactFormat(t *testing.T) {
	db := setupBackupDB(t)
	seedSchools(t, db)

	svc := NewBackupService(db, nil)
	record, err := svc.CreateBackup(context.Background(), "manual", false)
	require.NoError(t, err)

	assert.Equal(t, "success", record.Status)
	assert.True(t, strings.HasPrefix(record.FileName, "backup-"))
	assert.True(t, strings.HasSuffix(record.FileName, ".enc"))
	assert.NotContains(t, record.FileName, ":")
	assert.Len(t, record.Checksum, 64)
	assert.NotNil(t, record.CompletedAt)

	data, err := os.ReadFile(record.FilePath)
	require.NoError(t, err)
	assert.EqualValues(t, record.Size, len(data))
	require.Greater(t, len(data), 32)

	// 文件布局：IV(16B) || AuthTag(16B) || 密文，手工解密验证
	plaintext := decryptTestArtifact(t, data)

	sum := sha256.Sum256(plaintext)
	assert.Equal(t, record.Checksum, hex.EncodeToString(sum[:]))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(plaintext, &doc))
	assert.Equal(t, "1.0", doc["version"])
	assert.NotEmpty(t, doc["timestamp"])

	tables, ok := doc["tables"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, tables, "schools")
	assert.Contains(t, tables, "students")
	assert.Len(t, tables["students"], 3)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	db := setupBackupDB(t)
	s1, _ := seedSchools(t, db)

	backupSvc := NewBackupService(db, nil)
	record, err := backupSvc.CreateBackup(context.Background(), "manual", false)
	require.NoError(t, err)

	// 备份之后破坏数据：改名 + 物理删除
	ctx1 := tenant.WithSchool(context.Background(), s1)
	require.NoError(t, db.WithContext(ctx1).Model(&models.Student{}).
		Where("admission_no = ?", "A001").Update("name", "改过的名字").Error)
	require.NoError(t, db.WithContext(ctx1).Unscoped().
		Where("admission_no = ?", "A002").Delete(&models.Student{}).Error)

	restoreSvc := NewRestoreService(db, nil)
	restored, err := restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Greater(t, restored, int64(0))

	var renamed models.Student
	require.NoError(t, db.WithContext(ctx1).Where("admission_no = ?", "A001").First(&renamed).Error)
	assert.Equal(t, "张三", renamed.Name)

	var count int64
	db.WithContext(ctx1).Model(&models.Student{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestRestoreIsIdempotent(t *testing.T) {
	db := setupBackupDB(t)
	seedSchools(t, db)

	backupSvc := NewBackupService(db, nil)
	record, err := backupSvc.CreateBackup(context.Background(), "manual", false)
	require.NoError(t, err)

	restoreSvc := NewRestoreService(db, nil)
	first, err := restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.NoError(t, err)
	second, err := restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	var count int64
	db.WithContext(tenant.WithSystem(context.Background())).Model(&models.Student{}).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestTamperedArtifactIsRejected(t *testing.T) {
	db := setupBackupDB(t)
	seedSchools(t, db)

	backupSvc := NewBackupService(db, nil)
	record, err := backupSvc.CreateBackup(context.Background(), "manual", false)
	require.NoError(t, err)

	// 翻转密文里的一个字节，GCM 认证必须失败
	data, err := os.ReadFile(record.FilePath)
	require.NoError(t, err)
	data[40] ^= 0xff
	require.NoError(t, os.WriteFile(record.FilePath, data, 0644))

	restoreSvc := NewRestoreService(db, nil)
	_, err = restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解密失败")
}

func TestRestoreRejectsFailedBackup(t *testing.T) {
	db := setupBackupDB(t)

	record := models.Backup{
		ID:       uuid.New().String(),
		FileName: "backup-x.enc",
		Status:   "failed",
	}
	require.NoError(t, db.Create(&record).Error)

	restoreSvc := NewRestoreService(db, nil)
	_, err := restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "失败的备份")
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	db := setupBackupDB(t)

	doc := `{"version":"1.0","timestamp":"2026-01-01T00:00:00Z","tables":{"students":[]}}`
	record := writeTestArtifact(t, db, []byte(doc))

	// 篡改记录里的校验和
	require.NoError(t, db.Model(&models.Backup{}).Where("id = ?", record.ID).
		Update("checksum", strings.Repeat("0", 64)).Error)

	restoreSvc := NewRestoreService(db, nil)
	_, err := restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "校验和")
}

func TestRestoreRejectsInvalidFormat(t *testing.T) {
	db := setupBackupDB(t)

	record := writeTestArtifact(t, db, []byte(`{"whatever":1}`))

	restoreSvc := NewRestoreService(db, nil)
	_, err := restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid backup format")
}

func TestRestoreSkipsMalformedRecords(t *testing.T) {
	db := setupBackupDB(t)

	// 第二条记录引用不存在的列，单条失败不中止整体恢复
	doc := `{"version":"1.0","timestamp":"2026-01-01T00:00:00Z","tables":{"schools":[` +
		`{"id":"sch-1","name":"一中","code":"no1"},` +
		`{"id":"sch-2","no_such_column":"x"},` +
		`{"id":"sch-3","name":"三中","code":"no3"}]}}`
	record := writeTestArtifact(t, db, []byte(doc))

	restoreSvc := NewRestoreService(db, nil)
	restored, err := restoreSvc.RestoreBackup(context.Background(), record.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, restored)

	var count int64
	db.Model(&models.School{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestExportIsBatched(t *testing.T) {
	db := setupBackupDB(t)

	school := models.School{Name: "一中", Code: "no1"}
	require.NoError(t, db.Create(&school).Error)
	ctx := tenant.WithSchool(context.Background(), school.ID)
	for i := 0; i < 10; i++ {
		require.NoError(t, db.WithContext(ctx).Create(&models.Student{
			Name:        fmt.Sprintf("学生%d", i),
			AdmissionNo: fmt.Sprintf("A%03d", i),
		}).Error)
	}

	// 统计 students 表的拉取批次：10 行、每批 3 行应该正好 4 次 SELECT
	var studentFetches int
	require.NoError(t, db.Callback().Query().Before("gorm:query").
		Register("test:count_student_fetches", func(tx *gorm.DB) {
			if tx.Statement.Table == "students" {
				studentFetches++
			}
		}))

	svc := NewBackupService(db, nil)
	svc.batchSize = 3 // 强制多批导出

	record, err := svc.CreateBackup(context.Background(), "manual", false)
	require.NoError(t, err)
	assert.Equal(t, 4, studentFetches)

	data, err := os.ReadFile(record.FilePath)
	require.NoError(t, err)
	plaintext := decryptTestArtifact(t, data)

	var doc struct {
		Tables map[string]json.RawMessage `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(plaintext, &doc))

	var students []map[string]interface{}
	require.NoError(t, json.Unmarshal(doc.Tables["students"], &students))
	assert.Len(t, students, 10)
}

func TestFailedStatusPersistErrorIsLogged(t *testing.T) {
	db := setupBackupDB(t)

	// 导出失败、失败状态落库也失败：错误不能被静默吞掉
	require.NoError(t, db.Callback().Query().Before("gorm:query").
		Register("test:fail_export", func(tx *gorm.DB) {
			if tx.Statement.Table == "schools" {
				_ = tx.AddError(assert.AnError)
			}
		}))
	require.NoError(t, db.Callback().Update().Before("gorm:update").
		Register("test:fail_status_save", func(tx *gorm.DB) {
			if tx.Statement.Table == "backups" {
				_ = tx.AddError(assert.AnError)
			}
		}))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	svc := NewBackupService(db, nil)
	_, err := svc.CreateBackup(context.Background(), "manual", false)
	require.Error(t, err)

	assert.Contains(t, buf.String(), "失败状态落库失败")
}

func TestDeleteBackupRemovesFile(t *testing.T) {
	db := setupBackupDB(t)
	seedSchools(t, db)

	svc := NewBackupService(db, nil)
	record, err := svc.CreateBackup(context.Background(), "manual", false)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBackup(context.Background(), record.ID))

	_, err = os.Stat(record.FilePath)
	assert.True(t, os.IsNotExist(err))

	var count int64
	db.Model(&models.Backup{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestBackupStats(t *testing.T) {
	db := setupBackupDB(t)
	seedSchools(t, db)

	svc := NewBackupService(db, nil)
	_, err := svc.CreateBackup(context.Background(), "manual", false)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Backup{
		ID: uuid.New().String(), FileName: "x.enc", Status: "failed", StartedAt: time.Now(),
	}).Error)

	stats, err := svc.GetBackupStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBackups)
	assert.Equal(t, 1, stats.SuccessfulBackups)
	assert.Equal(t, 1, stats.FailedBackups)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.01)
	assert.NotNil(t, stats.LastBackupAt)
}

// decryptTestArtifact 按文件布局手工解密：IV || AuthTag || 密文
func decryptTestArtifact(t *testing.T, data []byte) []byte {
	t.Helper()

	key, err := hex.DecodeString(testEncryptionKey)
	require.NoError(t, err)

	iv := data[:backupIVSize]
	authTag := data[backupIVSize : backupIVSize+backupTagSize]
	ciphertext := data[backupIVSize+backupTagSize:]

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCMWithNonceSize(block, backupIVSize)
	require.NoError(t, err)

	compressed, err := gcm.Open(nil, iv, append(append([]byte{}, ciphertext...), authTag...), nil)
	require.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer gz.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(gz)
	require.NoError(t, err)
	return out.Bytes()
}

// writeTestArtifact 用指定明文手工构造备份文件和对应的成功记录
func writeTestArtifact(t *testing.T, db *gorm.DB, plaintext []byte) *models.Backup {
	t.Helper()

	key, err := hex.DecodeString(testEncryptionKey)
	require.NoError(t, err)

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	_, err = gz.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	iv := make([]byte, backupIVSize)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCMWithNonceSize(block, backupIVSize)
	require.NoError(t, err)

	sealed := gcm.Seal(nil, iv, compressed.Bytes(), nil)
	authTag := sealed[len(sealed)-backupTagSize:]
	ciphertext := sealed[:len(sealed)-backupTagSize]

	filePath := filepath.Join(t.TempDir(), "crafted.enc")
	var buf bytes.Buffer
	buf.Write(iv)
	buf.Write(authTag)
	buf.Write(ciphertext)
	require.NoError(t, os.WriteFile(filePath, buf.Bytes(), 0644))

	sum := sha256.Sum256(plaintext)
	record := &models.Backup{
		ID:        uuid.New().String(),
		FileName:  filepath.Base(filePath),
		FilePath:  filePath,
		Checksum:  hex.EncodeToString(sum[:]),
		Status:    "success",
		StartedAt: time.Now(),
	}
	require.NoError(t, db.Create(record).Error)
	return record
}
