package config

import (
	"log"
	"os"
)

type Config struct {
	ServerPort string
	JWTSecret  string
	DBPath     string

	// 备份相关
	BackupDir           string // 本地备份目录
	BackupEncryptionKey string // 64位hex（32字节AES密钥），为空则无法创建备份
	BackupSchedule      string // cron 表达式，为空则不定时备份
	BackupRetentionDays int    // 本地备份保留天数
}

var config *Config

// GetConfig 获取配置
func GetConfig() *Config {
	if config == nil {
		config = &Config{
			ServerPort: getEnv("SERVER_PORT", "3001"),
			JWTSecret:  getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			// 使用绝对路径，方便 Docker 挂载
			DBPath:              getEnv("DB_PATH", "/app/data/school.db"),
			BackupDir:           getEnv("BACKUP_DIR", "/app/data/backups"),
			BackupEncryptionKey: os.Getenv("BACKUP_ENCRYPTION_KEY"),
			BackupSchedule:      os.Getenv("BACKUP_SCHEDULE"),
			BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		}

		// 打印配置信息（生产环境可以去掉敏感信息）
		log.Printf("Config loaded - ServerPort: %s, DBPath: %s, BackupDir: %s",
			config.ServerPort, config.DBPath, config.BackupDir)
	}
	return config
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
