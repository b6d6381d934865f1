package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func GetClickHouseConfig() *ClickHouseConfig {
	analyticsStorage := strings.ToLower(getEnv("ANALYTICS_STORAGE_TYPE", "none"))
	clickhouseEnabled := analyticsStorage == "clickhouse"
	return &ClickHouseConfig{
		Enabled:  clickhouseEnabled,
		Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     getEnvAsInt("CLICKHOUSE_PORT", 9000),
		Database: getEnv("CLICKHOUSE_DB", "school_usage"),
		Username: getEnv("CLICKHOUSE_USER", "school"),
		Password: getEnv("CLICKHOUSE_PASSWORD", "school"),
	}
}

// IsClickHouseEnabled 是否启用 ClickHouse 用量分析
func IsClickHouseEnabled() bool {
	return GetClickHouseConfig().Enabled
}

// getEnvAsInt 获取环境变量并转换为整数
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}
