package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"school-manager/config"
)

var CHConn driver.Conn

// InitClickHouse 初始化 ClickHouse 连接（用量分析，可选）
func InitClickHouse() {
	cfg := config.GetClickHouseConfig()
	if !cfg.Enabled {
		log.Println("ClickHouse 用量分析未启用，跳过初始化")
		return
	}

	log.Printf("🔗 正在连接 ClickHouse: %s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		log.Fatal("❌ 连接 ClickHouse 失败:", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		log.Fatal("❌ Ping ClickHouse 失败:", err)
	}

	if err := createUsageTableIfNotExists(ctx, conn); err != nil {
		conn.Close()
		log.Fatal("❌ 创建表失败:", err)
	}

	CHConn = conn
	log.Printf("✅ ClickHouse 初始化完成 - 数据库: %s", cfg.Database)
}

// createUsageTableIfNotExists 创建用量事件表
func createUsageTableIfNotExists(ctx context.Context, conn driver.Conn) error {
	createTableSQL := `
    CREATE TABLE IF NOT EXISTS school_usage_log (
        timestamp DateTime64(3) COMMENT '事件时间（毫秒精度）',
        date Date DEFAULT toDate(timestamp) COMMENT '日期（用于分区）',
        school_id String COMMENT '学校ID',
        user_id UInt32 COMMENT '用户ID',
        event_type String COMMENT '事件类型（login, message_sent, backup_created等）',
        detail String COMMENT '事件详情'
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(date)
    ORDER BY (date, school_id, timestamp)
    TTL date + INTERVAL 180 DAY
    SETTINGS index_granularity = 8192
    COMMENT '平台用量事件表'
    `

	if err := conn.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("创建用量事件表失败: %w", err)
	}

	return nil
}
