package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"school-manager/models"
)

// UsageService 平台用量事件服务（ClickHouse，可选）
// 记录登录、消息发送、备份等事件，供超级管理员的运营分析使用；
// 未启用 ClickHouse 时所有方法都是安静的空操作
type UsageService struct {
	conn driver.Conn
}

func NewUsageService(conn driver.Conn) *UsageService {
	return &UsageService{conn: conn}
}

// Enabled 是否启用了用量分析
func (s *UsageService) Enabled() bool {
	return s.conn != nil
}

// Record 记录一条用量事件（异步，失败只打日志）
func (s *UsageService) Record(schoolID string, userID uint, eventType, detail string) {
	if s.conn == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO school_usage_log (timestamp, school_id, user_id, event_type, detail)")
		if err != nil {
			log.Printf("用量事件写入失败: %v", err)
			return
		}
		if err := batch.Append(time.Now(), schoolID, uint32(userID), eventType, detail); err != nil {
			log.Printf("用量事件写入失败: %v", err)
			return
		}
		if err := batch.Send(); err != nil {
			log.Printf("用量事件写入失败: %v", err)
		}
	}()
}

// TopSchools 最近N天事件量最高的学校
func (s *UsageService) TopSchools(ctx context.Context, days, limit int) ([]models.UsageStat, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("用量分析未启用")
	}

	query := `
        SELECT school_id, count() AS cnt
        FROM school_usage_log
        WHERE date >= today() - ?
        GROUP BY school_id
        ORDER BY cnt DESC
        LIMIT ?
    `

	rows, err := s.conn.Query(ctx, query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("查询用量统计失败: %w", err)
	}
	defer rows.Close()

	var stats []models.UsageStat
	for rows.Next() {
		var stat models.UsageStat
		if err := rows.Scan(&stat.SchoolID, &stat.Count); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// EventCounts 指定学校最近N天按事件类型聚合的计数
func (s *UsageService) EventCounts(ctx context.Context, schoolID string, days int) (map[string]uint64, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("用量分析未启用")
	}

	query := `
        SELECT event_type, count() AS cnt
        FROM school_usage_log
        WHERE school_id = ? AND date >= today() - ?
        GROUP BY event_type
    `

	rows, err := s.conn.Query(ctx, query, schoolID, days)
	if err != nil {
		return nil, fmt.Errorf("查询用量统计失败: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var eventType string
		var cnt uint64
		if err := rows.Scan(&eventType, &cnt); err != nil {
			return nil, err
		}
		counts[eventType] = cnt
	}
	return counts, rows.Err()
}
