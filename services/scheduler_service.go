package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"school-manager/config"
)

// SchedulerService 定时任务调度服务
// 目前只承载两类任务：按 BACKUP_SCHEDULE 的自动全量备份、每天一次的过期备份清理
type SchedulerService struct {
	config *config.Config
	cron   *cron.Cron
	backup *BackupService

	mutex   sync.Mutex
	running bool
}

// NewSchedulerService 创建调度服务
func NewSchedulerService(backup *BackupService) *SchedulerService {
	return &SchedulerService{
		config: config.GetConfig(),
		cron:   cron.New(),
		backup: backup,
	}
}

// Start 启动调度服务
func (s *SchedulerService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("调度服务已经在运行")
	}

	if schedule := s.config.BackupSchedule; schedule != "" {
		if _, err := s.cron.AddFunc(schedule, s.runScheduledBackup); err != nil {
			return fmt.Errorf("注册自动备份任务失败: %w", err)
		}
		log.Printf("已注册自动备份任务: %s", schedule)
	}

	// 过期备份清理，每天凌晨执行
	if _, err := s.cron.AddFunc("0 4 * * *", s.runCleanup); err != nil {
		return fmt.Errorf("注册备份清理任务失败: %w", err)
	}

	s.cron.Start()
	s.running = true

	log.Printf("✅ 定时任务调度服务启动成功")
	return nil
}

// Stop 停止调度服务，等待在途任务结束
func (s *SchedulerService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	log.Printf("定时任务调度服务已停止")
}

// runScheduledBackup 定时触发的自动备份
func (s *SchedulerService) runScheduledBackup() {
	log.Printf("开始执行自动备份...")
	if _, err := s.backup.CreateBackup(context.Background(), "scheduled", true); err != nil {
		log.Printf("❌ 自动备份失败: %v", err)
	}
}

// runCleanup 清理超过保留期的备份
func (s *SchedulerService) runCleanup() {
	s.backup.CleanupExpiredBackups(context.Background())
}
