package database

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"school-manager/config"
	"school-manager/models"
	"school-manager/tenant"
)

var DB *gorm.DB

// TenantTables 租户隔离表清单（手工维护，新增租户实体必须同步加到这里）
// 注意 schools/backups/notification_logs 是平台级表，不在清单内
var TenantTables = []string{
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
	"notification_channels",
}

// InitDB 初始化数据库
func InitDB() {
	var err error

	// 使用配置中的数据库路径，而不是硬编码
	dbPath := config.GetConfig().DBPath

	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// 自动迁移数据库结构
	err = DB.AutoMigrate(
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
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// 注册租户隔离插件（必须在迁移之后，业务查询之前）
	if err := DB.Use(tenant.NewScopePlugin(TenantTables...)); err != nil {
		log.Fatal("Failed to register tenant scope plugin:", err)
	}

	log.Printf("Database initialized successfully at: %s", dbPath)
}
