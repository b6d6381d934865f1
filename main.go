package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"school-manager/config"
	"school-manager/database"
	"school-manager/handlers"
	"school-manager/middleware"
	"school-manager/services"
)

func main() {
	// 加载 .env（不存在则忽略）
	_ = godotenv.Load()

	// 初始化数据库
	database.InitDB()
	database.InitClickHouse()

	// 创建 Gin 路由
	r := gin.Default()
	r.Use(middleware.Logger())

	// CORS 配置
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true, // 允许所有来源（仅开发环境）
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// 创建S3服务（未配置对象存储时为空）
	var s3Service *services.S3Service
	storageConfig := config.LoadStorageConfig()
	if storageConfig.IsS3Enabled() {
		var err error
		s3Service, err = services.NewS3Service(storageConfig)
		if err != nil {
			log.Printf("⚠️ S3服务初始化失败，备份仅保留本地: %v", err)
			s3Service = nil
		}
	}

	// 备份 / 恢复 / 通知 / 用量服务
	backupService := services.NewBackupService(database.DB, s3Service)
	restoreService := services.NewRestoreService(database.DB, s3Service)
	notificationService := services.NewNotificationService(database.DB)
	usageService := services.NewUsageService(database.CHConn)

	handlers.InitNotifier(notificationService)
	handlers.InitUsage(usageService)

	// 启动定时任务调度（自动备份 + 过期清理）
	schedulerService := services.NewSchedulerService(backupService)
	if err := schedulerService.Start(); err != nil {
		log.Printf("启动调度服务失败: %v", err)
	}
	defer schedulerService.Stop()

	backupHandler := handlers.NewBackupHandler(database.DB, backupService, restoreService, s3Service)

	// 公开路由
	public := r.Group("/api")
	public.Use(middleware.RateLimit(30))
	{
		public.POST("/login", handlers.Login)
		public.POST("/register", handlers.Register)
	}

	// 需要认证的路由
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/me", handlers.GetCurrentUser)
		protected.POST("/me/password", handlers.ChangePassword)

		// 班级与学生
		protected.GET("/classes", handlers.GetClasses)
		protected.GET("/students", handlers.GetStudents)
		protected.GET("/students/:id", handlers.GetStudent)

		// 财务
		protected.GET("/fees/structures", handlers.GetFeeStructures)
		protected.GET("/fees/payments", handlers.GetFeePayments)
		protected.GET("/fees/summary", handlers.GetFeeSummary)

		// 宿舍
		protected.GET("/hostels", handlers.GetHostels)
		protected.GET("/hostels/allocations", handlers.GetHostelAllocations)

		// 校车
		protected.GET("/transport/routes", handlers.GetTransportRoutes)
		protected.GET("/transport/assignments", handlers.GetTransportAssignments)

		// 考试
		protected.GET("/exams", handlers.GetExams)
		protected.GET("/exams/results", handlers.GetExamResults)

		// 站内消息
		protected.GET("/messages", handlers.GetMessages)
		protected.POST("/messages", handlers.SendMessage)
		protected.POST("/messages/:id/read", handlers.MarkMessageRead)
		protected.DELETE("/messages/:id", handlers.DeleteMessage)

		// 校历
		protected.GET("/calendar", handlers.GetCalendarEvents)
	}

	// 学校管理员路由
	admin := r.Group("/api")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminRequired())
	{
		// 本校用户管理
		admin.GET("/users", handlers.GetUsers)
		admin.POST("/users", handlers.CreateUser)
		admin.PUT("/users/:id", handlers.UpdateUser)
		admin.DELETE("/users/:id", handlers.DeleteUser)

		// 班级与学生维护
		admin.POST("/classes", handlers.CreateClass)
		admin.PUT("/classes/:id", handlers.UpdateClass)
		admin.DELETE("/classes/:id", handlers.DeleteClass)
		admin.POST("/students", handlers.CreateStudent)
		admin.PUT("/students/:id", handlers.UpdateStudent)
		admin.DELETE("/students/:id", handlers.DeleteStudent)

		// 收费项目与缴费
		admin.POST("/fees/structures", handlers.CreateFeeStructure)
		admin.PUT("/fees/structures/:id", handlers.UpdateFeeStructure)
		admin.DELETE("/fees/structures/:id", handlers.DeleteFeeStructure)
		admin.POST("/fees/payments", handlers.RecordFeePayment)
		admin.POST("/fees/payments/:id/refund", handlers.RefundFeePayment)

		// 宿舍维护
		admin.POST("/hostels", handlers.CreateHostel)
		admin.PUT("/hostels/:id", handlers.UpdateHostel)
		admin.DELETE("/hostels/:id", handlers.DeleteHostel)
		admin.POST("/hostels/allocations", handlers.AllocateBed)
		admin.POST("/hostels/allocations/:id/release", handlers.ReleaseBed)

		// 校车维护
		admin.POST("/transport/routes", handlers.CreateTransportRoute)
		admin.PUT("/transport/routes/:id", handlers.UpdateTransportRoute)
		admin.DELETE("/transport/routes/:id", handlers.DeleteTransportRoute)
		admin.POST("/transport/assignments", handlers.AssignTransport)
		admin.DELETE("/transport/assignments/:id", handlers.RemoveTransportAssignment)

		// 考试与成绩
		admin.POST("/exams", handlers.CreateExam)
		admin.PUT("/exams/:id", handlers.UpdateExam)
		admin.DELETE("/exams/:id", handlers.DeleteExam)
		admin.POST("/exams/:id/results", handlers.RecordExamResult)

		// 校历维护
		admin.POST("/calendar", handlers.CreateCalendarEvent)
		admin.PUT("/calendar/:id", handlers.UpdateCalendarEvent)
		admin.DELETE("/calendar/:id", handlers.DeleteCalendarEvent)

		// 通知渠道
		admin.GET("/notifications/channels", handlers.GetNotificationChannels)
		admin.POST("/notifications/channels", handlers.AddNotificationChannel)
		admin.PUT("/notifications/channels/:id", handlers.UpdateNotificationChannel)
		admin.DELETE("/notifications/channels/:id", handlers.DeleteNotificationChannel)
		admin.POST("/notifications/channels/:id/test", handlers.TestNotificationChannel)
		admin.GET("/notifications/events", handlers.GetNotificationEvents)
	}

	// 平台超级管理员路由
	platform := r.Group("/api/platform")
	platform.Use(middleware.AuthMiddleware())
	platform.Use(middleware.SuperAdminRequired())
	{
		// 学校租户管理
		platform.GET("/schools", handlers.GetSchools)
		platform.POST("/schools", handlers.CreateSchool)
		platform.GET("/schools/:id", handlers.GetSchool)
		platform.PUT("/schools/:id", handlers.UpdateSchool)
		platform.POST("/schools/:id/deactivate", handlers.DeactivateSchool)
		platform.GET("/schools/:id/usage", handlers.GetSchoolUsage)
		platform.GET("/stats", handlers.GetPlatformStats)

		// 通知日志
		platform.GET("/notifications/logs", handlers.GetNotificationLogs)

		// 备份与恢复
		platform.POST("/backups", backupHandler.CreateBackup)
		platform.GET("/backups", backupHandler.GetBackups)
		platform.GET("/backups/stats", backupHandler.GetBackupStats)
		platform.GET("/backups/latest", backupHandler.GetLatestRestorable)
		platform.GET("/backups/:id", backupHandler.GetBackup)
		platform.GET("/backups/:id/download", backupHandler.DownloadBackup)
		platform.DELETE("/backups/:id", backupHandler.DeleteBackup)
		platform.POST("/backups/restore", backupHandler.RestoreBackup)
		platform.POST("/backups/cleanup", backupHandler.CleanupBackups)
		platform.GET("/backups/s3/test", backupHandler.TestS3Connection)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	port := config.GetConfig().ServerPort
	log.Printf("🚀 服务启动，监听端口 %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("服务启动失败: %v", err)
	}
}
