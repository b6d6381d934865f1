package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"school-manager/database"
	"school-manager/services"
)

// usageService 用量埋点服务，未启用 ClickHouse 时为 nil，记录调用为空操作
var usageService *services.UsageService

// notifier Webhook 通知服务
var notifier *services.NotificationService

// InitUsage 注入用量埋点服务
func InitUsage(u *services.UsageService) {
	usageService = u
}

// InitNotifier 注入通知服务
func InitNotifier(n *services.NotificationService) {
	notifier = n
}

// scopedDB 返回带租户上下文的数据库句柄
// 所有业务处理器都通过它访问数据库，租户过滤由查询拦截器在执行时注入
func scopedDB(c *gin.Context) *gorm.DB {
	return database.DB.WithContext(c.Request.Context())
}

// recordUsage 异步记录用量事件
func recordUsage(c *gin.Context, eventType, detail string) {
	if usageService == nil {
		return
	}
	schoolID := c.GetString("school_id")
	userID := c.GetUint("user_id")
	usageService.Record(schoolID, userID, eventType, detail)
}
