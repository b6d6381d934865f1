package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"school-manager/config"
	"school-manager/database"
	"school-manager/models"
	"school-manager/tenant"
)

// GetNotificationChannels 获取通知渠道列表
// 学校管理员只看到本校渠道，超级管理员看到平台全局渠道
func GetNotificationChannels(c *gin.Context) {
	var channels []models.NotificationChannel
	if err := scopedDB(c).Order("created_at DESC").Find(&channels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询通知渠道失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    channels,
	})
}

// AddNotificationChannel 添加通知渠道
func AddNotificationChannel(c *gin.Context) {
	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if channel.Name == "" || channel.WebhookURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "渠道名称和 Webhook URL 不能为空",
		})
		return
	}
	if channel.Type != "wechat" && channel.Type != "dingtalk" && channel.Type != "feishu" && channel.Type != "slack" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "不支持的渠道类型",
		})
		return
	}

	if err := scopedDB(c).Create(&channel).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "添加通知渠道失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "添加成功",
		"data":    channel,
	})
}

// UpdateNotificationChannel 更新通知渠道
func UpdateNotificationChannel(c *gin.Context) {
	var channel models.NotificationChannel
	if err := scopedDB(c).First(&channel, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "通知渠道不存在",
		})
		return
	}

	var payload models.NotificationChannel
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	updates := map[string]interface{}{
		"name":        payload.Name,
		"type":        payload.Type,
		"webhook_url": payload.WebhookURL,
		"secret":      payload.Secret,
		"events":      payload.Events,
		"enabled":     payload.Enabled,
	}
	if err := scopedDB(c).Model(&channel).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新通知渠道失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    channel,
	})
}

// DeleteNotificationChannel 删除通知渠道
func DeleteNotificationChannel(c *gin.Context) {
	result := scopedDB(c).Delete(&models.NotificationChannel{}, c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除通知渠道失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "通知渠道不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}

// TestNotificationChannel 发送测试消息验证渠道配置
func TestNotificationChannel(c *gin.Context) {
	var channel models.NotificationChannel
	if err := scopedDB(c).First(&channel, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "通知渠道不存在",
		})
		return
	}

	if notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "通知服务未启用",
		})
		return
	}

	if err := notifier.SendNotification(channel.SchoolID, "test", "测试通知",
		"这是一条测试消息，发送于 "+time.Now().Format("2006-01-02 15:04:05")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "测试消息发送失败",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "测试消息已发送",
	})
}

// GetNotificationEvents 获取可订阅的事件类型
func GetNotificationEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    config.NotificationEvents,
	})
}

// GetNotificationLogs 获取通知发送日志（平台侧）
func GetNotificationLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	ctx := tenant.WithSystem(c.Request.Context())
	query := database.DB.WithContext(ctx).Model(&models.NotificationLog{})

	if channelID := c.Query("channel_id"); channelID != "" {
		query = query.Where("channel_id = ?", channelID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var logs []models.NotificationLog
	if err := query.Order("sent_at DESC").Limit(pageSize).Offset((page - 1) * pageSize).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询通知日志失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"list":      logs,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}
