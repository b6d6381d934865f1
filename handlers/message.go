package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"school-manager/models"
)

type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id"` // 0 表示全校公告
	Title       string `json:"title" binding:"required"`
	Content     string `json:"content"`
}

// GetMessages 获取消息列表（box=inbox/sent/announcements）
func GetMessages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	userID := c.GetUint("user_id")
	query := scopedDB(c).Model(&models.Message{})

	switch c.DefaultQuery("box", "inbox") {
	case "sent":
		query = query.Where("sender_id = ?", userID)
	case "announcements":
		query = query.Where("recipient_id = ?", 0)
	default:
		query = query.Where("recipient_id = ? OR recipient_id = ?", userID, 0)
	}
	if c.Query("unread") == "true" {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	query.Count(&total)

	var messages []models.Message
	if err := query.Order("created_at DESC").Limit(pageSize).Offset((page - 1) * pageSize).Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询消息失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"list":      messages,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// SendMessage 发送站内消息
func SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if req.RecipientID != 0 {
		var exists int64
		scopedDB(c).Model(&models.User{}).Where("id = ?", req.RecipientID).Count(&exists)
		if exists == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "收件人不存在",
			})
			return
		}
	}

	message := models.Message{
		SenderID:    c.GetUint("user_id"),
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Content:     req.Content,
	}

	if err := scopedDB(c).Create(&message).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "发送消息失败",
		})
		return
	}

	recordUsage(c, "message_sent", req.Title)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "发送成功",
		"data":    message,
	})
}

// MarkMessageRead 标记消息已读
func MarkMessageRead(c *gin.Context) {
	var message models.Message
	if err := scopedDB(c).First(&message, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "消息不存在",
		})
		return
	}

	if message.ReadAt == nil {
		now := time.Now()
		if err := scopedDB(c).Model(&message).Update("read_at", &now).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "标记已读失败",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "已标记为已读",
		"data":    message,
	})
}

// DeleteMessage 删除消息
func DeleteMessage(c *gin.Context) {
	result := scopedDB(c).Delete(&models.Message{}, c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除消息失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "消息不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}
