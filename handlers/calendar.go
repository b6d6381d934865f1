package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"school-manager/models"
)

// GetCalendarEvents 获取校历事件（按时间范围过滤）
func GetCalendarEvents(c *gin.Context) {
	query := scopedDB(c).Model(&models.CalendarEvent{})

	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			query = query.Where("starts_at >= ?", t)
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			query = query.Where("starts_at < ?", t)
		}
	}
	if audience := c.Query("audience"); audience != "" {
		query = query.Where("audience = ? OR audience = ?", audience, "all")
	}

	var events []models.CalendarEvent
	if err := query.Order("starts_at").Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询校历失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    events,
	})
}

// CreateCalendarEvent 创建校历事件
func CreateCalendarEvent(c *gin.Context) {
	var event models.CalendarEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if event.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "事件标题不能为空",
		})
		return
	}
	if event.StartsAt.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "事件开始时间不能为空",
		})
		return
	}
	if !event.EndsAt.IsZero() && event.EndsAt.Before(event.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "结束时间不能早于开始时间",
		})
		return
	}
	if event.Audience == "" {
		event.Audience = "all"
	}

	if err := scopedDB(c).Create(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建校历事件失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "创建成功",
		"data":    event,
	})
}

// UpdateCalendarEvent 更新校历事件
func UpdateCalendarEvent(c *gin.Context) {
	var event models.CalendarEvent
	if err := scopedDB(c).First(&event, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "校历事件不存在",
		})
		return
	}

	var payload models.CalendarEvent
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if !payload.EndsAt.IsZero() && !payload.StartsAt.IsZero() && payload.EndsAt.Before(payload.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "结束时间不能早于开始时间",
		})
		return
	}

	updates := map[string]interface{}{
		"title":       payload.Title,
		"description": payload.Description,
		"audience":    payload.Audience,
		"starts_at":   payload.StartsAt,
		"ends_at":     payload.EndsAt,
		"all_day":     payload.AllDay,
	}
	if err := scopedDB(c).Model(&event).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新校历事件失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    event,
	})
}

// DeleteCalendarEvent 删除校历事件
func DeleteCalendarEvent(c *gin.Context) {
	result := scopedDB(c).Delete(&models.CalendarEvent{}, c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除校历事件失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "校历事件不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}
