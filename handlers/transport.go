package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"school-manager/models"
)

type AssignTransportRequest struct {
	RouteID   uint   `json:"route_id" binding:"required"`
	StudentID uint   `json:"student_id" binding:"required"`
	Stop      string `json:"stop"`
}

// GetTransportRoutes 获取校车线路列表
func GetTransportRoutes(c *gin.Context) {
	query := scopedDB(c).Model(&models.TransportRoute{})
	if c.Query("enabled") == "true" {
		query = query.Where("enabled = ?", true)
	}

	var routes []models.TransportRoute
	if err := query.Order("name").Find(&routes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询线路失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    routes,
	})
}

// CreateTransportRoute 创建校车线路
func CreateTransportRoute(c *gin.Context) {
	var route models.TransportRoute
	if err := c.ShouldBindJSON(&route); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if route.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "线路名称不能为空",
		})
		return
	}

	if err := scopedDB(c).Create(&route).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建线路失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "创建成功",
		"data":    route,
	})
}

// UpdateTransportRoute 更新校车线路
func UpdateTransportRoute(c *gin.Context) {
	var route models.TransportRoute
	if err := scopedDB(c).First(&route, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "线路不存在",
		})
		return
	}

	var payload models.TransportRoute
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	updates := map[string]interface{}{
		"name":         payload.Name,
		"vehicle_no":   payload.VehicleNo,
		"driver_name":  payload.DriverName,
		"driver_phone": payload.DriverPhone,
		"stops":        payload.Stops,
		"fare":         payload.Fare,
		"enabled":      payload.Enabled,
	}
	if err := scopedDB(c).Model(&route).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新线路失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    route,
	})
}

// DeleteTransportRoute 删除校车线路（仍有学生乘车时拒绝）
func DeleteTransportRoute(c *gin.Context) {
	id := c.Param("id")

	var assigned int64
	scopedDB(c).Model(&models.TransportAssignment{}).Where("route_id = ?", id).Count(&assigned)
	if assigned > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "线路仍有学生乘车，无法删除",
		})
		return
	}

	result := scopedDB(c).Delete(&models.TransportRoute{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除线路失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "线路不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}

// GetTransportAssignments 获取乘车分配列表
func GetTransportAssignments(c *gin.Context) {
	query := scopedDB(c).Model(&models.TransportAssignment{})

	if routeID := c.Query("route_id"); routeID != "" {
		query = query.Where("route_id = ?", routeID)
	}
	if studentID := c.Query("student_id"); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}

	var assignments []models.TransportAssignment
	if err := query.Order("assigned_at DESC").Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询乘车分配失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    assignments,
	})
}

// AssignTransport 分配学生乘车
func AssignTransport(c *gin.Context) {
	var req AssignTransportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	var route models.TransportRoute
	if err := scopedDB(c).First(&route, req.RouteID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "线路不存在",
		})
		return
	}
	if !route.Enabled {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "线路已停运",
		})
		return
	}

	var studentExists int64
	scopedDB(c).Model(&models.Student{}).Where("id = ?", req.StudentID).Count(&studentExists)
	if studentExists == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "学生不存在",
		})
		return
	}

	// 一个学生只能分配到一条线路
	var current int64
	scopedDB(c).Model(&models.TransportAssignment{}).
		Where("student_id = ?", req.StudentID).
		Count(&current)
	if current > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "该学生已分配乘车线路，请先取消原分配",
		})
		return
	}

	assignment := models.TransportAssignment{
		RouteID:    req.RouteID,
		StudentID:  req.StudentID,
		Stop:       req.Stop,
		AssignedAt: time.Now(),
	}

	if err := scopedDB(c).Create(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "分配乘车失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "分配成功",
		"data":    assignment,
	})
}

// RemoveTransportAssignment 取消学生乘车分配
func RemoveTransportAssignment(c *gin.Context) {
	result := scopedDB(c).Delete(&models.TransportAssignment{}, c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "取消分配失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "分配记录不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "取消成功",
	})
}
