package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"school-manager/models"
)

type AllocateBedRequest struct {
	HostelID  uint   `json:"hostel_id" binding:"required"`
	StudentID uint   `json:"student_id" binding:"required"`
	Room      string `json:"room"`
	Bed       string `json:"bed"`
}

// GetHostels 获取宿舍楼列表（附带在住人数）
func GetHostels(c *gin.Context) {
	var hostels []models.Hostel
	if err := scopedDB(c).Order("name").Find(&hostels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询宿舍失败",
		})
		return
	}

	type hostelWithOccupancy struct {
		models.Hostel
		Occupied int64 `json:"occupied"`
	}

	list := make([]hostelWithOccupancy, 0, len(hostels))
	for _, h := range hostels {
		var occupied int64
		scopedDB(c).Model(&models.HostelAllocation{}).
			Where("hostel_id = ? AND released_at IS NULL", h.ID).
			Count(&occupied)
		list = append(list, hostelWithOccupancy{Hostel: h, Occupied: occupied})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
	})
}

// CreateHostel 创建宿舍楼
func CreateHostel(c *gin.Context) {
	var hostel models.Hostel
	if err := c.ShouldBindJSON(&hostel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if hostel.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "宿舍名称不能为空",
		})
		return
	}
	if hostel.Type == "" {
		hostel.Type = "mixed"
	}

	if err := scopedDB(c).Create(&hostel).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建宿舍失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "创建成功",
		"data":    hostel,
	})
}

// UpdateHostel 更新宿舍楼
func UpdateHostel(c *gin.Context) {
	var hostel models.Hostel
	if err := scopedDB(c).First(&hostel, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "宿舍不存在",
		})
		return
	}

	var payload models.Hostel
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	updates := map[string]interface{}{
		"name":     payload.Name,
		"type":     payload.Type,
		"capacity": payload.Capacity,
		"warden":   payload.Warden,
		"phone":    payload.Phone,
	}
	if err := scopedDB(c).Model(&hostel).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新宿舍失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    hostel,
	})
}

// DeleteHostel 删除宿舍楼（仍有在住学生时拒绝）
func DeleteHostel(c *gin.Context) {
	id := c.Param("id")

	var occupied int64
	scopedDB(c).Model(&models.HostelAllocation{}).
		Where("hostel_id = ? AND released_at IS NULL", id).
		Count(&occupied)
	if occupied > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "宿舍仍有在住学生，无法删除",
		})
		return
	}

	result := scopedDB(c).Delete(&models.Hostel{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除宿舍失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "宿舍不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}

// GetHostelAllocations 获取床位分配记录
func GetHostelAllocations(c *gin.Context) {
	query := scopedDB(c).Model(&models.HostelAllocation{})

	if hostelID := c.Query("hostel_id"); hostelID != "" {
		query = query.Where("hostel_id = ?", hostelID)
	}
	if studentID := c.Query("student_id"); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}
	if c.DefaultQuery("active_only", "true") == "true" {
		query = query.Where("released_at IS NULL")
	}

	var allocations []models.HostelAllocation
	if err := query.Order("allocated_at DESC").Find(&allocations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询分配记录失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    allocations,
	})
}

// AllocateBed 分配床位
func AllocateBed(c *gin.Context) {
	var req AllocateBedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	var hostel models.Hostel
	if err := scopedDB(c).First(&hostel, req.HostelID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "宿舍不存在",
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

	// 学生不能同时占用两个床位
	var current int64
	scopedDB(c).Model(&models.HostelAllocation{}).
		Where("student_id = ? AND released_at IS NULL", req.StudentID).
		Count(&current)
	if current > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "该学生已有在住床位，请先退宿",
		})
		return
	}

	// 容量检查
	var occupied int64
	scopedDB(c).Model(&models.HostelAllocation{}).
		Where("hostel_id = ? AND released_at IS NULL", req.HostelID).
		Count(&occupied)
	if hostel.Capacity > 0 && occupied >= int64(hostel.Capacity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "宿舍床位已满",
		})
		return
	}

	allocation := models.HostelAllocation{
		HostelID:    req.HostelID,
		StudentID:   req.StudentID,
		Room:        req.Room,
		Bed:         req.Bed,
		AllocatedAt: time.Now(),
	}

	if err := scopedDB(c).Create(&allocation).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "分配床位失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "分配成功",
		"data":    allocation,
	})
}

// ReleaseBed 退宿
func ReleaseBed(c *gin.Context) {
	var allocation models.HostelAllocation
	if err := scopedDB(c).First(&allocation, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "分配记录不存在",
		})
		return
	}

	if allocation.ReleasedAt != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "该床位已退宿",
		})
		return
	}

	now := time.Now()
	if err := scopedDB(c).Model(&allocation).Update("released_at", &now).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "退宿失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "退宿成功",
		"data":    allocation,
	})
}
