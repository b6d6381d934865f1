package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"school-manager/models"
)

// GetClasses 获取班级列表
func GetClasses(c *gin.Context) {
	var classes []models.Class
	if err := scopedDB(c).Order("name, section").Find(&classes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询班级失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    classes,
	})
}

// CreateClass 创建班级
func CreateClass(c *gin.Context) {
	var class models.Class
	if err := c.ShouldBindJSON(&class); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if class.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "班级名称不能为空",
		})
		return
	}

	if err := scopedDB(c).Create(&class).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建班级失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "创建成功",
		"data":    class,
	})
}

// UpdateClass 更新班级
func UpdateClass(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "无效的班级ID",
		})
		return
	}

	var class models.Class
	if err := scopedDB(c).First(&class, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "班级不存在",
		})
		return
	}

	var payload models.Class
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	updates := map[string]interface{}{
		"name":       payload.Name,
		"section":    payload.Section,
		"teacher_id": payload.TeacherID,
	}
	if err := scopedDB(c).Model(&class).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新班级失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    class,
	})
}

// DeleteClass 删除班级（班内仍有学生时拒绝）
func DeleteClass(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "无效的班级ID",
		})
		return
	}

	var studentCount int64
	scopedDB(c).Model(&models.Student{}).Where("class_id = ?", id).Count(&studentCount)
	if studentCount > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "班级内仍有学生，无法删除",
		})
		return
	}

	result := scopedDB(c).Delete(&models.Class{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除班级失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "班级不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}

// GetStudents 获取学生列表（支持按班级/状态/关键字过滤）
func GetStudents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := scopedDB(c).Model(&models.Student{})

	if classID := c.Query("class_id"); classID != "" {
		query = query.Where("class_id = ?", classID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword := c.Query("keyword"); keyword != "" {
		query = query.Where("name LIKE ? OR admission_no LIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}

	var total int64
	query.Count(&total)

	var students []models.Student
	if err := query.Order("admission_no").Limit(pageSize).Offset((page - 1) * pageSize).Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询学生失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"list":      students,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// GetStudent 获取学生详情
func GetStudent(c *gin.Context) {
	var student models.Student
	if err := scopedDB(c).First(&student, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "学生不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    student,
	})
}

// CreateStudent 学生注册
func CreateStudent(c *gin.Context) {
	var student models.Student
	if err := c.ShouldBindJSON(&student); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if student.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "学生姓名不能为空",
		})
		return
	}

	if student.AdmissionNo != "" {
		var exists int64
		scopedDB(c).Model(&models.Student{}).Where("admission_no = ?", student.AdmissionNo).Count(&exists)
		if exists > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "学号已存在",
			})
			return
		}
	}

	if student.ClassID != nil {
		var classExists int64
		scopedDB(c).Model(&models.Class{}).Where("id = ?", *student.ClassID).Count(&classExists)
		if classExists == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "班级不存在",
			})
			return
		}
	}

	if student.Status == "" {
		student.Status = "enrolled"
	}

	if err := scopedDB(c).Create(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建学生失败",
		})
		return
	}

	recordUsage(c, "student_created", student.AdmissionNo)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "创建成功",
		"data":    student,
	})
}

// UpdateStudent 更新学生信息
func UpdateStudent(c *gin.Context) {
	var student models.Student
	if err := scopedDB(c).First(&student, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "学生不存在",
		})
		return
	}

	var payload models.Student
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if payload.ClassID != nil {
		var classExists int64
		scopedDB(c).Model(&models.Class{}).Where("id = ?", *payload.ClassID).Count(&classExists)
		if classExists == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "班级不存在",
			})
			return
		}
	}

	updates := map[string]interface{}{
		"name":           payload.Name,
		"gender":         payload.Gender,
		"birth_date":     payload.BirthDate,
		"class_id":       payload.ClassID,
		"guardian_name":  payload.GuardianName,
		"guardian_phone": payload.GuardianPhone,
		"address":        payload.Address,
	}
	if payload.Status != "" {
		updates["status"] = payload.Status
	}

	if err := scopedDB(c).Model(&student).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新学生失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    student,
	})
}

// DeleteStudent 学生离校（软删除）
func DeleteStudent(c *gin.Context) {
	result := scopedDB(c).Delete(&models.Student{}, c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除学生失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "学生不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}
