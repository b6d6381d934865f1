package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"school-manager/database"
	"school-manager/models"
	"school-manager/tenant"
)

type CreateSchoolRequest struct {
	Name          string `json:"name" binding:"required"`
	Code          string `json:"code" binding:"required,min=3,max=50"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Plan          string `json:"plan"`
	AdminUsername string `json:"admin_username" binding:"required,min=3,max=50"`
	AdminPassword string `json:"admin_password" binding:"required,min=6"`
	AdminEmail    string `json:"admin_email"`
}

type UpdateSchoolRequest struct {
	Name          *string `json:"name"`
	Address       *string `json:"address"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	Plan          *string `json:"plan"`
	BillingStatus *string `json:"billing_status"`
	Active        *bool   `json:"active"`
}

// CreateSchool 创建学校并开通初始管理员账号
func CreateSchool(c *gin.Context) {
	var req CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	plan := req.Plan
	if plan == "" {
		plan = "free"
	}
	if plan != "free" && plan != "standard" && plan != "premium" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "无效的套餐类型",
		})
		return
	}

	var exists int64
	database.DB.Model(&models.School{}).Where("code = ?", req.Code).Count(&exists)
	if exists > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "学校代码已被占用",
		})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "密码加密失败",
		})
		return
	}

	school := models.School{
		Name:          req.Name,
		Code:          req.Code,
		Address:       req.Address,
		Phone:         req.Phone,
		Email:         req.Email,
		Plan:          plan,
		BillingStatus: "trial",
		Active:        true,
	}

	// 学校和初始管理员在同一事务内创建
	ctx := tenant.WithSystem(c.Request.Context())
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&school).Error; err != nil {
			return err
		}
		admin := models.User{
			SchoolID: school.ID,
			Username: req.AdminUsername,
			Password: string(hashedPassword),
			Email:    req.AdminEmail,
			Role:     "admin",
			IsActive: true,
		}
		return tx.Create(&admin).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建学校失败",
			"error":   err.Error(),
		})
		return
	}

	log.Printf("✅ 新学校已开通: %s (%s)", school.Name, school.Code)

	if notifier != nil {
		go notifier.SendNotification("", "school_created", "新学校开通",
			"学校 "+school.Name+" ("+school.Code+") 已开通，套餐: "+school.Plan)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "学校创建成功",
		"data":    school,
	})
}

// GetSchools 获取学校列表（平台侧）
func GetSchools(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := database.DB.Model(&models.School{})

	if keyword := c.Query("keyword"); keyword != "" {
		query = query.Where("name LIKE ? OR code LIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}
	if plan := c.Query("plan"); plan != "" {
		query = query.Where("plan = ?", plan)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("active = ?", active == "true")
	}

	var total int64
	query.Count(&total)

	var schools []models.School
	if err := query.Order("created_at DESC").Limit(pageSize).Offset((page - 1) * pageSize).Find(&schools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询学校失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"list":      schools,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// GetSchool 获取学校详情
func GetSchool(c *gin.Context) {
	var school models.School
	if err := database.DB.Where("id = ?", c.Param("id")).First(&school).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "学校不存在",
		})
		return
	}

	ctx := tenant.WithSchool(c.Request.Context(), school.ID)
	var studentCount, userCount int64
	database.DB.WithContext(ctx).Model(&models.Student{}).Count(&studentCount)
	database.DB.WithContext(ctx).Model(&models.User{}).Count(&userCount)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"school":        school,
			"student_count": studentCount,
			"user_count":    userCount,
		},
	})
}

// UpdateSchool 更新学校信息/套餐/计费状态
func UpdateSchool(c *gin.Context) {
	var req UpdateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	var school models.School
	if err := database.DB.Where("id = ?", c.Param("id")).First(&school).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "学校不存在",
		})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Plan != nil {
		if *req.Plan != "free" && *req.Plan != "standard" && *req.Plan != "premium" {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "无效的套餐类型",
			})
			return
		}
		updates["plan"] = *req.Plan
	}
	if req.BillingStatus != nil {
		if *req.BillingStatus != "trial" && *req.BillingStatus != "active" && *req.BillingStatus != "overdue" {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "无效的计费状态",
			})
			return
		}
		updates["billing_status"] = *req.BillingStatus
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&school).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "更新学校失败",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    school,
	})
}

// DeactivateSchool 停用学校（保留数据，禁止登录）
func DeactivateSchool(c *gin.Context) {
	result := database.DB.Model(&models.School{}).Where("id = ?", c.Param("id")).Update("active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "停用学校失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "学校不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "学校已停用",
	})
}

// GetSchoolUsage 单个学校最近30天的用量明细（需要启用 ClickHouse）
func GetSchoolUsage(c *gin.Context) {
	if usageService == nil || !usageService.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "用量分析未启用",
		})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 180 {
		days = 30
	}

	counts, err := usageService.EventCounts(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询用量失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"school_id": c.Param("id"),
			"days":      days,
			"events":    counts,
		},
	})
}

// GetPlatformStats 平台运营统计看板
func GetPlatformStats(c *gin.Context) {
	ctx := tenant.WithSystem(c.Request.Context())
	db := database.DB.WithContext(ctx)

	stats := models.SchoolStats{}
	db.Model(&models.School{}).Count(&stats.TotalSchools)
	db.Model(&models.School{}).Where("active = ?", true).Count(&stats.ActiveSchools)
	db.Model(&models.Student{}).Count(&stats.TotalStudents)
	db.Model(&models.User{}).Count(&stats.TotalUsers)

	db.Model(&models.School{}).
		Select("plan, COUNT(*) as count").
		Group("plan").
		Scan(&stats.PlanBreakdown)

	db.Model(&models.Student{}).
		Select("students.school_id, schools.name as school_name, COUNT(*) as student_count").
		Joins("JOIN schools ON schools.id = students.school_id").
		Group("students.school_id, schools.name").
		Order("student_count DESC").
		Limit(10).
		Scan(&stats.TopSchools)

	response := gin.H{"stats": stats}

	// ClickHouse 启用时附带活跃度排行
	if usageService != nil && usageService.Enabled() {
		if top, err := usageService.TopSchools(c.Request.Context(), 30, 10); err == nil {
			response["usage_top_schools"] = top
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
	})
}
