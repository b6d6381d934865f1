package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"school-manager/models"
)

// GetFeeStructures 获取收费项目列表
func GetFeeStructures(c *gin.Context) {
	query := scopedDB(c).Model(&models.FeeStructure{})

	if term := c.Query("term"); term != "" {
		query = query.Where("term = ?", term)
	}
	if classID := c.Query("class_id"); classID != "" {
		query = query.Where("class_id = ? OR class_id IS NULL", classID)
	}

	var structures []models.FeeStructure
	if err := query.Order("created_at DESC").Find(&structures).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询收费项目失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    structures,
	})
}

// CreateFeeStructure 创建收费项目
func CreateFeeStructure(c *gin.Context) {
	var structure models.FeeStructure
	if err := c.ShouldBindJSON(&structure); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if structure.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "收费项目名称不能为空",
		})
		return
	}
	if structure.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "金额必须大于0",
		})
		return
	}

	if err := scopedDB(c).Create(&structure).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建收费项目失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "创建成功",
		"data":    structure,
	})
}

// UpdateFeeStructure 更新收费项目
func UpdateFeeStructure(c *gin.Context) {
	var structure models.FeeStructure
	if err := scopedDB(c).First(&structure, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "收费项目不存在",
		})
		return
	}

	var payload models.FeeStructure
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if payload.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "金额必须大于0",
		})
		return
	}

	updates := map[string]interface{}{
		"name":     payload.Name,
		"class_id": payload.ClassID,
		"term":     payload.Term,
		"amount":   payload.Amount,
		"due_date": payload.DueDate,
	}
	if err := scopedDB(c).Model(&structure).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新收费项目失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    structure,
	})
}

// DeleteFeeStructure 删除收费项目（已有缴费记录时拒绝）
func DeleteFeeStructure(c *gin.Context) {
	id := c.Param("id")

	var paymentCount int64
	scopedDB(c).Model(&models.FeePayment{}).Where("fee_structure_id = ?", id).Count(&paymentCount)
	if paymentCount > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "该收费项目已有缴费记录，无法删除",
		})
		return
	}

	result := scopedDB(c).Delete(&models.FeeStructure{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除收费项目失败",
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "收费项目不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}

// GetFeePayments 获取缴费记录列表
func GetFeePayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := scopedDB(c).Model(&models.FeePayment{})

	if studentID := c.Query("student_id"); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}
	if structureID := c.Query("fee_structure_id"); structureID != "" {
		query = query.Where("fee_structure_id = ?", structureID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var payments []models.FeePayment
	if err := query.Order("paid_at DESC").Limit(pageSize).Offset((page - 1) * pageSize).Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询缴费记录失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"list":      payments,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// RecordFeePayment 登记缴费
func RecordFeePayment(c *gin.Context) {
	var payment models.FeePayment
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if payment.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "缴费金额必须大于0",
		})
		return
	}

	// 学生和收费项目都必须在本校范围内存在
	var studentExists int64
	scopedDB(c).Model(&models.Student{}).Where("id = ?", payment.StudentID).Count(&studentExists)
	if studentExists == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "学生不存在",
		})
		return
	}
	var structureExists int64
	scopedDB(c).Model(&models.FeeStructure{}).Where("id = ?", payment.FeeStructureID).Count(&structureExists)
	if structureExists == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "收费项目不存在",
		})
		return
	}

	if payment.Method == "" {
		payment.Method = "cash"
	}
	if payment.Status == "" {
		payment.Status = "paid"
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now()
	}

	if err := scopedDB(c).Create(&payment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "登记缴费失败",
		})
		return
	}

	recordUsage(c, "fee_payment", strconv.FormatInt(payment.Amount, 10))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "缴费登记成功",
		"data":    payment,
	})
}

// RefundFeePayment 缴费退款
func RefundFeePayment(c *gin.Context) {
	var payment models.FeePayment
	if err := scopedDB(c).First(&payment, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "缴费记录不存在",
		})
		return
	}

	if payment.Status == "refunded" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "该笔缴费已退款",
		})
		return
	}

	if err := scopedDB(c).Model(&payment).Update("status", "refunded").Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "退款失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "退款成功",
		"data":    payment,
	})
}

// GetFeeSummary 财务汇总（按学期过滤）
func GetFeeSummary(c *gin.Context) {
	term := c.Query("term")

	billedQuery := scopedDB(c).Model(&models.FeeStructure{})
	paidQuery := scopedDB(c).Model(&models.FeePayment{}).Where("status = ?", "paid")
	if term != "" {
		billedQuery = billedQuery.Where("term = ?", term)
		paidQuery = paidQuery.
			Joins("JOIN fee_structures ON fee_structures.id = fee_payments.fee_structure_id").
			Where("fee_structures.term = ?", term)
	}

	var summary models.FeeSummary
	billedQuery.Select("COALESCE(SUM(amount), 0)").Scan(&summary.TotalBilled)
	paidQuery.Select("COALESCE(SUM(fee_payments.amount), 0)").Scan(&summary.TotalCollected)
	scopedDB(c).Model(&models.FeePayment{}).Where("status = ?", "paid").Count(&summary.PaymentCount)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}
