package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-manager/models"
)

type RecordResultRequest struct {
	StudentID uint    `json:"student_id" binding:"required"`
	Score     float64 `json:"score"`
	Remark    string  `json:"remark"`
}

// GetExams 获取考试列表
func GetExams(c *gin.Context) {
	query := scopedDB(c).Model(&models.Exam{})

	if classID := c.Query("class_id"); classID != "" {
		query = query.Where("class_id = ?", classID)
	}
	if subject := c.Query("subject"); subject != "" {
		query = query.Where("subject = ?", subject)
	}

	var exams []models.Exam
	if err := query.Order("held_at DESC").Find(&exams).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询考试失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    exams,
	})
}

// CreateExam 创建考试
func CreateExam(c *gin.Context) {
	var exam models.Exam
	if err := c.ShouldBindJSON(&exam); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	if exam.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "考试名称不能为空",
		})
		return
	}
	if exam.MaxScore <= 0 {
		exam.MaxScore = 100
	}

	if err := scopedDB(c).Create(&exam).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "创建考试失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "创建成功",
		"data":    exam,
	})
}

// UpdateExam 更新考试
func UpdateExam(c *gin.Context) {
	var exam models.Exam
	if err := scopedDB(c).First(&exam, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "考试不存在",
		})
		return
	}

	var payload models.Exam
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
		"subject":  payload.Subject,
		"class_id": payload.ClassID,
		"held_at":  payload.HeldAt,
	}
	if payload.MaxScore > 0 {
		updates["max_score"] = payload.MaxScore
	}

	if err := scopedDB(c).Model(&exam).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "更新考试失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "更新成功",
		"data":    exam,
	})
}

// DeleteExam 删除考试及其成绩
func DeleteExam(c *gin.Context) {
	id := c.Param("id")

	var exam models.Exam
	if err := scopedDB(c).First(&exam, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "考试不存在",
		})
		return
	}

	scopedDB(c).Where("exam_id = ?", id).Delete(&models.ExamResult{})
	if err := scopedDB(c).Delete(&exam).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "删除考试失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "删除成功",
	})
}

// GetExamResults 获取考试成绩
func GetExamResults(c *gin.Context) {
	query := scopedDB(c).Model(&models.ExamResult{})

	if examID := c.Query("exam_id"); examID != "" {
		query = query.Where("exam_id = ?", examID)
	}
	if studentID := c.Query("student_id"); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}

	var results []models.ExamResult
	if err := query.Order("score DESC").Find(&results).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询成绩失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    results,
	})
}

// RecordExamResult 录入/更新单个学生的考试成绩
func RecordExamResult(c *gin.Context) {
	var req RecordResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
			"error":   err.Error(),
		})
		return
	}

	var exam models.Exam
	if err := scopedDB(c).First(&exam, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "考试不存在",
		})
		return
	}

	if req.Score < 0 || req.Score > float64(exam.MaxScore) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "成绩超出有效范围",
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

	grade := letterGrade(req.Score, exam.MaxScore)

	// 同一考试同一学生只保留一条成绩，重复录入按更新处理
	var result models.ExamResult
	err := scopedDB(c).Where("exam_id = ? AND student_id = ?", exam.ID, req.StudentID).First(&result).Error
	if err == nil {
		updates := map[string]interface{}{
			"score":  req.Score,
			"grade":  grade,
			"remark": req.Remark,
		}
		if err := scopedDB(c).Model(&result).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "更新成绩失败",
			})
			return
		}
	} else {
		result = models.ExamResult{
			ExamID:    exam.ID,
			StudentID: req.StudentID,
			Score:     req.Score,
			Grade:     grade,
			Remark:    req.Remark,
		}
		if err := scopedDB(c).Create(&result).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "录入成绩失败",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "成绩已保存",
		"data":    result,
	})
}

// letterGrade 按得分率折算等级
func letterGrade(score float64, maxScore int) string {
	if maxScore <= 0 {
		return ""
	}
	ratio := score / float64(maxScore)
	switch {
	case ratio >= 0.9:
		return "A"
	case ratio >= 0.8:
		return "B"
	case ratio >= 0.7:
		return "C"
	case ratio >= 0.6:
		return "D"
	default:
		return "F"
	}
}
