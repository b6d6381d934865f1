package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"school-manager/config"
	"school-manager/tenant"
)

// AuthMiddleware JWT 认证中间件
// 认证通过后在请求 context 上建立租户上下文，后续所有数据访问都在该上下文内执行；
// 非超级管理员的令牌必须携带 school_id，否则直接拒绝（不做无租户的兜底放行）
func AuthMiddleware() gin.HandlerFunc {
	jwtSecret := []byte(config.GetConfig().JWTSecret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "未提供认证令牌",
			})
			c.Abort()
			return
		}

		// 提取 token
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "认证令牌格式错误",
			})
			c.Abort()
			return
		}

		tokenString := parts[1]

		// 解析 token
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtSecret, nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "认证令牌无效或已过期",
			})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "认证令牌无效或已过期",
			})
			c.Abort()
			return
		}

		role, _ := claims["role"].(string)
		schoolID, _ := claims["school_id"].(string)

		// 非超级管理员必须绑定学校
		if role != "superadmin" && schoolID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "令牌未绑定学校，禁止访问",
			})
			c.Abort()
			return
		}

		if userID, isFloat := claims["user_id"].(float64); isFloat {
			c.Set("user_id", uint(userID))
		}
		if username, isStr := claims["username"].(string); isStr {
			c.Set("username", username)
		}
		c.Set("role", role)
		c.Set("school_id", schoolID)

		// 建立租户上下文，随请求传递到数据访问层
		tc := tenant.Context{SchoolID: schoolID, SuperAdmin: role == "superadmin"}
		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))

		c.Next()
	}
}

// AdminRequired 学校管理员权限中间件（超级管理员同样放行）
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists || (role != "admin" && role != "superadmin") {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "需要管理员权限",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SuperAdminRequired 平台超级管理员权限中间件
func SuperAdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists || role != "superadmin" {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "需要平台超级管理员权限",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
