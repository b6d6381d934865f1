package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school-manager/config"
	"school-manager/tenant"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.GetConfig().JWTSecret))
	require.NoError(t, err)
	return signed
}

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/probe", AuthMiddleware(), func(c *gin.Context) {
		tc, ok := tenant.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"has_tenant":  ok,
			"school_id":   tc.SchoolID,
			"super_admin": tc.SuperAdmin,
		})
	})
	return r
}

func TestAuthRejectsMissingToken(t *testing.T) {
	r := authTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	r := authTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "not-a-bearer-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	r := authTestRouter()

	token := signToken(t, jwt.MapClaims{
		"user_id":   float64(1),
		"role":      "admin",
		"school_id": "sch-1",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsSchoolUserWithoutSchool(t *testing.T) {
	r := authTestRouter()

	// 普通角色必须绑定学校，不允许无租户放行
	token := signToken(t, jwt.MapClaims{
		"user_id": float64(1),
		"role":    "teacher",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthSeedsTenantContext(t *testing.T) {
	r := authTestRouter()

	token := signToken(t, jwt.MapClaims{
		"user_id":   float64(7),
		"username":  "teacher1",
		"role":      "teacher",
		"school_id": "sch-1",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_tenant":true`)
	assert.Contains(t, w.Body.String(), `"school_id":"sch-1"`)
	assert.Contains(t, w.Body.String(), `"super_admin":false`)
}

func TestAuthAllowsSuperAdminWithoutSchool(t *testing.T) {
	r := authTestRouter()

	token := signToken(t, jwt.MapClaims{
		"user_id":  float64(1),
		"username": "root",
		"role":     "superadmin",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"super_admin":true`)
}

func TestSuperAdminRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin-only", AuthMiddleware(), SuperAdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token := signToken(t, jwt.MapClaims{
		"user_id":   float64(2),
		"role":      "admin",
		"school_id": "sch-1",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
