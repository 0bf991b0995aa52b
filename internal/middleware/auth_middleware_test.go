package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

func signToken(t *testing.T, secret, role string, userID uuid.UUID) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTAuthMiddleware(), func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID.(uuid.UUID).String()})
	})
	r.GET("/admin", JWTAuthMiddleware(), AdminRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	r := testRouter()
	userID := uuid.New()

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "/protected", "Bearer " + signToken(t, "test-secret", models.RoleUser, userID), http.StatusOK},
		{"missing header", "/protected", "", http.StatusUnauthorized},
		{"not bearer", "/protected", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "/protected", "Bearer " + signToken(t, "other-secret", models.RoleUser, userID), http.StatusUnauthorized},
		{"user hitting admin route", "/admin", "Bearer " + signToken(t, "test-secret", models.RoleUser, userID), http.StatusForbidden},
		{"admin hitting admin route", "/admin", "Bearer " + signToken(t, "test-secret", models.RoleAdmin, userID), http.StatusOK},
		{"super admin hitting admin route", "/admin", "Bearer " + signToken(t, "test-secret", models.RoleSuperAdmin, userID), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
