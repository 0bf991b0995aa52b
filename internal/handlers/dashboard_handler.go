package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/helpers"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

// startOfDay returns midnight of t's calendar day in t's location, so
// "today's revenue" rolls over at local midnight rather than UTC.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// GetOverview aggregates the numbers the admin dashboard's landing
// view shows.
func GetOverview(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var totalUsers, activeSessions, pendingPayments int64
	gormDB.Model(&models.User{}).Count(&totalUsers)
	gormDB.Model(&models.Session{}).Where("status = ?", models.SessionActive).Count(&activeSessions)
	gormDB.Model(&models.Payment{}).Where("status = ?", models.PaymentPending).Count(&pendingPayments)

	var totalRevenue, todayRevenue float64
	gormDB.Model(&models.Payment{}).
		Where("status = ?", models.PaymentCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalRevenue)

	gormDB.Model(&models.Payment{}).
		Where("status = ? AND created_at >= ?", models.PaymentCompleted, startOfDay(time.Now())).
		Select("COALESCE(SUM(amount), 0)").Scan(&todayRevenue)

	var recentPayments []models.Payment
	gormDB.Preload("User").Preload("Plan").
		Order("created_at DESC").Limit(10).Find(&recentPayments)

	c.JSON(http.StatusOK, gin.H{
		"total_users":      totalUsers,
		"active_sessions":  activeSessions,
		"pending_payments": pendingPayments,
		"total_revenue":    totalRevenue,
		"today_revenue":    todayRevenue,
		"recent_payments":  recentPayments,
	})
}
