package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/helpers"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

// connectQRData encodes the captive-portal handoff for a session. The
// HMAC keeps a portal device from accepting tokens minted outside this
// system.
func connectQRData(session *models.Session) string {
	secretKey := os.Getenv("JWT_SECRET")
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(session.ID.String() + ":" + session.SessionToken))
	signature := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("session:%s;token:%s;signature:%s",
		session.ID.String(),
		session.SessionToken,
		signature,
	)
}

func ListSessions(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	pageNum, err := helpers.StringToInt(c.DefaultQuery("page", "1"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid page number.")
		return
	}
	limitNum, err := helpers.StringToInt(c.DefaultQuery("limit", "10"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid limit.")
		return
	}

	query := gormDB.Model(&models.Session{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var totalCount int64
	query.Count(&totalCount)

	var sessions []models.Session
	offset := (pageNum - 1) * limitNum
	if err := query.Preload("User").Preload("Plan").Offset(offset).Limit(limitNum).Order("created_at DESC").Find(&sessions).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving sessions.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":    sessions,
		"total":       totalCount,
		"page":        pageNum,
		"limit":       limitNum,
		"total_pages": (totalCount + int64(limitNum) - 1) / int64(limitNum),
	})
}

func GetSession(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var session models.Session
	if err := gormDB.Preload("User").Preload("Plan").Where("id = ?", c.Param("id")).First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Session not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving session.")
		return
	}

	c.JSON(http.StatusOK, session)
}

// TerminateSession ends a session administratively before its end
// time. Only ACTIVE sessions can be terminated.
func TerminateSession(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	result := gormDB.Model(&models.Session{}).
		Where("id = ? AND status = ?", c.Param("id"), models.SessionActive).
		Updates(map[string]interface{}{"status": models.SessionTerminated, "end_time": time.Now()})
	if result.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to terminate session.")
		return
	}
	if result.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "Active session not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session terminated successfully."})
}

// SessionQR serves a PNG QR code a customer scans at the portal to
// attach their device to a paid session.
func SessionQR(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User not authenticated.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var session models.Session
	if err := gormDB.Where("id = ?", c.Param("id")).First(&session).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Session not found.")
		return
	}

	if session.UserID != userID {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to view this session.")
		return
	}

	if session.Status != models.SessionActive {
		helpers.RespondWithError(c, http.StatusForbidden, "Session is no longer active.")
		return
	}

	qrImage, err := qrcode.Encode(connectQRData(&session), qrcode.Medium, 256)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate QR code.")
		return
	}

	c.Data(http.StatusOK, "image/png", qrImage)
}
