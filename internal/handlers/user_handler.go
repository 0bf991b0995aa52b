package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/helpers"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

type UserUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role" binding:"omitempty,oneof=USER ADMIN SUPER_ADMIN"`
	IsActive  *bool   `json:"is_active"`
}

func ListUsers(c *gin.Context) {
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

	query := gormDB.Model(&models.User{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email ILIKE ? OR phone ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?", like, like, like, like)
	}

	var totalCount int64
	query.Count(&totalCount)

	var users []models.User
	offset := (pageNum - 1) * limitNum
	if err := query.Offset(offset).Limit(limitNum).Order("created_at DESC").Find(&users).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving users.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":       users,
		"total":       totalCount,
		"page":        pageNum,
		"limit":       limitNum,
		"total_pages": (totalCount + int64(limitNum) - 1) / int64(limitNum),
	})
}

func GetUser(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var user models.User
	if err := gormDB.Preload("Payments").Preload("Sessions").Where("id = ?", c.Param("id")).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving user.")
		return
	}

	c.JSON(http.StatusOK, user)
}

func UpdateUser(c *gin.Context) {
	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var user models.User
	if err := gormDB.Where("id = ?", c.Param("id")).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding user.")
		return
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := gormDB.Save(&user).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update user.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully.",
		"user":    user,
	})
}

func DeleteUser(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	result := gormDB.Where("id = ?", c.Param("id")).Delete(&models.User{})
	if result.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete user.")
		return
	}
	if result.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully."})
}
