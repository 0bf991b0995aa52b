package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/helpers"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

type PlanRequest struct {
	Name        string  `json:"name" binding:"required,min=2"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Duration    int     `json:"duration" binding:"required,gt=0"`
	DataLimit   string  `json:"data_limit"`
	SpeedLimit  string  `json:"speed_limit"`
	IsActive    *bool   `json:"is_active"`
}

func CreatePlan(c *gin.Context) {
	var req PlanRequest
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

	plan := models.Plan{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Duration:    req.Duration,
		DataLimit:   req.DataLimit,
		SpeedLimit:  req.SpeedLimit,
		IsActive:    true,
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	if err := gormDB.Create(&plan).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create plan.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Plan created successfully.",
		"plan":    plan,
	})
}

func ListPlans(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	query := gormDB.Model(&models.Plan{})
	if c.DefaultQuery("include_inactive", "false") != "true" {
		query = query.Where("is_active = ?", true)
	}

	var plans []models.Plan
	if err := query.Order("price ASC").Find(&plans).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving plans.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func GetPlan(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var plan models.Plan
	if err := gormDB.Where("id = ?", c.Param("id")).First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Plan not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving plan.")
		return
	}

	c.JSON(http.StatusOK, plan)
}

func UpdatePlan(c *gin.Context) {
	var req PlanRequest
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

	var plan models.Plan
	if err := gormDB.Where("id = ?", c.Param("id")).First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Plan not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding plan.")
		return
	}

	plan.Name = req.Name
	plan.Description = req.Description
	plan.Price = req.Price
	plan.Duration = req.Duration
	plan.DataLimit = req.DataLimit
	plan.SpeedLimit = req.SpeedLimit
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	if err := gormDB.Save(&plan).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update plan.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Plan updated successfully.",
		"plan":    plan,
	})
}

func DeletePlan(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	result := gormDB.Where("id = ?", c.Param("id")).Delete(&models.Plan{})
	if result.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete plan.")
		return
	}
	if result.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "Plan not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Plan deleted successfully."})
}
