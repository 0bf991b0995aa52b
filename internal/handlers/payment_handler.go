package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/helpers"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/logger"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/middleware"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/mpesa"
)

type PaymentRequest struct {
	PlanID uuid.UUID `json:"plan_id" binding:"required"`
	Phone  string    `json:"phone"`
}

// InitiatePayment starts the STK push purchase flow: the gateway
// prompts the payer's phone and the payment row waits in PENDING for
// the asynchronous callback.
func InitiatePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID type.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	client := middleware.GetMpesaClient(c)
	if client == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Payment gateway not configured.")
		return
	}

	var plan models.Plan
	if err := gormDB.Where("id = ? AND is_active = ?", req.PlanID, true).First(&plan).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Plan not found.")
		return
	}

	var user models.User
	if err := gormDB.First(&user, userUUID).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
		return
	}

	phone := req.Phone
	if phone == "" {
		phone = user.Phone
	}
	phone = mpesa.FormatPhoneNumber(phone)

	resp, err := client.InitiateSTKPush(c.Request.Context(), mpesa.STKPushRequest{
		Phone:            phone,
		Amount:           plan.Price,
		AccountReference: fmt.Sprintf("COLLOSPOT-%s", plan.Name),
		TransactionDesc:  fmt.Sprintf("WiFi access: %s", plan.Name),
	})
	if err != nil {
		logger.Error("stk push initiation failed",
			zap.String("user_id", userUUID.String()),
			zap.String("plan_id", plan.ID.String()),
			zap.Error(err))
		helpers.RespondWithError(c, http.StatusBadGateway, "Could not start M-Pesa payment. Please try again.")
		return
	}

	payment := models.Payment{
		Amount:            plan.Price,
		Phone:             phone,
		Status:            models.PaymentPending,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		UserID:            userUUID,
		PlanID:            plan.ID,
	}
	if err := gormDB.Create(&payment).Error; err != nil {
		logger.Error("failed to persist initiated payment",
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.Error(err))
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to record payment.")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":             resp.CustomerMessage,
		"payment_id":          payment.ID,
		"checkout_request_id": payment.CheckoutRequestID,
	})
}

// MpesaCallback receives the gateway's asynchronous STK push result.
// It always acknowledges with 200: the gateway does not usefully retry
// on error responses, and re-delivered callbacks are no-ops anyway.
func MpesaCallback(c *gin.Context) {
	ack := gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

	db, exists := c.Get("db")
	if !exists {
		c.JSON(http.StatusOK, ack)
		return
	}
	gormDB := db.(*gorm.DB)

	var payload mpesa.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		logger.Warn("malformed mpesa callback", zap.Error(err))
		c.JSON(http.StatusOK, ack)
		return
	}

	reconciler := mpesa.NewReconciler(mpesa.NewGormStore(gormDB))
	outcome, err := reconciler.Process(c.Request.Context(), &payload)
	if err != nil {
		logger.Error("mpesa callback reconciliation failed",
			zap.String("checkout_request_id", payload.Body.STKCallback.CheckoutRequestID),
			zap.Error(err))
	} else {
		logger.Info("mpesa callback processed",
			zap.String("checkout_request_id", payload.Body.STKCallback.CheckoutRequestID),
			zap.String("outcome", outcome.String()))
	}

	c.JSON(http.StatusOK, ack)
}

func ListPayments(c *gin.Context) {
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

	query := gormDB.Model(&models.Payment{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var totalCount int64
	query.Count(&totalCount)

	var payments []models.Payment
	offset := (pageNum - 1) * limitNum
	if err := query.Preload("User").Preload("Plan").Offset(offset).Limit(limitNum).Order("created_at DESC").Find(&payments).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving payments.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments":    payments,
		"total":       totalCount,
		"page":        pageNum,
		"limit":       limitNum,
		"total_pages": (totalCount + int64(limitNum) - 1) / int64(limitNum),
	})
}

// GetPaymentStatus returns the payment's current state. For payments
// still PENDING it polls the gateway first, so a missed callback does
// not strand the purchase until the reconciliation sweep runs.
func GetPaymentStatus(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var payment models.Payment
	if err := gormDB.Where("id = ?", c.Param("id")).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Payment not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving payment.")
		return
	}

	userID, _ := c.Get("user_id")
	role, _ := c.Get("role")
	if payment.UserID != userID && role != models.RoleAdmin && role != models.RoleSuperAdmin {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to view this payment.")
		return
	}

	if payment.Status == models.PaymentPending {
		if client := middleware.GetMpesaClient(c); client != nil {
			if status, err := client.QuerySTKStatus(c.Request.Context(), payment.CheckoutRequestID); err == nil {
				if code, convErr := strconv.Atoi(status.ResultCode); convErr == nil {
					reconciler := mpesa.NewReconciler(mpesa.NewGormStore(gormDB))
					if _, applyErr := reconciler.Apply(c.Request.Context(), payment.CheckoutRequestID, code, nil); applyErr != nil {
						logger.Error("status query reconciliation failed",
							zap.String("checkout_request_id", payment.CheckoutRequestID),
							zap.Error(applyErr))
					}
					gormDB.Where("id = ?", payment.ID).First(&payment)
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":           payment.ID,
		"status":               payment.Status,
		"amount":               payment.Amount,
		"mpesa_receipt_number": payment.MpesaReceiptNumber,
		"checkout_request_id":  payment.CheckoutRequestID,
	})
}
