package server

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/config"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/handlers"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/middleware"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/mpesa"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/services"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	mpesaCfg, err := config.LoadMpesaConfig()
	if err != nil {
		return fmt.Errorf("failed to load mpesa config: %v", err)
	}
	mpesaClient := mpesa.NewClient(mpesaCfg)

	if err := startSweeps(db, mpesaClient); err != nil {
		return fmt.Errorf("failed to schedule sweeps: %v", err)
	}

	r := gin.Default()

	setupRoutes(r, db, mpesaClient)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

func startSweeps(db *gorm.DB, client *mpesa.Client) error {
	store := services.NewGormSweepStore(db)
	reconciler := mpesa.NewReconciler(mpesa.NewGormStore(db))

	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() { services.ExpireSessions(store) }); err != nil {
		return err
	}
	if _, err := c.AddFunc("@every 2m", func() { services.ReconcilePendingPayments(store, client, reconciler) }); err != nil {
		return err
	}
	c.Start()
	return nil
}

func setupRoutes(r *gin.Engine, db *gorm.DB, mpesaClient *mpesa.Client) {
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.MpesaMiddleware(mpesaClient))

	public := r.Group("/v1")
	{
		public.POST("/register", handlers.Register)
		public.POST("/login", handlers.Login)
		public.POST("/payments/callback", handlers.MpesaCallback)

		planPublic := public.Group("/plans")
		{
			planPublic.GET("", handlers.ListPlans)
			planPublic.GET("/:id", handlers.GetPlan)
		}
	}

	protected := r.Group("/v1")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		protected.GET("/profile", handlers.GetProfile)
		protected.POST("/payments", handlers.InitiatePayment)
		protected.GET("/payments/:id/status", handlers.GetPaymentStatus)
		protected.GET("/sessions/:id/qr", handlers.SessionQR)
	}

	admin := r.Group("/v1/admin")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.AdminRequired())
	{
		admin.GET("/dashboard", handlers.GetOverview)

		userAdmin := admin.Group("/users")
		{
			userAdmin.GET("", handlers.ListUsers)
			userAdmin.GET("/:id", handlers.GetUser)
			userAdmin.PUT("/:id", handlers.UpdateUser)
			userAdmin.DELETE("/:id", handlers.DeleteUser)
		}

		planAdmin := admin.Group("/plans")
		{
			planAdmin.POST("", handlers.CreatePlan)
			planAdmin.PUT("/:id", handlers.UpdatePlan)
			planAdmin.DELETE("/:id", handlers.DeletePlan)
		}

		sessionAdmin := admin.Group("/sessions")
		{
			sessionAdmin.GET("", handlers.ListSessions)
			sessionAdmin.GET("/:id", handlers.GetSession)
			sessionAdmin.POST("/:id/terminate", handlers.TerminateSession)
		}

		admin.GET("/payments", handlers.ListPayments)
	}
}
