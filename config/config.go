package config

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/mpesa"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
	}, nil
}

// LoadMpesaConfig reads the Daraja settings. The environment selector
// picks the sandbox or production base URL.
func LoadMpesaConfig() (mpesa.Config, error) {
	baseURL := "https://sandbox.safaricom.co.ke"
	if os.Getenv("MPESA_ENVIRONMENT") == "production" {
		baseURL = "https://api.safaricom.co.ke"
	}

	cfg := mpesa.Config{
		BaseURL:        baseURL,
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.Shortcode == "" || cfg.Passkey == "" || cfg.CallbackURL == "" {
		return cfg, fmt.Errorf("missing M-Pesa configuration")
	}
	return cfg, nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := enableUUIDExtension(db); err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&models.User{}, &models.Plan{}, &models.Payment{}, &models.Session{}, &models.SystemConfig{})
	if err != nil {
		return nil, err
	}

	seedAdmin(db)
	seedPlans(db)
	seedSystemConfig(db)

	return db, nil
}

func seedAdmin(db *gorm.DB) {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@collospot.com"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	var existing models.User
	if result := db.Where("email = ?", email).First(&existing); result.Error == nil {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	db.Create(&models.User{
		Email:     email,
		Phone:     "+254700000000",
		Password:  string(hashed),
		FirstName: "System",
		LastName:  "Administrator",
		Role:      models.RoleSuperAdmin,
	})
}

func seedPlans(db *gorm.DB) {
	plans := []models.Plan{
		{Name: "Basic 1 Hour", Description: "Perfect for quick browsing and social media", Price: 20, Duration: 1, DataLimit: "500MB", SpeedLimit: "5Mbps", IsActive: true},
		{Name: "Standard 6 Hours", Description: "Great for work and entertainment", Price: 100, Duration: 6, DataLimit: "2GB", SpeedLimit: "10Mbps", IsActive: true},
		{Name: "Premium 24 Hours", Description: "Full day unlimited browsing", Price: 300, Duration: 24, DataLimit: "10GB", SpeedLimit: "20Mbps", IsActive: true},
		{Name: "Weekly Package", Description: "Best value for extended use", Price: 1500, Duration: 168, DataLimit: "50GB", SpeedLimit: "25Mbps", IsActive: true},
		{Name: "Monthly Unlimited", Description: "Unlimited internet for a full month", Price: 5000, Duration: 720, DataLimit: "Unlimited", SpeedLimit: "50Mbps", IsActive: true},
	}

	for _, plan := range plans {
		var existing models.Plan
		result := db.Where("name = ?", plan.Name).First(&existing)
		if result.Error != nil {
			db.Create(&plan)
		}
	}
}

func seedSystemConfig(db *gorm.DB) {
	configs := []models.SystemConfig{
		{Key: "SYSTEM_NAME", Value: "COLLOSPOT"},
		{Key: "SYSTEM_TAGLINE", Value: "Connect. Pay. Browse — Seamlessly."},
		{Key: "COMPANY_NAME", Value: "COLLOSPOT WiFi Solutions"},
		{Key: "SUPPORT_PHONE", Value: "+254700000000"},
		{Key: "SUPPORT_EMAIL", Value: "support@collospot.com"},
		{Key: "FREE_TRIAL_MINUTES", Value: "15"},
		{Key: "SESSION_WARNING_MINUTES", Value: "10"},
	}

	for _, config := range configs {
		var existing models.SystemConfig
		result := db.Where("key = ?", config.Key).First(&existing)
		if result.Error != nil {
			db.Create(&config)
		}
	}
}
