package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Port        string `mapstructure:"PORT"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	DBDriver   string `mapstructure:"DB_DRIVER"` // postgres, mysql or sqlite
	DBDSN      string `mapstructure:"DB_DSN"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBPort     string `mapstructure:"DB_PORT"`

	JWTKey      string `mapstructure:"JWT_SECRET_KEY"`
	JWTTTLHours int    `mapstructure:"JWT_TTL_HOURS"`
	SaltRound   int    `mapstructure:"SALT_ROUND"`

	EmailProvider  string `mapstructure:"EMAIL_PROVIDER"` // smtp or sendgrid
	SMTPHost       string `mapstructure:"SMTP_HOST"`
	SMTPPort       string `mapstructure:"SMTP_PORT"`
	EmailSender    string `mapstructure:"EMAIL_SENDER"`
	EmailFromName  string `mapstructure:"EMAIL_FROM_NAME"`
	Password       string `mapstructure:"PASSWORD"` // SMTP Password
	SendGridAPIKey string `mapstructure:"SENDGRID_API_KEY"`

	SMSApiURL   string `mapstructure:"SMS_API_URL"`
	SMSApiKey   string `mapstructure:"SMS_API_KEY"`
	SMSSenderID string `mapstructure:"SMS_SENDER_ID"`

	QueueDriver  string `mapstructure:"QUEUE_DRIVER"` // memory or amqp
	AMQPURL      string `mapstructure:"AMQP_URL"`
	QueueWorkers int    `mapstructure:"QUEUE_WORKERS"`

	PaymentStubSucceeds bool `mapstructure:"PAYMENT_STUB_SUCCEEDS"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
	AdminPhone    string `mapstructure:"ADMIN_PHONE"`

	OTPCleanupSchedule        string `mapstructure:"OTP_CLEANUP_SCHEDULE"`
	SubscriptionSweepSchedule string `mapstructure:"SUBSCRIPTION_SWEEP_SCHEDULE"`
	ExpiryReminderSchedule    string `mapstructure:"EXPIRY_REMINDER_SCHEDULE"`
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

var keys = []string{
	"PORT", "CORS_ORIGINS", "FRONTEND_URL",
	"DB_DRIVER", "DB_DSN", "DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_PORT",
	"JWT_SECRET_KEY", "JWT_TTL_HOURS", "SALT_ROUND",
	"EMAIL_PROVIDER", "SMTP_HOST", "SMTP_PORT", "EMAIL_SENDER", "EMAIL_FROM_NAME", "PASSWORD", "SENDGRID_API_KEY",
	"SMS_API_URL", "SMS_API_KEY", "SMS_SENDER_ID",
	"QUEUE_DRIVER", "AMQP_URL", "QUEUE_WORKERS",
	"PAYMENT_STUB_SUCCEEDS",
	"ADMIN_EMAIL", "ADMIN_PASSWORD", "ADMIN_PHONE",
	"OTP_CLEANUP_SCHEDULE", "SUBSCRIPTION_SWEEP_SCHEDULE", "EXPIRY_REMINDER_SCHEDULE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_NAME", "multiproduct")
	v.SetDefault("DB_PORT", "5432")

	v.SetDefault("JWT_SECRET_KEY", "defaultSecret")
	v.SetDefault("JWT_TTL_HOURS", 24)
	v.SetDefault("SALT_ROUND", 10)

	v.SetDefault("EMAIL_PROVIDER", "smtp")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("EMAIL_FROM_NAME", "MultiProduct")

	v.SetDefault("QUEUE_DRIVER", "memory")
	v.SetDefault("QUEUE_WORKERS", 4)

	v.SetDefault("PAYMENT_STUB_SUCCEEDS", true)

	v.SetDefault("OTP_CLEANUP_SCHEDULE", "0 * * * *")         // hourly
	v.SetDefault("SUBSCRIPTION_SWEEP_SCHEDULE", "10 0 * * *") // 00:10 daily
	v.SetDefault("EXPIRY_REMINDER_SCHEDULE", "0 9 * * *")     // 09:00 daily
}

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.EmailProvider = strings.ToLower(cfg.EmailProvider)
	cfg.QueueDriver = strings.ToLower(cfg.QueueDriver)

	if cfg.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if cfg.QueueDriver == "amqp" && cfg.AMQPURL == "" {
		return nil, fmt.Errorf("config: AMQP_URL is required when QUEUE_DRIVER=amqp")
	}
	return &cfg, nil
}

// LoadConfig initializes AppConfig and aborts the process on failure.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	AppConfig = cfg
	return cfg
}

// DSN builds the connection string for the configured driver unless DB_DSN is set.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	case "sqlite":
		return c.DBName + ".db"
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
	}
}
