package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multiproduct/config"
	adminController "multiproduct/controllers/admin"
	authController "multiproduct/controllers/auth"
	notificationController "multiproduct/controllers/notification"
	subscriptionController "multiproduct/controllers/subscription"
	userProfileController "multiproduct/controllers/userControllers"
	"multiproduct/database"
	"multiproduct/middleware"
	"multiproduct/queue"
	adminRoutes "multiproduct/routers/adminRoutes"
	authRoutes "multiproduct/routers/authRoutes"
	notificationRoutes "multiproduct/routers/notificationRoutes"
	subscriptionRoutes "multiproduct/routers/subscriptionRoutes"
	userProfileRoutes "multiproduct/routers/userRoutes"
	"multiproduct/scheduler"
	"multiproduct/services/notification"
	"multiproduct/services/otp"
	"multiproduct/services/payment"
	"multiproduct/services/subscription"
	"multiproduct/tasks"
	"multiproduct/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.LoadConfig()
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slogger)

	db := database.ConnectDb(cfg)
	notifications := notification.NewService(db)

	// Jobs run in-process unless a broker is configured, in which case
	// cmd/worker consumes them.
	var (
		dispatcher queue.Dispatcher
		pool       *queue.Pool
	)
	if cfg.QueueDriver == "amqp" {
		publisher, err := queue.NewPublisher(cfg.AMQPURL, slogger)
		if err != nil {
			log.Fatalf("Failed to connect to the job broker: %v", err)
		}
		defer publisher.Close()
		dispatcher = publisher
	} else {
		registry := queue.NewRegistry()
		tasks.NewRunner(utils.NewMailer(cfg), utils.NewSMSSender(cfg), notifications, cfg.FrontendURL, slogger).Register(registry)
		pool = queue.NewPool(registry, cfg.QueueWorkers, queue.WithLogger(slogger))
		pool.Start()
		dispatcher = pool
	}

	otps := otp.NewService(db, dispatcher, otp.WithLogger(slogger))
	subs := subscription.NewService(db, payment.NewStubGateway(cfg.PaymentStubSucceeds), dispatcher, subscription.WithLogger(slogger))
	tokens := middleware.NewTokens(cfg.JWTKey, time.Duration(cfg.JWTTTLHours)*time.Hour)

	sched := scheduler.NewScheduler(scheduler.NewJobs(otps, subs, slogger), slogger, scheduler.Schedules{
		OTPCleanup:        cfg.OTPCleanupSchedule,
		SubscriptionSweep: cfg.SubscriptionSweepSchedule,
		ExpiryReminders:   cfg.ExpiryReminderSchedule,
	})
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	app := fiber.New()

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
		AllowHeaders: "Content-Type,Authorization",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))
	app.Use(middleware.SanitizeInput())

	authRoutes.SetupAuthRoutes(app, authController.NewHandler(db, otps, tokens, dispatcher, cfg.SaltRound, cfg.FrontendURL, slogger), tokens)
	subscriptionRoutes.SetupSubscriptionRoutes(app, subscriptionController.NewHandler(subs, slogger), tokens, db)
	notificationRoutes.SetupNotificationRoutes(app, notificationController.NewHandler(notifications, slogger), tokens, db)
	userProfileRoutes.SetupUserRoutes(app, userProfileController.NewHandler(db, slogger), tokens)
	adminRoutes.SetupAdminRoutes(app, adminController.NewHandler(subs, otps, slogger), tokens, db)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("Server stopped: %v", err)
	}

	<-sched.Stop().Done()
	if pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := pool.Stop(ctx); err != nil {
			log.Printf("Job pool did not drain: %v", err)
		}
	}
}
