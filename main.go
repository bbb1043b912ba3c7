package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rentease/cache"
	"rentease/config"
	"rentease/controllers"
	"rentease/database"
	"rentease/gateway"
	"rentease/routes"
	"rentease/scheduler"
	"rentease/services"
)

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(config.AppConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// setup loads configuration and opens the database
func setup() (*logrus.Logger, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}
	if err := config.InitConfig(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger()

	if err := database.InitDB(log); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return log, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and seed the default admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := setup()
			if err != nil {
				return err
			}
			defer database.CloseDB()

			if err := database.RunMigrations(log); err != nil {
				return err
			}
			return database.SeedDefaultAdmin(database.DB, config.AppConfig, log)
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			skipMigrate, _ := cmd.Flags().GetBool("skip-migrate")
			return serve(skipMigrate)
		},
	}
	cmd.Flags().Bool("skip-migrate", false, "do not run migrations on startup")
	return cmd
}

func serve(skipMigrate bool) error {
	log, err := setup()
	if err != nil {
		return err
	}
	defer database.CloseDB()
	cfg := config.AppConfig

	if !skipMigrate {
		if err := database.RunMigrations(log); err != nil {
			return err
		}
		if err := database.SeedDefaultAdmin(database.DB, cfg, log); err != nil {
			return err
		}
	}

	opts := services.Options{
		Logger:             log,
		PlatformFeePercent: cfg.PlatformFeePercent,
		CommissionPercent:  cfg.CommissionPercent,
	}
	var gatewayKey string
	if cfg.PaymentsEnabled() {
		rp := gateway.NewRazorpay(cfg.RazorpayKey, cfg.RazorpaySecret)
		opts.Gateway = rp
		gatewayKey = rp.KeyID()
	} else {
		log.Warn("RAZORPAY_KEY not set, gateway orders and refunds are disabled")
	}
	if cfg.RedisAddr != "" {
		counters, err := cache.NewRedisCounters(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer counters.Close()
		opts.Counters = counters
	}

	svc := services.New(database.DB, opts)

	jobs := scheduler.NewScheduler(svc.Analytics, log, cfg.AnalyticsFlushInterval)
	jobs.Start()
	defer jobs.Stop()

	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS settings
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	routes.SetupRoutes(r, controllers.NewHandler(svc, log, gatewayKey))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "rentease",
		Short: "Rental marketplace API",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
