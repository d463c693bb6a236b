package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/gogetcash/backend/docs"
	"github.com/gogetcash/backend/internal/config"
	"github.com/gogetcash/backend/internal/database"
	"github.com/gogetcash/backend/internal/handlers"
	mW "github.com/gogetcash/backend/internal/middleware"
	"github.com/gogetcash/backend/internal/services"
)

// @title GoGetCash Backend API
// @version 1.0
// @description API for the GoGetCash micro-lending and GCash cash-in/cash-out ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "GoGetCash Backend API"
	docs.SwaggerInfo.Description = "API for the GoGetCash micro-lending and GCash cash-in/cash-out ledger"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	docStore := database.InitDocumentStore(redisClient)
	ledgerCfg := config.LoadLedgerConfig()

	ledgerService := services.NewLedgerService(docStore, ledgerCfg)
	authService := services.NewAuthService(docStore, redisClient)
	loanService := services.NewLoanService(ledgerService, docStore)
	cashflowService := services.NewCashflowService(ledgerService, docStore)
	accountService := services.NewAccountService(ledgerService, docStore)
	reportService := services.NewReportService(cashflowService, docStore)
	qrService := services.NewQRService(redisClient, ledgerCfg)
	qrHandler := handlers.NewQRHandler(qrService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			// Dashboard and balances
			r.Get("/account/summary", accountService.Summary)
			r.Post("/account/deposit", accountService.Deposit)

			// Loans
			r.Get("/loans", loanService.ListLoans)
			r.Post("/loans", loanService.CreateLoan)
			r.Get("/loans/{loanId}", loanService.GetLoan)
			r.Put("/loans/{loanId}", loanService.UpdateLoan)
			r.Delete("/loans/{loanId}", loanService.DeleteLoan)
			r.Post("/loans/{loanId}/additions", loanService.AddToLoan)
			r.Post("/loans/{loanId}/reductions", loanService.ReduceLoan)
			r.Post("/loans/{loanId}/paid", loanService.MarkLoanPaid)

			// Cash movements and history
			r.Get("/cashflow/in", cashflowService.ListCashIn)
			r.Post("/cashflow/in", cashflowService.RecordCashIn)
			r.Get("/cashflow/out", cashflowService.ListCashOut)
			r.Post("/cashflow/out", cashflowService.RecordCashOut)
			r.Get("/history", cashflowService.History)

			// Reports
			r.Get("/reports/daily", reportService.Daily)

			// Collection QR
			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
