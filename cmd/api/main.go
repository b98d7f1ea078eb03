package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ledgerline/installment-service/internal/audit"
	"github.com/ledgerline/installment-service/internal/cache"
	"github.com/ledgerline/installment-service/internal/config"
	"github.com/ledgerline/installment-service/internal/handler"
	"github.com/ledgerline/installment-service/internal/integrations/rates"
	"github.com/ledgerline/installment-service/internal/middleware"
	"github.com/ledgerline/installment-service/internal/notify"
	"github.com/ledgerline/installment-service/internal/repository"
	"github.com/ledgerline/installment-service/internal/service"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	idem := cache.NewRedis(cfg.RedisAddr)
	ratesClient := rates.NewClient(cfg, logger)
	svc := service.NewService(repo, idem, ratesClient, logger, cfg)
	h := handler.NewHandler(svc)

	// Schedule the consistency sweep
	auditor := audit.NewAuditor(repo, notify.NewSender(cfg, logger), logger)
	if err := auditor.Start(cfg.AuditCron); err != nil {
		logger.Fatalf("Failed to schedule audit sweep: %v", err)
	}
	defer auditor.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.Auth(cfg))
	authRouter.HandleFunc("/plans", h.CreatePlan).Methods("POST")
	authRouter.HandleFunc("/plans/{id}", h.GetPlan).Methods("GET")
	authRouter.HandleFunc("/plans/{id}/recalculate", h.RecalculatePlan).Methods("POST")
	authRouter.HandleFunc("/plans/{id}/payments", h.CreatePayment).Methods("POST")
	authRouter.HandleFunc("/payments/{id}", h.GetPayment).Methods("GET")
	authRouter.HandleFunc("/payments/{id}", h.UpdatePayment).Methods("PUT")
	authRouter.HandleFunc("/payments/{id}", h.DeletePayment).Methods("DELETE")
	authRouter.HandleFunc("/transfers", h.CreateTransfer).Methods("POST")
	authRouter.HandleFunc("/transfers/{id}", h.DeleteTransfer).Methods("DELETE")
	authRouter.HandleFunc("/expenses", h.CreateExpense).Methods("POST")
	authRouter.HandleFunc("/expenses/{id}", h.DeleteExpense).Methods("DELETE")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
