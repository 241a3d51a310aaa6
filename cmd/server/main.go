package main

import (
	"log"
	"net/http"

	"umari-core/internal/config"
	"umari-core/internal/db"
	"umari-core/internal/httpapi"
	"umari-core/internal/logger"
	"umari-core/internal/middleware"
	"umari-core/internal/notify"
	"umari-core/internal/order"
	"umari-core/internal/payment"
	"umari-core/internal/payment/webhook"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	notifier := notify.NewDispatcher(notify.LogSender{})

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, gateway, notifier)

	handler := httpapi.NewHandler(orderSvc)
	webhookHandler := webhook.NewWebhookHandler(orderSvc, gateway)

	router := httpapi.NewRouter(handler, webhookHandler, []byte(cfg.JWTSecret), middleware.NewMemoryLimiterStore())

	log.Printf("server running at http://localhost:%s/", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, router))
}
