package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nodorajosh/manilasbkoverdose/internal/config"
	"github.com/nodorajosh/manilasbkoverdose/internal/database"
	"github.com/nodorajosh/manilasbkoverdose/internal/handler"
	"github.com/nodorajosh/manilasbkoverdose/internal/middleware"
	"github.com/nodorajosh/manilasbkoverdose/internal/payment"
	"github.com/nodorajosh/manilasbkoverdose/internal/queue"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
	"github.com/nodorajosh/manilasbkoverdose/internal/router"
	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

func main() {
	// .env is optional; in containers the variables come from the runtime.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ticketRepo := repository.NewTicketRepo(db)
	discountRepo := repository.NewDiscountRepo(db)
	orderRepo := repository.NewOrderRepo(db)

	gateway := payment.NewPayPalClient(payment.PayPalConfig{
		ClientID:  cfg.PayPalClientID,
		Secret:    cfg.PayPalSecret,
		WebhookID: cfg.PayPalWebhookID,
		Live:      cfg.PayPalLive,
	})
	notifier := queue.NewPublisher()

	svc := service.NewCheckoutService(ticketRepo, discountRepo, orderRepo, gateway, notifier, cfg.AppBaseURL)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// The notification consumer shares the process: it drains the durable
	// queue, writes the order log and sends the emails.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e, router.Handlers{
		Checkout:      handler.NewCheckoutHandler(svc),
		Order:         handler.NewOrderHandler(svc, orderRepo),
		Ticket:        handler.NewTicketHandler(ticketRepo),
		Discount:      handler.NewDiscountHandler(discountRepo, ticketRepo),
		Webhook:       handler.NewWebhookHandler(svc, gateway),
		AdminOrder:    handler.NewAdminOrderHandler(svc, orderRepo),
		AdminTicket:   handler.NewAdminTicketHandler(ticketRepo),
		AdminDiscount: handler.NewAdminDiscountHandler(discountRepo),
	}, cfg.JWTSecret, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
