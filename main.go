package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"course-checkout/config"
	"course-checkout/database"
	adminapi "course-checkout/internal/api/admin"
	ordersapi "course-checkout/internal/api/orders"
	paymentsapi "course-checkout/internal/api/payments"
	"course-checkout/internal/api/paymentwebhook"
	routes "course-checkout/internal/app/http"
	"course-checkout/internal/app/http/middleware"
	"course-checkout/internal/infra/cache"
	"course-checkout/internal/infra/events"
	"course-checkout/internal/infra/gateway"
	"course-checkout/internal/infra/identity"
	"course-checkout/internal/infra/stripe"
	"course-checkout/internal/service"
	"course-checkout/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}
	st := store.NewGorm(db)

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			log.Fatal(err)
		}
		defer amqpPub.Close()
		publisher = amqpPub
	}

	gw := gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	orderOpts := []service.OrderServiceOption{
		service.WithCurrency(cfg.PaymentCurrency),
		service.WithMinAmountMinor(cfg.PaymentMinAmountMinor),
	}
	var invalidator service.CacheInvalidator
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis %s unreachable, course cache will fall through: %v", cfg.RedisAddr, err)
		}
		courseCache := cache.NewCourseCache(st, rdb, cfg.CourseCacheTTL)
		orderOpts = append(orderOpts, service.WithCourseFinder(courseCache))
		invalidator = courseCache
	}

	var catalog service.PriceCatalog
	if cfg.StripeSecretKey != "" {
		catalog = stripe.NewCatalog(cfg.StripeSecretKey)
	}

	reconciler := service.NewReconciler(st, publisher)
	paymentVerifier := service.NewPaymentVerifier(st, reconciler, gw, cfg.RazorpayKeySecret, cfg.GatewayFetchTimeout)

	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Store:        st,
		Verifier:     verifier,
		Orders:       ordersapi.NewHandler(service.NewOrderService(st, gw, orderOpts...)),
		Payments:     paymentsapi.NewHandler(paymentVerifier),
		Webhooks:     paymentwebhook.NewHandler(service.NewWebhookProcessor(st, reconciler, cfg.RazorpayWebhookSecret), cfg.WebhookMaxBytes),
		Admin:        adminapi.NewHandler(st, paymentVerifier, service.NewCatalogSync(catalog, st, invalidator), reconciler),
		Limiter:      middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		MaxJSONBytes: cfg.JSONMaxBytes,
	})

	go service.NewRepairWorker(reconciler, cfg.RepairInterval, cfg.RepairBatch).Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("listening on :%s", cfg.Port)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func buildVerifier(ctx context.Context, cfg *config.Config) (identity.Verifier, error) {
	var chain identity.Chain
	if cfg.JWTSecret != "" {
		chain = append(chain, identity.NewJWTVerifier(cfg.JWTSecret))
	}
	if cfg.OIDCIssuer != "" {
		v, err := identity.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCAudience)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	return chain, nil
}
