package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"luxio/cache"
	"luxio/config"
	"luxio/consumers"
	"luxio/controllers"
	"luxio/database"
	"luxio/gateway"
	"luxio/models"
	"luxio/rabbitmq"
	"luxio/repository"

	"github.com/go-redis/redis/v8"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化数据库
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer db.Close()
	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Database schema setup failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis initialization failed: %v", err)
	}

	// 初始化RabbitMQ
	rmq, err := rabbitmq.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("RabbitMQ initialization failed: %v", err)
	}
	defer rmq.Close()

	// 设置队列和交换机
	if err := rmq.SetupQueues(); err != nil {
		log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := repository.NewUsers(db)
	products := repository.NewProducts(db)
	orders := repository.NewOrders(db)

	// 启动消息消费者
	consumerCh, err := rmq.Conn.Channel()
	if err != nil {
		log.Fatalf("Failed to open consumer channel: %v", err)
	}
	if err := consumers.NewOrderConsumer(orders, models.PaymentNowPayments).Start(ctx, consumerCh, cfg); err != nil {
		log.Fatalf("Failed to start order consumer: %v", err)
	}

	csrfTokens := cache.NewCSRFTokens(rdb, cfg.CSRFTTL)
	revocations := cache.NewRevocations(rdb)
	gateways := gateway.Registry{
		models.PaymentNowPayments: gateway.NewNowPayments(cfg.NowPaymentsURL, cfg.NowPaymentsAPIKey, nil),
		models.PaymentMaxelPay:    gateway.NewMaxelPay(cfg.MaxelPayURL, cfg.MaxelPayAPIKey, nil),
	}
	secureCookie := strings.HasPrefix(cfg.PublicBaseURL, "https://")

	router := controllers.NewRouter(controllers.Handlers{
		Auth:     controllers.NewAuthController(users, revocations, cfg.JWTSecret, cfg.TokenTTL, secureCookie),
		Products: controllers.NewProductController(products),
		Orders:   controllers.NewOrderController(orders, rmq),
		Payment: controllers.NewPaymentController(orders, products, gateways, rmq, controllers.PaymentSettings{
			PublicBaseURL:     cfg.PublicBaseURL,
			PaymentCheckDelay: cfg.PaymentCheckDelay,
			Bank:              models.BankDetails{Holder: cfg.BankHolder, IBAN: cfg.BankIBAN, BIC: cfg.BankBIC},
			NowPaymentsIPNKey: cfg.NowPaymentsIPNKey,
			NowPaymentsIPNURL: cfg.NowPaymentsIPNURL,
		}),
		CSRF: controllers.NewCSRFController(csrfTokens, secureCookie),
	}, controllers.RouterOptions{
		JWTSecret:       cfg.JWTSecret,
		Revocations:     revocations,
		CSRF:            csrfTokens,
		CORSOrigins:     cfg.CORSAllowOrigins,
		AdminAPIKey:     cfg.AdminAPIKey,
		DefaultLanguage: cfg.DefaultLanguage,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		log.Printf("Luxio API starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
