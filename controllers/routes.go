package controllers

import (
	"net/http"

	"luxio/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth     *AuthController
	Products *ProductController
	Orders   *OrderController
	Payment  *PaymentController
	CSRF     *CSRFController
}

type RouterOptions struct {
	JWTSecret   string
	Revocations middlewares.RevocationChecker
	CSRF        middlewares.CSRFValidator
	CORSOrigins []string
	AdminAPIKey string
	// DefaultLanguage applies when a request names no supported language.
	DefaultLanguage string
}

func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 应用Prometheus中间件
	r.Use(middlewares.PrometheusMiddleware())
	r.Use(middlewares.CORSMiddleware(opts.CORSOrigins))
	r.Use(middlewares.LanguageMiddleware(opts.DefaultLanguage))

	// 暴露Prometheus指标端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查端点
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 支付网关回调，依靠签名而不是CSRF令牌
	r.POST("/api/payment/nowpayments-ipn", h.Payment.NowPaymentsIPN)

	auth := middlewares.AuthMiddleware(opts.JWTSecret, opts.Revocations)

	api := r.Group("/api")
	api.Use(middlewares.CSRFMiddleware(opts.CSRF))
	{
		api.GET("/csrf-token", h.CSRF.Token)
		api.GET("/products", h.Products.List)
		api.GET("/products/:id", h.Products.Get)

		api.POST("/auth/signup", h.Auth.Signup)
		api.POST("/auth/login", h.Auth.Login)
	}

	// 需要认证的路由组
	authGroup := api.Group("", auth)
	{
		authGroup.POST("/auth/logout", h.Auth.Logout)
		authGroup.GET("/auth/me", h.Auth.Me)
		authGroup.GET("/user/suspension-status", h.Auth.SuspensionStatus)

		authGroup.GET("/orders", h.Orders.List)
		authGroup.GET("/orders/:id", h.Orders.Get)
		authGroup.DELETE("/orders/:id", h.Orders.Delete)

		authGroup.POST("/payment/nowpayments-init", h.Payment.InitGateway)
		authGroup.POST("/payment/submit-order", h.Payment.SubmitOrder)
	}

	if opts.AdminAPIKey != "" {
		admin := r.Group("/admin", middlewares.AdminKeyMiddleware(opts.AdminAPIKey))
		admin.PUT("/orders/:id/status", h.Orders.UpdateStatus)
		// 死信队列处理端点
		admin.POST("/dead-letter", h.Orders.HandleDeadLetter)
	}
	return r
}
