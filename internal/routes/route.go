package routes

import (
	"net/http"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/container"
	"github.com/Mithunp123/Dakshaa-sub002/internal/handlers"
	"github.com/Mithunp123/Dakshaa-sub002/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	r.SetHTMLTemplate(handlers.Templates())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(container.Registry, promhttp.HandlerOpts{})))

	var history handlers.CallbackHistory
	if container.Audit != nil {
		history = container.Audit
	}

	// API version 1
	v1 := r.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "OK",
				"service": "payment-reconciliation",
			})
		})

		// The gateway calls back without a user token.
		v1.GET("/payment/callback", handlers.PaymentCallback(container.CallbackService, container.DashboardURL))
		v1.POST("/payment/callback", handlers.PaymentCallback(container.CallbackService, container.DashboardURL))
	}

	user := v1.Group("/")
	user.Use(middleware.Auth(container.Tokens, container.RequireAuth, container.Logger))
	{
		user.POST("/payment/initiate", handlers.InitiatePayment(container.OrderService))
		user.GET("/payment/status/:order_id", handlers.GetPaymentStatus(container.OrderService, history))

		bookingRoutes := user.Group("/bookings")
		{
			bookingRoutes.POST("/accommodation", handlers.CreateAccommodation(container.BookingService))
			bookingRoutes.POST("/lunch", handlers.CreateLunch(container.BookingService))
			bookingRoutes.POST("/events", handlers.CreateEventRegistrations(container.BookingService))
			bookingRoutes.POST("/combo", handlers.CreateComboPurchase(container.BookingService))
		}
	}

	admin := v1.Group("/payment")
	admin.Use(middleware.Auth(container.Tokens, container.RequireAuth, container.Logger))
	admin.Use(middleware.ServiceRole(container.RequireAuth))
	{
		admin.POST("/reconcile/:order_id", handlers.ReconcilePayment(container.CallbackService))
		admin.GET("/stale", handlers.ListStalePayments(container.OrderService))
	}

	return r
}
