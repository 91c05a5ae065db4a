package container

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/helpers"
	"github.com/Mithunp123/Dakshaa-sub002/internal/mailer"
	"github.com/Mithunp123/Dakshaa-sub002/internal/metrics"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/services"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
)

// Options configures the container beyond its storage and clients.
type Options struct {
	GatewayURL   string
	DashboardURL string
	PollInterval time.Duration
	PollTimeout  time.Duration
	RequireAuth  bool
}

// Container holds all application dependencies
type Container struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.PaymentMetrics
	Gateway  storage.Gateway
	// Audit is nil when MongoDB is not configured.
	Audit  *models.MongodbRepo
	Mailer mailer.Sender
	Tokens *helpers.TokenValidator

	DashboardURL string
	RequireAuth  bool

	OrderService    *services.OrderService
	CallbackService *services.CallbackService
	BookingService  *services.BookingService
}

// NewContainer creates a new dependency injection container
func NewContainer(
	logger *slog.Logger,
	gw storage.Gateway,
	directory storage.Directory,
	mongoDBClient *mongo.Client,
	sender mailer.Sender,
	tokens *helpers.TokenValidator,
	opts Options,
) (*Container, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPaymentMetrics(reg)

	ids, err := services.NewIDGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}

	retry := storage.DefaultRetryPolicy()
	retry.OnRetry = func(attempt int, err error) {
		logger.Warn("Retrying storage call", "attempt", attempt, "error", err)
		m.RecordRetry("callback")
	}

	// Initialize repositories
	repo := models.NewRepo(gw)
	var audit *models.MongodbRepo
	var auditor services.CallbackAuditor
	if mongoDBClient != nil {
		audit = models.MongodbNewRepo(mongoDBClient)
		auditor = audit
	}

	contacts := services.NewContactResolver(repo, directory, logger)
	pricing := services.NewPricingCalculator(repo, repo)
	ledger := services.NewLedger(repo, logger)

	orders := services.NewOrderService(repo, repo, repo, repo, pricing, ledger, contacts, ids, retry, opts.GatewayURL, m, logger)
	poller := services.NewPoller(repo, opts.PollInterval, opts.PollTimeout, m, logger)
	materializer := services.NewMaterializer(repo, repo, repo, retry, m, logger)
	notifier := services.NewNotifier(repo, contacts, sender, retry, m, logger)
	callbacks := services.NewCallbackService(repo, poller, ledger, materializer, notifier, orders, auditor, retry, m, logger)
	bookings := services.NewBookingService(repo, repo, repo, contacts, ids, logger)

	return &Container{
		Logger:          logger,
		Registry:        reg,
		Metrics:         m,
		Gateway:         gw,
		Audit:           audit,
		Mailer:          sender,
		Tokens:          tokens,
		DashboardURL:    opts.DashboardURL,
		RequireAuth:     opts.RequireAuth,
		OrderService:    orders,
		CallbackService: callbacks,
		BookingService:  bookings,
	}, nil
}
