package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"pageant-backend/internal/config"
	infraCache "pageant-backend/internal/infrastructure/cache"
	"pageant-backend/internal/infrastructure/database"
	"pageant-backend/pkg/jwt"
	"pageant-backend/pkg/logger"
	"pageant-backend/pkg/metrics"

	"pageant-backend/internal/domains/contestant"
	contestantHandler "pageant-backend/internal/domains/contestant/handler"
	contestantRepo "pageant-backend/internal/domains/contestant/repository"
	"pageant-backend/internal/domains/payment/gateway/fonepay"
	paymentHandler "pageant-backend/internal/domains/payment/handler"
	paymentRepo "pageant-backend/internal/domains/payment/repository"
	paymentService "pageant-backend/internal/domains/payment/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container is the root of the dependency graph. Everything in it is a
// singleton built once at startup; construction order is config first,
// then infrastructure, repositories, services, handlers.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config     *config.Config
	DB         *database.PostgresDB
	Redis      *infraCache.RedisClient
	JWTManager *jwt.Manager
	Counters   metrics.Counter

	// ========================================
	// GATEWAY LAYER
	// ========================================
	GatewayConfig *fonepay.Config
	Verifier      paymentService.TransactionVerifier // nil without API credentials

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	ContestantRepo contestant.Repository
	SessionRepo    paymentRepo.PaymentRepoInterface
	TxManager      paymentRepo.TransactionManager

	// ========================================
	// SERVICE LAYER
	// ========================================
	PaymentService paymentService.PaymentService

	// ========================================
	// HANDLER LAYER
	// ========================================
	PaymentHandler    *paymentHandler.PaymentHandler
	ContestantHandler *contestantHandler.ContestantHandler
}

// ========================================
// CONSTRUCTOR
// ========================================

func NewContainer() (*Container, error) {
	log.Println("[Container] Initializing...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	logger.Init(cfg.App.Environment)
	log.Printf("[Container] Config loaded (environment: %s)", cfg.App.Environment)

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db

	// ========================================
	// STEP 3: INITIALIZE REDIS
	// ========================================
	redisClient := infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Redis = redisClient
	c.Counters = metrics.NewRedisCounter(redisClient.Client, "pageant:metrics")

	// ========================================
	// STEP 4: AUTH + GATEWAY
	// ========================================
	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	gatewayConfig := fonepay.NewConfig(
		cfg.FonePay.MerchantID,
		cfg.FonePay.Secret,
		cfg.FonePay.GatewayURL,
		cfg.FonePay.MerchantAPI,
		cfg.FonePay.APIUser,
		cfg.FonePay.APIPass,
	)
	gatewayConfig.DevMode = cfg.FonePay.DevMode
	gatewayConfig.Currency = cfg.Voting.Currency
	if err := gatewayConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}
	c.GatewayConfig = gatewayConfig

	// The verifier only exists when credentials are configured; the
	// payment service treats its absence as the legacy bypass path.
	if gatewayConfig.HasAPICredentials() {
		c.Verifier = fonepay.NewVerificationClient(gatewayConfig)
	} else {
		log.Println("[Container] FonePay API credentials not set, S2S verification disabled")
	}

	// ========================================
	// STEP 5: REPOSITORIES
	// ========================================
	c.ContestantRepo = contestantRepo.NewContestantRepository(db.Pool)
	c.SessionRepo = paymentRepo.NewSessionRepository(db.Pool)
	c.TxManager = paymentRepo.NewPostgresTransactionManager(db.Pool)

	// ========================================
	// STEP 6: SERVICES
	// ========================================
	unitPrice, err := decimal.NewFromString(cfg.Voting.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid VOTE_UNIT_PRICE: %w", err)
	}

	c.PaymentService = paymentService.NewPaymentService(
		c.SessionRepo,
		c.ContestantRepo,
		c.TxManager,
		c.GatewayConfig,
		c.Verifier,
		c.Counters,
		unitPrice,
		cfg.Voting.Currency,
		cfg.App.BaseURL+"/api/v1/payments/return",
	)

	// ========================================
	// STEP 7: HANDLERS
	// ========================================
	c.PaymentHandler = paymentHandler.NewPaymentHandler(c.PaymentService, cfg.Voting.FrontendStatusURL)
	c.ContestantHandler = contestantHandler.NewContestantHandler(c.ContestantRepo)

	log.Println("[Container] Initialization complete")
	return c, nil
}

// ========================================
// LIFECYCLE
// ========================================

func (c *Container) Cleanup() {
	log.Println("[Container] Cleaning up...")

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("[Container] Failed to close redis: %v", err)
		}
	}

	log.Println("[Container] Cleanup complete")
}
