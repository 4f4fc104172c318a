package router

import (
	"context"
	"net/http"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/api/v1/handler"
	"github.com/pretty1020/lept-reviewer/internal/cache"
	"github.com/pretty1020/lept-reviewer/internal/config"
	"github.com/pretty1020/lept-reviewer/internal/middleware"
	"github.com/pretty1020/lept-reviewer/internal/pubsub"
	"github.com/pretty1020/lept-reviewer/internal/repository"
	"github.com/pretty1020/lept-reviewer/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")

	// 1. Open the shared connection pool. Every repository borrows from
	// it; nothing in the process holds a private connection.
	pool, err := repository.NewPool(ctx, cfg.DBConnectionString, cfg.DBMaxConns)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB pool")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Connect the cache layer.
	cacheClient, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTLs: map[cache.Kind]time.Duration{
			cache.KindUserByEmail:     cfg.UserCacheTTL,
			cache.KindAdminDocs:       cfg.AdminDocsCacheTTL,
			cache.KindUserDocs:        cfg.UserDocsCacheTTL,
			cache.KindIPBlock:         cfg.IPBlockCacheTTL,
			cache.KindPendingPayments: cfg.PendingPaymentsCacheTTL,
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Redis")
		pool.Close()
		return nil, nil, err
	}

	// 3. Initialize S3 client
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load S3 config")
		pool.Close()
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Resolve the generator API key. Deploys that keep the key in
	// Secret Manager leave the env var empty.
	generatorAPIKey := cfg.GeneratorAPIKey
	if generatorAPIKey == "" && cfg.GCPProjectID != "" {
		secrets, err := service.NewSecretService(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Warn().Err(err).Msg("Secret Manager unavailable, generator key unresolved")
		} else {
			key, err := secrets.GetSecret(ctx, cfg.GeneratorKeySecretName)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to resolve generator key from Secret Manager")
			} else {
				generatorAPIKey = key
			}
			_ = secrets.Close()
		}
	}

	// 6. Initialize Pub/Sub publisher. Usage export is optional.
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Warn().Err(err).Msg("Pub/Sub unavailable, usage events will not be exported")
		} else {
			publisher = p
		}
	}

	// 7. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	documentRepo := repository.NewDocumentRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	auditRepo := repository.NewAuditRepo(pool)

	limits := service.PlanLimits{
		FreeQuestionLimit: cfg.FreeQuestionLimit,
		ProQuestionBonus:  cfg.ProQuestionBonus,
		PremiumQuota:      cfg.PremiumQuota,
		PremiumDuration:   cfg.PremiumDuration(),
		QuestionsPerBatch: cfg.QuestionsPerBatch,
	}

	var extractor service.TextExtractor
	if cfg.ExtractorBaseURL != "" {
		extractor = service.NewHTTPExtractor(cfg.ExtractorBaseURL, cfg.ExtractorTimeout, logger)
	}

	entitlementSvc := service.NewEntitlementService(userRepo, usageRepo, auditRepo, cacheClient, publisher, cfg.UsageEventTopic, limits, cfg.UsageLogPageSize, logger)
	paymentSvc := service.NewPaymentService(paymentRepo, auditRepo, entitlementSvc, cacheClient, logger)
	documentSvc := service.NewDocumentService(documentRepo, auditRepo, s3Client, cfg.S3Bucket, extractor, cacheClient, cfg.MaxDocumentTextLen, logger)
	auditSvc := service.NewAuditService(auditRepo, cfg.AdminLogPageSize)
	generator := service.NewOpenAIGenerator(cfg.GeneratorBaseURL, generatorAPIKey, cfg.GeneratorModel, cfg.GeneratorTimeout, logger)
	presets := service.NewPresetSource(int64(len(cfg.JWTSecret)))
	examSvc := service.NewExamService(entitlementSvc, documentSvc, generator, presets, logger)

	authHandler := handler.NewAuthHandler(entitlementSvc, validate, cfg.JWTSecret, cfg.SessionTTL, cfg.IsAdminEmail)
	userHandler := handler.NewUserHandler(entitlementSvc)
	examHandler := handler.NewExamHandler(examSvc, validate)
	documentHandler := handler.NewDocumentHandler(documentSvc, entitlementSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, validate)
	adminHandler := handler.NewAdminHandler(entitlementSvc, paymentSvc, documentSvc, auditSvc, validate)

	// 8. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	// 9. Create ServeMux router
	mux := http.NewServeMux()
	authHandler.RegisterRoutes(mux)
	userHandler.RegisterRoutes(mux, authMiddleware)
	examHandler.RegisterRoutes(mux, authMiddleware)
	documentHandler.RegisterRoutes(mux, authMiddleware)
	paymentHandler.RegisterRoutes(mux, authMiddleware)
	adminHandler.RegisterRoutes(mux, authMiddleware)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 10. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
