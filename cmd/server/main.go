package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authmod "github.com/ideaflowhq/ideaflow/modules/auth"
	billingmod "github.com/ideaflowhq/ideaflow/modules/billing"
	contentmod "github.com/ideaflowhq/ideaflow/modules/content"
	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/authn"
	"github.com/ideaflowhq/ideaflow/pkg/billing"
	"github.com/ideaflowhq/ideaflow/pkg/config"
	"github.com/ideaflowhq/ideaflow/pkg/document"
	"github.com/ideaflowhq/ideaflow/pkg/httpserver"
	"github.com/ideaflowhq/ideaflow/pkg/logger"
	"github.com/ideaflowhq/ideaflow/pkg/mongo"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
	"github.com/ideaflowhq/ideaflow/pkg/quota"
	"github.com/ideaflowhq/ideaflow/pkg/ratelimit"
	redisconn "github.com/ideaflowhq/ideaflow/pkg/redis"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Database    string `env:"MONGODB_DATABASE" envDefault:"ideaflow"`
	PlanCatalog string `env:"PLAN_CATALOG_PATH"`
	RedisRates  bool   `env:"RATELIMIT_USE_REDIS" envDefault:"false"`
}

func main() {
	ctx := context.Background()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Environment, "ideaflow"))
	slog.SetDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	var mongoCfg mongo.Config
	config.MustLoad(&mongoCfg)
	db, err := mongo.NewWithDatabase(ctx, mongoCfg, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	accounts := account.NewMongoStore(db)
	if err := accounts.EnsureIndexes(ctx); err != nil {
		return err
	}
	documents := document.NewMongoStore(db)
	if err := documents.EnsureIndexes(ctx); err != nil {
		return err
	}

	catalog, err := loadCatalog(ctx, cfg.PlanCatalog)
	if err != nil {
		return err
	}

	var paddleCfg billing.PaddleConfig
	config.MustLoad(&paddleCfg)
	provider, err := billing.NewPaddle(paddleCfg)
	if err != nil {
		return err
	}

	var authCfg authn.Config
	config.MustLoad(&authCfg)
	verifier, err := authn.NewVerifier(authCfg)
	if err != nil {
		return err
	}
	auth := authn.Middleware(verifier)

	limStore, limiterHealth, closeLimiter, err := limiterStore(ctx, cfg.RedisRates)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var checkoutCfg billing.CheckoutConfig
	config.MustLoad(&checkoutCfg)

	billingService := billingmod.NewService(
		billing.NewIssuer(provider, accounts, catalog, checkoutCfg, billing.WithIssuerLogger(log)),
		billing.NewProcessor(provider, accounts, catalog, billing.WithProcessorLogger(log)),
		billing.NewVerifier(provider, accounts, catalog, billing.WithVerifierLogger(log)),
		billing.NewCanceller(provider, accounts, catalog, billing.WithCancellerLogger(log)),
		accounts,
		catalog,
		auth,
		billingmod.WithLogger(log),
	)
	contentService := contentmod.NewService(
		documents,
		quota.NewEnforcer(accounts, documents, catalog),
		auth,
		contentmod.WithLogger(log),
	)
	authService := authmod.NewService(limStore, authmod.WithLogger(log))

	healthChecks := []func(context.Context) error{mongo.Healthcheck(db.Client())}
	if limiterHealth != nil {
		healthChecks = append(healthChecks, limiterHealth)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log, healthChecks...))
	r.Mount("/api/auth", authService.Handle())
	r.Mount("/api/billing", billingService.Handle())
	r.Mount("/api/content", contentService.Handle())

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

func loadCatalog(ctx context.Context, path string) (*plan.Catalog, error) {
	if path == "" {
		return plan.Default(), nil
	}
	return plan.NewCatalog(ctx, plan.YAMLSource{Path: path})
}

// limiterStore builds the attempt-limiter backend. The redis backend also
// contributes a health probe so /health reflects the store the limiter
// actually depends on; the in-process store has nothing to probe.
func limiterStore(ctx context.Context, useRedis bool) (ratelimit.Store, func(context.Context) error, func(), error) {
	if !useRedis {
		store := ratelimit.NewMemoryStore()
		return store, nil, func() { _ = store.Close() }, nil
	}

	var redisCfg redisconn.Config
	config.MustLoad(&redisCfg)
	client, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return ratelimit.NewRedisStore(client), redisconn.Healthcheck(client), func() { _ = client.Close() }, nil
}
