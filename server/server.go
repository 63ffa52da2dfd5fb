package server

import (
	"context"
	"net/http"

	"github.com/SplitFi/go-drops/db"
	"github.com/SplitFi/go-drops/env"
	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/middleware"
	"github.com/SplitFi/go-drops/publicapi"
	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/drop"
	"github.com/SplitFi/go-drops/service/ledger"
	"github.com/SplitFi/go-drops/service/logger"
	"github.com/SplitFi/go-drops/service/mint"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/service/persist/memory"
	"github.com/SplitFi/go-drops/service/persist/postgres"
	sentry "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Init initializes the drop server and registers its routes on the default
// http mux
func Init() {
	setDefaults()

	initSentry()
	logger.SetLoggerOptions(func(l *logrus.Logger) {
		l.SetReportCaller(true)
	})

	c := ClientInit()
	router := CoreInit(c)

	http.Handle("/", router)
}

// Clients holds the long-lived dependencies handlers share
type Clients struct {
	Repos       *Repositories
	Collections *ledger.CollectionSet
	Native      ledger.Payment
	Dispatcher  *event.Dispatcher
}

// Repositories is the storage-agnostic bundle of repositories the services
// are built on
type Repositories struct {
	DropRepository       persist.DropRepository
	RoleRepository       persist.RoleRepository
	MintRecordRepository persist.MintRecordRepository
}

// ClientInit creates the repositories and shared clients. POSTGRES_ENABLED
// selects between postgres-backed and in-process repositories.
func ClientInit() *Clients {
	var repos *Repositories
	if env.GetBool("POSTGRES_ENABLED") {
		pq := postgres.MustCreateClient()
		if err := db.RunMigrations(pq, "./db/migrations/core"); err != nil {
			logger.For(nil).Fatalf("failed to run migrations: %s", err)
		}
		pgRepos := postgres.NewRepositories(pq)
		repos = &Repositories{
			DropRepository:       pgRepos.DropRepository,
			RoleRepository:       pgRepos.RoleRepository,
			MintRecordRepository: pgRepos.MintRecordRepository,
		}
	} else {
		repos = &Repositories{
			DropRepository:       memory.NewDropRepository(),
			RoleRepository:       memory.NewRoleRepository(),
			MintRecordRepository: memory.NewMintRecordRepository(),
		}
	}

	return &Clients{
		Repos:       repos,
		Collections: ledger.NewCollectionSet(),
		Native:      ledger.NewMemoryPayment(),
		Dispatcher:  event.NewDispatcher(),
	}
}

// CoreInit wires the services and returns the configured router
func CoreInit(c *Clients) *gin.Engine {
	logger.For(nil).Info("initializing server...")

	if env.GetString("ENV") != "production" {
		gin.SetMode(gin.DebugMode)
		logrus.SetLevel(logrus.DebugLevel)
	}

	router := gin.Default()
	router.Use(middleware.GinContextToContext(), middleware.Sentry(true), middleware.HandleCORS(), middleware.ErrLogger(), middleware.AddCallerAddress())

	ctx := context.Background()

	roles := auth.NewRoleRegistry(c.Repos.RoleRepository, c.Dispatcher)
	if owner := persist.EthereumAddress(env.GetString("BOOTSTRAP_OWNER_ADDRESS")); !owner.IsZero() {
		if err := roles.Bootstrap(ctx, owner); err != nil {
			logger.For(nil).Fatalf("failed to bootstrap owner: %s", err)
		}
	}

	registry := drop.NewRegistry(c.Repos.DropRepository, roles, c.Collections, c.Dispatcher)
	engine := mint.NewEngine(
		persist.EthereumAddress(env.GetString("ENGINE_ADDRESS")),
		registry,
		c.Repos.MintRecordRepository,
		c.Native,
		c.Dispatcher,
	)

	api := publicapi.New(ctx, roles, registry, engine, c.Dispatcher)

	return handlersInit(router, api)
}

func setDefaults() {
	viper.SetDefault("ENV", "local")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("POSTGRES_ENABLED", false)
	viper.SetDefault("POSTGRES_HOST", "0.0.0.0")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "drops_backend")
	viper.SetDefault("POSTGRES_PASSWORD", "")
	viper.SetDefault("POSTGRES_DB", "postgres")
	viper.SetDefault("SENTRY_DSN", "")
	viper.SetDefault("SENTRY_TRACES_SAMPLE_RATE", 0.2)
	viper.SetDefault("VERSION", "")
	viper.SetDefault("ENGINE_ADDRESS", "")
	viper.SetDefault("BOOTSTRAP_OWNER_ADDRESS", "")

	viper.AutomaticEnv()
}

func initSentry() {
	if env.GetString("ENV") == "local" {
		logger.For(nil).Info("skipping sentry init")
		return
	}

	logger.For(nil).Info("initializing sentry...")

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              env.GetString("SENTRY_DSN"),
		Environment:      env.GetString("ENV"),
		TracesSampleRate: env.GetFloat64("SENTRY_TRACES_SAMPLE_RATE"),
		Release:          env.GetString("VERSION"),
		AttachStacktrace: true,
	})
	if err != nil {
		logger.For(nil).Fatalf("failed to start sentry: %s", err)
	}
}
