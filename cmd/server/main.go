package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "github.com/helioslabs/mcpgate/api/echo"
	"github.com/helioslabs/mcpgate/cache"
	rediscache "github.com/helioslabs/mcpgate/cache/redis"
	"github.com/helioslabs/mcpgate/config"
	"github.com/helioslabs/mcpgate/internal/crypto"
	"github.com/helioslabs/mcpgate/internal/metrics"
	"github.com/helioslabs/mcpgate/internal/sandbox"
	"github.com/helioslabs/mcpgate/log"
	"github.com/helioslabs/mcpgate/mongodb"
	"github.com/helioslabs/mcpgate/services"
	"github.com/helioslabs/mcpgate/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *echo.Echo
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting mcpgate server...", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     logLevel.String(),
	})

	tp, err := tracing.InitTracerProvider("mcpgate")
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	// Repositories
	recordRepo, err := mongodb.NewTokenRecordRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TokenRecordRepository", err, nil)
	}
	providerRepo, err := mongodb.NewProviderRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize ProviderRepository", err, nil)
	}
	userTokenRepo, err := mongodb.NewUserTokenRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserTokenRepository", err, nil)
	}

	// Encryption codecs. Storage and transit are keyed separately so a
	// leaked execution-side key never opens the database.
	storageCodec, err := crypto.NewCodec(cfg.EncryptionKey)
	if err != nil {
		appLogger.Fatal(ctx, "Invalid ENCRYPTION_KEY", err, nil)
	}
	bundleCodec, err := crypto.NewCodec(cfg.BundleKey)
	if err != nil {
		appLogger.Fatal(ctx, "Invalid BUNDLE_KEY", err, nil)
	}

	// Token signing. Without a configured secret, tokens die with the
	// process; fine for development, wrong for production.
	signer := services.NewTokenSigner()
	if cfg.SigningSecret != "" {
		signer.AddHMACKey("primary", []byte(cfg.SigningSecret))
	} else {
		appLogger.Warn(ctx, "SIGNING_SECRET not set; using an ephemeral RSA key", nil)
		rsaKey, keyErr := crypto.GenerateSigningKey()
		if keyErr != nil {
			appLogger.Fatal(ctx, "Failed to generate ephemeral signing key", keyErr, nil)
		}
		signer.AddRSAKey("ephemeral", rsaKey)
	}

	// Verification cache: Redis when configured, otherwise in-process.
	verifyTTL := time.Duration(cfg.VerifyCacheTTLSec) * time.Second
	var tokenCache cache.TokenStore
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", pingErr, nil)
		}
		tokenCache = rediscache.NewTokenStore(rdb, "mcpgate:verify", verifyTTL)
	} else {
		tokenCache = cache.NewMemoryTokenStore(verifyTTL)
	}

	// Services
	tokenService := services.NewTokenService(recordRepo, tokenCache, signer, cfg.Issuer)
	refreshService := services.NewRefreshService(providerRepo, userTokenRepo, storageCodec, services.RefreshOptions{
		CacheTTL:   time.Duration(cfg.RefreshCacheTTLSec) * time.Second,
		Skew:       time.Duration(cfg.RefreshSkewSec) * time.Second,
		RateLimit:  cfg.RefreshRateLimit,
		RateWindow: time.Duration(cfg.RefreshRateWindowSec) * time.Second,
		Retries:    cfg.RefreshRetries,
	})
	providerService := services.NewProviderService(providerRepo, storageCodec)
	bundleService := services.NewBundleService(refreshService, userTokenRepo, bundleCodec)
	executor := sandbox.NewExecutor(
		bundleCodec,
		cfg.SandboxInterpreter,
		time.Duration(cfg.SandboxTimeoutSec)*time.Second,
		int64(cfg.SandboxMaxConcurrent),
	)

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	// HTTP surface
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	gatewayAPI := echoapi.NewGatewayAPI(tokenService, providerService, bundleService, executor)
	gatewayAPI.RegisterRoutes(e)

	httpServer = e
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if serveErr := e.Start(":" + cfg.HTTPPort); serveErr != nil && serveErr != http.ErrServerClosed {
			appLogger.Fatal(ctx, "Failed to start HTTP server", serveErr, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", shutdownErr, nil)
	}

	refreshService.Close()

	if tracerProvider != nil {
		if shutdownErr := tracerProvider.Shutdown(shutdownCtx); shutdownErr != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", shutdownErr, nil)
		}
	}

	mongodb.CloseMongoDB(shutdownCtx)
	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
