package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/stem-explainer/internal/api"
	"github.com/felipepmaragno/stem-explainer/internal/cache"
	"github.com/felipepmaragno/stem-explainer/internal/circuitbreaker"
	"github.com/felipepmaragno/stem-explainer/internal/config"
	"github.com/felipepmaragno/stem-explainer/internal/crypto"
	"github.com/felipepmaragno/stem-explainer/internal/gateway"
	"github.com/felipepmaragno/stem-explainer/internal/httputil"
	"github.com/felipepmaragno/stem-explainer/internal/identity"
	"github.com/felipepmaragno/stem-explainer/internal/notifications"
	"github.com/felipepmaragno/stem-explainer/internal/oracle"
	"github.com/felipepmaragno/stem-explainer/internal/ratelimit"
	"github.com/felipepmaragno/stem-explainer/internal/repository"
	"github.com/felipepmaragno/stem-explainer/internal/router"
	"github.com/felipepmaragno/stem-explainer/internal/secrets"
	"github.com/felipepmaragno/stem-explainer/internal/session"
	"github.com/felipepmaragno/stem-explainer/internal/telemetry"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting STEM explainer", "addr", cfg.Addr, "version", version, "oracle", cfg.OracleProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, "stem-explainer", cfg.OTLPEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	loadSecrets(ctx, cfg)

	missing := cfg.Credentials()
	if len(missing) > 0 {
		// Keep serving: generation requests fail with a misconfiguration
		// error until the credentials are provided.
		slog.Error("credentials missing", "missing", missing)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("using redis for rate limits, cache and sessions")
	}

	var notifier notifications.Notifier = notifications.NewLogNotifier(slog.Default())
	if cfg.FeedbackTopicARN != "" && cfg.AWSRegion != "" {
		sns, err := notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.FeedbackTopicARN)
		if err != nil {
			slog.Warn("sns notifier unavailable, logging notifications", "error", err)
		} else {
			notifier = sns
			slog.Info("using sns notifications", "topic", cfg.FeedbackTopicARN)
		}
	}

	var dedup notifications.Deduplicator = notifications.NewInMemoryDeduplicator()
	if redisClient != nil {
		dedup = notifications.NewRedisDeduplicator(redisClient, 24*time.Hour)
	}

	var (
		oracleImpl oracle.Oracle
		breaker    *circuitbreaker.Breaker
		provider   string
	)
	if !slices.Contains(missing, oracleCredential(cfg.OracleProvider)) {
		r, err := router.New(ctx, router.Settings{
			Provider:       cfg.OracleProvider,
			GeminiAPIKey:   cfg.GeminiAPIKey,
			GeminiModel:    cfg.GeminiModel,
			OpenAIAPIKey:   cfg.OpenAIAPIKey,
			OpenAIBaseURL:  cfg.OpenAIBaseURL,
			OpenAIModel:    cfg.OpenAIModel,
			BedrockModelID: cfg.BedrockModelID,
			AWSRegion:      cfg.AWSRegion,
			HTTPClient:     httputil.NewClient(httputil.OracleConfig()),
			Breaker:        circuitbreaker.DefaultConfig(),
			Notifier:       notifier,
			Dedup:          dedup,
		})
		if err != nil {
			slog.Error("oracle unavailable", "provider", cfg.OracleProvider, "error", err)
		} else {
			oracleImpl, breaker, provider = r.Oracle(), r.Breaker(), r.Provider()
			slog.Info("registered oracle", "provider", provider, "model", oracleImpl.Model())
		}
	}

	verifier := buildVerifier(cfg)

	policy := ratelimit.Policy{
		MaxRequests:    cfg.RateLimitMaxRequests,
		Window:         cfg.RateLimitWindow,
		SweepThreshold: cfg.RateLimitSweepThreshold,
	}
	var explainLimiter, quizLimiter ratelimit.Limiter
	if redisClient != nil {
		rl := ratelimit.NewRedisLimiterWithClient(redisClient, policy)
		explainLimiter, quizLimiter = rl, rl.Scoped("quiz")
	} else {
		explainLimiter = ratelimit.NewInMemoryLimiter(policy)
		quizLimiter = ratelimit.NewInMemoryLimiter(policy)
	}

	var explanationCache cache.Cache
	if cfg.ExplanationCacheTTL > 0 {
		if redisClient != nil {
			explanationCache = cache.NewRedisCacheWithClient(redisClient)
		} else {
			mem := cache.NewInMemoryCache()
			defer mem.Close()
			explanationCache = mem
		}
	}

	var sessions session.Store = session.NewInMemoryStore(session.DefaultTTL)
	if redisClient != nil {
		sessions = session.NewRedisStore(redisClient, session.DefaultTTL)
	}

	var (
		notes    repository.NoteRepository     = repository.NewInMemoryNoteRepository()
		feedback repository.FeedbackRepository = repository.NewInMemoryFeedbackRepository()
		checkers []api.HealthChecker
	)
	if redisClient != nil {
		checkers = append(checkers, api.NewRedisHealthCheckerWithClient(redisClient))
	}
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		var sealer crypto.Sealer = crypto.Plaintext{}
		if cfg.EncryptionKey != "" {
			enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
			if err != nil {
				slog.Error("invalid encryption key", "error", err)
				os.Exit(1)
			}
			sealer = enc
			slog.Info("notes encrypted at rest")
		}

		notes = repository.NewPostgresNoteRepository(db, sealer)
		feedback = repository.NewPostgresFeedbackRepository(db)
		checkers = append(checkers, api.NewPostgresHealthChecker(db))
		slog.Info("using postgres for notes and feedback")
	}

	svc := gateway.New(gateway.Config{
		Oracle:         oracleImpl,
		Verifier:       verifier,
		ExplainLimiter: explainLimiter,
		QuizLimiter:    quizLimiter,
		Cache:          explanationCache,
		CacheTTL:       cfg.ExplanationCacheTTL,
		OracleTimeout:  cfg.OracleTimeout,
		Missing:        missing,
	})

	handler := api.NewHandler(api.HandlerConfig{
		Gateway:  svc,
		Notes:    notes,
		Feedback: feedback,
		Sessions: sessions,
		Notifier: notifier,
		Breaker:  breaker,
		Provider: provider,
		Checkers: checkers,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OracleTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func loadSecrets(ctx context.Context, cfg *config.Config) {
	if cfg.AWSRegion == "" || (cfg.GeminiAPIKeySecret == "" && cfg.FirebaseServiceAccountSecret == "") {
		return
	}

	store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Warn("secrets manager unavailable", "error", err)
		return
	}

	n := secrets.Fill(ctx, store,
		secrets.Credential{Label: "GEMINI_API_KEY", SecretID: cfg.GeminiAPIKeySecret, Field: "GEMINI_API_KEY", Value: &cfg.GeminiAPIKey},
		secrets.Credential{Label: "FIREBASE_SERVICE_ACCOUNT_BASE64", SecretID: cfg.FirebaseServiceAccountSecret, Field: "FIREBASE_SERVICE_ACCOUNT_BASE64", Value: &cfg.FirebaseServiceAccount},
	)
	slog.Info("credentials loaded from secrets manager", "count", n)
}

func buildVerifier(cfg *config.Config) identity.Verifier {
	projectID := cfg.FirebaseProjectID
	if projectID == "" && cfg.FirebaseServiceAccount != "" {
		sa, err := identity.ParseServiceAccount(cfg.FirebaseServiceAccount)
		if err != nil {
			slog.Error("invalid firebase service account", "error", err)
			return nil
		}
		projectID = sa.ProjectID
	}
	if projectID == "" {
		return nil
	}

	keys := identity.NewHTTPKeySource(identity.GoogleCertsURL, httputil.NewClient(httputil.KeyFetchConfig()))
	slog.Info("verifying firebase id tokens", "project", projectID)
	return identity.NewFirebaseVerifier(projectID, keys)
}

func oracleCredential(provider string) string {
	switch provider {
	case config.ProviderGemini:
		return "GEMINI_API_KEY"
	case config.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case config.ProviderBedrock:
		return "AWS_REGION"
	default:
		return "ORACLE_PROVIDER"
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
