package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stitchfield/api/internal/handlers"
	"github.com/stitchfield/api/internal/payments"
	"github.com/stitchfield/api/internal/platform/auth"
	"github.com/stitchfield/api/internal/platform/config"
	pfirestore "github.com/stitchfield/api/internal/platform/firestore"
	"github.com/stitchfield/api/internal/platform/idempotency"
	"github.com/stitchfield/api/internal/platform/jobs"
	"github.com/stitchfield/api/internal/platform/observability"
	"github.com/stitchfield/api/internal/platform/secrets"
	"github.com/stitchfield/api/internal/repositories"
	firestoreRepo "github.com/stitchfield/api/internal/repositories/firestore"
	"github.com/stitchfield/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}
	env := envLookup(envValues)

	fetcher, err := newSecretFetcher(ctx, logger, env)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(env)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, fetcher, buildInfoFromEnv(env, startedAt))
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)
	stopCleanup := startIdempotencyCleanup(logger.Named("idempotency"), idempotencyStore, cfg.Idempotency)

	tokenIssuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret,
		auth.WithIssuer(cfg.Auth.TokenIssuer),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
	)
	if err != nil {
		logger.Fatal("failed to initialise token issuer", zap.Error(err))
	}

	accountService, err := services.NewAccountService(services.AccountServiceDeps{
		Users:          registry.Users(),
		HashPassword:   auth.HashPassword,
		VerifyPassword: auth.VerifyPassword,
		IssueToken:     tokenIssuer.Issue,
		Clock:          time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise account service", zap.Error(err))
	}

	authenticator := auth.NewAuthenticator(tokenIssuer, auth.WithAccountChecker(accountService))

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: registry.Products(),
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:    registry.Carts(),
		Products: registry.Products(),
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	counterService, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: registry.Counters(),
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise counter service", zap.Error(err))
	}

	paymentVerifier := newPaymentVerifier(logger, cfg.Payments)

	var orderEvents services.OrderEventPublisher
	if strings.TrimSpace(cfg.Events.Topic) != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(cfg.Events.Topic)
		defer topic.Stop()
		publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		orderEvents = publisher
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   registry.Orders(),
		Products: registry.Products(),
		Cart:     cartService,
		Counters: counterService,
		Verifier: paymentVerifier,
		Events:   orderEvents,
		Clock:    time.Now,
		FailOpen: cfg.Payments.FailOpen(),
		Logger:   orderEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	authHandlers := handlers.NewAuthHandlers(authenticator, accountService)
	productHandlers := handlers.NewProductHandlers(catalogService)
	cartHandlers := handlers.NewCartHandlers(authenticator, cartService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService,
		handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
	)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(systemService),
	)

	adminRoutes := func(r chi.Router) {
		r.Use(authenticator.RequireAuth(auth.RoleAdmin))
		r.Route("/products", productHandlers.AdminRoutes)
		r.Route("/orders", orderHandlers.AdminRoutes)
	}

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(adminRoutes),
	)

	serve(logger, router, cfg.Server, stopCleanup)
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains
// in-flight requests and stops the idempotency cleanup loop.
func serve(logger *zap.Logger, handler http.Handler, srv config.ServerConfig, stopCleanup func()) {
	server := &http.Server{
		Addr:         ":" + srv.Port,
		Handler:      handler,
		ReadTimeout:  srv.ReadTimeout,
		WriteTimeout: srv.WriteTimeout,
		IdleTimeout:  srv.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("stitchfield api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// startIdempotencyCleanup periodically removes expired idempotency
// records. The returned func stops the loop and waits for it to exit.
func startIdempotencyCleanup(logger *zap.Logger, store idempotency.Store, cfg config.IdempotencyConfig) func() {
	if cfg.CleanupInterval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(cfg.CleanupInterval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				runCtx, runCancel := context.WithTimeout(ctx, time.Minute)
				removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
				runCancel()
				if err != nil {
					logger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			cancel()
			<-done
		})
	}
}

func newPaymentVerifier(logger *zap.Logger, cfg config.PaymentsConfig) payments.Verifier {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		logger.Warn("payment gateway credentials not configured; payment verification disabled")
		return nil
	}
	iamport, err := payments.NewIamportClient(
		cfg.GatewayBaseURL,
		cfg.APIKey,
		cfg.APISecret,
		payments.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		logger.Fatal("failed to initialise payment gateway client", zap.Error(err))
	}
	return iamport
}

func orderEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info("order log", zFields...)
	}
}

// envLookup wraps the environment snapshot so callers get trimmed
// values without nil-map checks.
type envLookup map[string]string

func (e envLookup) get(key string) string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e[key])
}

func (e envLookup) fallback(keys ...string) string {
	for _, key := range keys {
		if value := e.get(key); value != "" {
			return value
		}
	}
	return ""
}

func buildInfoFromEnv(env envLookup, started time.Time) services.BuildInfo {
	version := env.get("API_BUILD_VERSION")
	if version == "" {
		version = "dev"
	}
	environment := strings.ToLower(env.get("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSystemService(client *firestore.Client, fetcher *secrets.Fetcher, build services.BuildInfo) (services.SystemService, error) {
	var checks []repositories.DependencyCheck
	if client != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check:   firestoreHealthCheck(client),
		})
	}
	if fetcher != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check:   secretsHealthCheck(fetcher),
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		Health: repo,
		Clock:  time.Now,
		Build:  build,
	})
}

func firestoreHealthCheck(client *firestore.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := client.Collections(ctx).Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	}
}

func secretsHealthCheck(fetcher *secrets.Fetcher) func(context.Context) error {
	const probe = "secret://system/healthz?version=latest"
	return func(ctx context.Context) error {
		_, err := fetcher.Resolve(ctx, probe)
		if err == nil {
			return nil
		}
		// A missing probe secret still proves the API is reachable.
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil
		}
		return err
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env envLookup) (*secrets.Fetcher, error) {
	envLabel := strings.ToLower(env.get("API_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	fallbackPath := env.get("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectMap := parseKeyValueList(env.get("API_SECRET_PROJECT_IDS"), normalizeEnvLabel); len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if project := env.fallback("API_SECRET_DEFAULT_PROJECT_ID", "API_FIRESTORE_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if pins := parseKeyValueList(env.get("API_SECRET_VERSION_PINS"), normalizeSecretPinKey); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}
	if credentialsFile := env.get("API_GOOGLE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func requiredSecretNames(env envLookup) []string {
	required := []string{"Auth.JWTSecret"}

	// Gateway credentials are required together once either half is set.
	if env.get("API_PAYMENTS_API_KEY") != "" || env.get("API_PAYMENTS_API_SECRET") != "" {
		required = append(required, "Payments.APIKey", "Payments.APISecret")
	}

	return uniqueStrings(required)
}

// parseKeyValueList parses a comma separated list of key=value entries.
// Malformed or empty entries are skipped. normalize rewrites each key
// and may return "" to drop the entry.
func parseKeyValueList(raw string, normalize func(string) string) map[string]string {
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key = normalize(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func normalizeEnvLabel(label string) string {
	return strings.ToLower(label)
}

// normalizeSecretPinKey canonicalises a version-pin reference so it
// matches the cache keys the fetcher builds: an optional "env:" prefix
// followed by a secret:// reference.
func normalizeSecretPinKey(ref string) string {
	if ref == "" {
		return ""
	}
	var prefix string
	if idx := strings.Index(ref, ":"); idx > 0 {
		schemeSplit := strings.Index(ref, "://")
		if schemeSplit == -1 || idx < schemeSplit {
			prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
			ref = strings.TrimSpace(ref[idx+1:])
		}
	}
	if rest, ok := strings.CutPrefix(ref, "sm://"); ok {
		ref = "secret://" + rest
	} else if !strings.HasPrefix(ref, "secret://") {
		ref = "secret://" + ref
	}
	return prefix + ref
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
