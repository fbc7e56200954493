package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/templhub/api/internal/commerce"
	"github.com/templhub/api/internal/handlers"
	"github.com/templhub/api/internal/payments"
	"github.com/templhub/api/internal/platform/auth"
	"github.com/templhub/api/internal/platform/config"
	pfirestore "github.com/templhub/api/internal/platform/firestore"
	"github.com/templhub/api/internal/platform/jobs"
	"github.com/templhub/api/internal/platform/observability"
	"github.com/templhub/api/internal/platform/pagination"
	"github.com/templhub/api/internal/platform/secrets"
	platformstorage "github.com/templhub/api/internal/platform/storage"
	"github.com/templhub/api/internal/repositories"
	firestoreRepo "github.com/templhub/api/internal/repositories/firestore"
	"github.com/templhub/api/internal/services"
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

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
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
		config.WithRequiredSecrets("Stripe.APIKey", "Stripe.WebhookSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

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

	catalogRepo, err := firestoreRepo.NewCatalogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}
	contentRepo, err := firestoreRepo.NewContentRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise content repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	profileRepo, err := firestoreRepo.NewProfileRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise profile repository", zap.Error(err))
	}
	commerceStore, err := commerce.NewFirestoreStore(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise commerce store", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog:         catalogRepo,
		Clock:           time.Now,
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
		FeaturedLimit:   cfg.Catalog.FeaturedLimit,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	contentService, err := services.NewContentService(services.ContentServiceDeps{
		Content: contentRepo,
		Clock:   time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise content service", zap.Error(err))
	}

	commerceService, err := services.NewCommerceService(services.CommerceServiceDeps{
		Store: commerceStore,
		Clock: time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise commerce service", zap.Error(err))
	}

	orderDeps := services.OrderServiceDeps{
		Orders: orderRepo,
		Logger: logger.Named("orders"),
		Clock:  time.Now,
	}
	orderPublisher, pubsubCleanup := newOrderPublisher(ctx, logger, cfg)
	if pubsubCleanup != nil {
		defer pubsubCleanup()
	}
	if orderPublisher != nil {
		orderDeps.Publisher = orderPublisher
	}
	orderService, err := services.NewOrderService(orderDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	identityService, err := services.NewIdentityService(services.IdentityServiceDeps{
		Directory: firebaseVerifier,
		Profiles:  profileRepo,
		Clock:     time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise identity service", zap.Error(err))
	}

	var chatService services.ChatService
	if strings.TrimSpace(cfg.Chat.WebhookURL) != "" {
		chatService, err = services.NewChatService(services.ChatServiceDeps{
			WebhookURL: cfg.Chat.WebhookURL,
			AuthToken:  cfg.Chat.AuthToken,
			Timeout:    cfg.Chat.Timeout,
			Logger:     logger.Named("chat"),
			Clock:      time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise chat service", zap.Error(err))
		}
	} else {
		logger.Warn("chat webhook not configured; /chat will be unavailable")
	}

	var checkoutService services.CheckoutService
	var webhookVerifier *payments.WebhookVerifier
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Stripe.APIKey,
			Logger: logger.Named("stripe"),
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		checkoutService, err = services.NewCheckoutService(services.CheckoutServiceDeps{
			Cart:     commerceService,
			Orders:   orderService,
			Payments: stripeProvider,
			Logger:   logger.Named("checkout"),
			Currency: cfg.Stripe.Currency,
			Clock:    time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise checkout service", zap.Error(err))
		}
		if strings.TrimSpace(cfg.Stripe.WebhookSecret) != "" {
			webhookVerifier, err = payments.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
			if err != nil {
				logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
			}
		} else {
			logger.Warn("stripe webhook secret not configured; /webhooks/stripe will be unavailable")
		}
	} else {
		logger.Warn("stripe api key not configured; checkout will be unavailable")
	}

	systemService, err := newSystemService(firestoreClient, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	pageOpts := pagination.Options{
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
	}

	catalogHandlers := handlers.NewCatalogHandlers(
		handlers.WithCatalogService(catalogService),
		handlers.WithCatalogPageOptions(pageOpts),
	)
	contentHandlers := handlers.NewContentHandlers(handlers.WithContentService(contentService))
	chatHandlers := handlers.NewChatHandlers(handlers.WithChatService(chatService))
	identityHandlers := handlers.NewIdentityHandlers(handlers.WithIdentityService(identityService))
	commerceHandlers := handlers.NewCommerceHandlers(handlers.WithCommerceService(commerceService))
	checkoutHandlers := handlers.NewCheckoutHandlers(handlers.WithCheckoutService(checkoutService))
	orderHandlers := handlers.NewOrderHandlers(
		handlers.WithOrderService(orderService),
		handlers.WithOrderPageOptions(pageOpts),
	)
	webhookOpts := []handlers.WebhookOption{
		handlers.WithWebhookCheckoutService(checkoutService),
		handlers.WithWebhookLogger(logger.Named("webhooks")),
	}
	if webhookVerifier != nil {
		webhookOpts = append(webhookOpts, handlers.WithStripeVerifier(webhookVerifier))
	}
	webhookHandlers := handlers.NewWebhookHandlers(webhookOpts...)
	mgmtHandlers := newMgmtHandlers(logger, cfg, catalogService, contentService)

	healthHandlers := handlers.NewHealthHandlers(handlers.WithSystemService(systemService))

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	requireUser := authenticator.RequireFirebaseAuth()

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(func(r chi.Router) {
			catalogHandlers.RegisterRoutes(r)
			contentHandlers.RegisterRoutes(r)
			chatHandlers.RegisterRoutes(r)
			identityHandlers.RegisterPublicRoutes(r)
		}),
		handlers.WithCommerceMiddlewares(requireUser),
		handlers.WithCartRoutes(commerceHandlers.RegisterCartRoutes),
		handlers.WithWishlistRoutes(commerceHandlers.RegisterWishlistRoutes),
		handlers.WithWaitlistRoutes(commerceHandlers.RegisterWaitlistRoutes),
		handlers.WithCheckoutRoutes(checkoutHandlers.RegisterRoutes),
		handlers.WithOrderRoutes(orderHandlers.RegisterRoutes),
		handlers.WithMeRoutes(identityHandlers.RegisterMeRoutes),
		handlers.WithMgmtRoutes(mgmtHandlers.RegisterRoutes),
		handlers.WithWebhookRoutes(webhookHandlers.RegisterRoutes),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("templhub api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(".secrets.local"),
	}
	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("GOOGLE_CLOUD_PROJECT")
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func newOrderPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.OrderEventPublisher, func()) {
	topicID := strings.TrimSpace(cfg.Events.OrderTopic)
	if topicID == "" {
		logger.Warn("order events topic not configured; recorded orders will not be published")
		return nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Warn("pubsub client init failed; recorded orders will not be published", zap.Error(err))
		return nil, nil
	}

	topic := client.Topic(topicID)
	publisher, err := jobs.NewPubSubOrderPublisher(topic)
	if err != nil {
		logger.Warn("order publisher init failed", zap.Error(err))
		_ = client.Close()
		return nil, nil
	}

	cleanup := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return publisher, cleanup
}

func newMgmtHandlers(logger *zap.Logger, cfg config.Config, catalog services.CatalogService, content services.ContentService) *handlers.MgmtHandlers {
	opts := []handlers.MgmtOption{
		handlers.WithMgmtCatalogService(catalog),
		handlers.WithMgmtContentService(content),
	}

	if cfg.Staff.Username != "" && cfg.Staff.Password != "" && cfg.Staff.KeySetJSON != "" {
		authority, err := auth.NewStaffTokenAuthority(
			[]byte(cfg.Staff.KeySetJSON),
			cfg.Staff.SigningKID,
			cfg.Staff.Issuer,
			auth.WithStaffTokenTTL(cfg.Staff.TokenTTL),
		)
		if err != nil {
			logger.Fatal("failed to initialise staff token authority", zap.Error(err))
		}
		opts = append(opts,
			handlers.WithStaffCredentials(cfg.Staff.Username, cfg.Staff.Password),
			handlers.WithStaffAuthority(authority),
		)
	} else {
		logger.Warn("staff credentials not configured; management login will be unavailable")
	}

	if cfg.Storage.SignerKeyFile != "" && cfg.Storage.ArchiveBucket != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromFile(cfg.Storage.SignerKeyFile)
		if err != nil {
			logger.Fatal("failed to load storage signer key", zap.Error(err))
		}
		client, err := platformstorage.NewClient(signer)
		if err != nil {
			logger.Fatal("failed to initialise signed url client", zap.Error(err))
		}
		opts = append(opts, handlers.WithArchiveSigner(client, cfg.Storage.ArchiveBucket))
	} else {
		logger.Warn("archive bucket or signer key not configured; archive downloads will be unavailable")
	}

	return handlers.NewMgmtHandlers(opts...)
}

func newSystemService(client *firestore.Client, build services.BuildInfo) (services.SystemService, error) {
	if client == nil {
		return nil, errors.New("health: firestore client is required")
	}
	checks := []repositories.DependencyCheck{{
		Name:    "firestore",
		Timeout: 1500 * time.Millisecond,
		Check: func(ctx context.Context) error {
			iter := client.Collections(ctx)
			_, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return err
		},
	}}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
