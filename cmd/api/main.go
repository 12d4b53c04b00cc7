package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"pasarmarket/internal/adapter/api"
	"pasarmarket/internal/adapter/api/handler"
	apimiddleware "pasarmarket/internal/adapter/api/middleware"
	"pasarmarket/internal/adapter/api/router"
	"pasarmarket/internal/adapter/repository"
	domainrepo "pasarmarket/internal/domain/repository"
	"pasarmarket/internal/domain/service"
	"pasarmarket/internal/infrastructure/firebase"
	"pasarmarket/internal/infrastructure/ratelimit"
	"pasarmarket/internal/infrastructure/storage"
	"pasarmarket/internal/infrastructure/websocket"
	"pasarmarket/internal/usecase"
	"pasarmarket/pkg/clock"
	"pasarmarket/pkg/config"
	"pasarmarket/pkg/logger"
	"pasarmarket/pkg/response"
)

type repositories struct {
	listings    domainrepo.ListingRepository
	orders      domainrepo.OrderRepository
	escrow      domainrepo.EscrowRepository
	ledger      domainrepo.LedgerRepository
	wallets     domainrepo.WalletRepository
	withdrawals domainrepo.WithdrawalRepository
	reviews     domainrepo.ReviewRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Server exited: %v", err)
		os.Exit(1)
	}
}

func credentialOptions(cfg *config.Config) []option.ClientOption {
	if cfg.ServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))}
	}
	if cfg.ServiceAccountPath != "" {
		logger.Info("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.ServiceAccountPath)}
	}
	logger.Info("Using application default credentials")
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	clk := clock.New()
	opts := credentialOptions(cfg)

	var repos repositories
	var verifier apimiddleware.TokenVerifier

	if cfg.FirebaseProject != "" {
		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
		if err != nil {
			return err
		}
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			return err
		}
		verifier = firebase.NewFirebaseAuthClient(authClient)
	} else if cfg.Environment == "development" {
		logger.Warn("FIREBASE_PROJECT_ID not set; accepting development tokens")
		verifier = firebase.DevTokenVerifier{}
	} else {
		return errors.New("FIREBASE_PROJECT_ID is required outside development")
	}

	switch cfg.StorageDriver {
	case "firestore":
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
		if err != nil {
			return err
		}
		defer firestoreClient.Close()

		repos = repositories{
			listings:    repository.NewFirestoreListingRepository(firestoreClient),
			orders:      repository.NewFirestoreOrderRepository(firestoreClient),
			escrow:      repository.NewFirestoreEscrowRepository(firestoreClient),
			ledger:      repository.NewFirestoreLedgerRepository(firestoreClient),
			wallets:     repository.NewFirestoreWalletRepository(firestoreClient),
			withdrawals: repository.NewFirestoreWithdrawalRepository(firestoreClient),
			reviews:     repository.NewFirestoreReviewRepository(firestoreClient),
		}
	default:
		logger.Warn("Using in-memory storage; all data is lost on restart")
		ledgerRepo, walletRepo := repository.NewMemoryLedgerRepositories()
		repos = repositories{
			listings:    repository.NewMemoryListingRepository(),
			orders:      repository.NewMemoryOrderRepository(),
			escrow:      repository.NewMemoryEscrowRepository(),
			ledger:      ledgerRepo,
			wallets:     walletRepo,
			withdrawals: repository.NewMemoryWithdrawalRepository(),
			reviews:     repository.NewMemoryReviewRepository(),
		}
	}

	var archive service.AuditArchive
	if cfg.AuditBucket != "" {
		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.AuditBucket, cfg.ServiceAccountPath)
		if err != nil {
			return err
		}
		defer storageClient.Close()
		archive = storageClient
	}

	var payments service.PaymentGateway
	if cfg.PaymentGateway == "midtrans" {
		payments = service.NewMidtransPaymentGateway(cfg.MidtransServerKey, cfg.MidtransEnvironment == "production")
	} else {
		logger.Warn("Using simulated payment gateway")
		payments = service.NewSimulatedPaymentGateway()
	}

	wsManager := websocket.NewManager()
	policy := usecase.StoragePolicy{Timeout: cfg.StorageTimeout, Retries: cfg.StorageRetries}

	listingUseCase := usecase.NewListingUseCase(repos.listings, clk, policy)
	ledgerUseCase := usecase.NewLedgerUseCase(repos.ledger, repos.wallets, repos.withdrawals, archive, clk, policy)
	escrowUseCase := usecase.NewEscrowUseCase(repos.escrow, repos.orders, listingUseCase, ledgerUseCase, wsManager, clk, policy, usecase.EscrowConfig{
		FeeRate:           cfg.FeeRate,
		PlatformAccountID: cfg.PlatformAccountID,
		AutoConfirmWindow: cfg.AutoConfirmWindow,
		SweepInterval:     cfg.SweepInterval,
		SweepBatchSize:    cfg.SweepBatchSize,
	})
	orderUseCase := usecase.NewOrderUseCase(repos.orders, listingUseCase, escrowUseCase, payments, wsManager, clk, policy)
	reviewUseCase := usecase.NewReviewUseCase(repos.reviews, repos.orders, repos.escrow, clk, policy)

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = response.ErrorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	purchaseLimiter := ratelimit.NewRateLimiter(cfg.PurchaseRatePerMinute, cfg.PurchaseBurst)

	router.Setup(e, handler.Handlers{
		Listing:   handler.NewListingHandler(listingUseCase),
		Order:     handler.NewOrderHandler(orderUseCase),
		Escrow:    handler.NewEscrowHandler(escrowUseCase),
		Review:    handler.NewReviewHandler(reviewUseCase),
		Wallet:    handler.NewWalletHandler(ledgerUseCase),
		Admin:     handler.NewAdminHandler(ledgerUseCase, escrowUseCase),
		Health:    handler.NewHealthHandler(clk, cfg.StorageDriver),
		WebSocket: handler.NewWebSocketHandler(wsManager, cfg.AllowedOrigins),
	},
		apimiddleware.NewAuthMiddleware(verifier),
		apimiddleware.NewAdminMiddleware(cfg.OperatorIDs),
		purchaseLimiter,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return wsManager.Run(gctx)
	})

	g.Go(func() error {
		return escrowUseCase.RunAutoConfirmJob(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purchaseLimiter.Cleanup()
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
