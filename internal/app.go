// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	router "traderiser/internal/api"
	"traderiser/internal/api/handler"
	"traderiser/internal/blob"
	"traderiser/internal/config"
	"traderiser/internal/notify"
	"traderiser/internal/otp"
	"traderiser/internal/repository"
	"traderiser/internal/repository/postgres"
	"traderiser/internal/service"
	"traderiser/internal/util"
	"traderiser/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *goredis.Client

	// Repositories
	UserRepository        repository.UserRepository
	AccountRepository     repository.AccountRepository
	WalletRepository      repository.WalletRepository
	TransactionRepository repository.WalletTransactionRepository
	StatementRepository   repository.StatementRepository
	EvidenceRepository    repository.EvidenceRepository
	MpesaRepository       repository.MpesaRepository

	// Services
	SuspensionService service.SuspensionService
	LedgerService     service.LedgerService
	ProvisionService  service.ProvisionService
	MpesaService      service.MpesaService
	AuthService       service.AuthService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Connect to Redis
	app.Redis = goredis.NewClient(&goredis.Options{
		Addr:     app.Config.Redis.Addr,
		Password: app.Config.Redis.Password,
		DB:       app.Config.Redis.DB,
	})
	if err := app.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.Logger.Info("Redis connection established.")

	// 5. Initialize Repositories
	app.UserRepository = postgres.NewUserRepository(app.DB)
	app.AccountRepository = postgres.NewAccountRepository(app.DB)
	app.WalletRepository = postgres.NewWalletRepository(app.DB)
	app.TransactionRepository = postgres.NewWalletTransactionRepository(app.DB)
	app.StatementRepository = postgres.NewStatementRepository(app.DB)
	app.EvidenceRepository = postgres.NewEvidenceRepository(app.DB)
	app.MpesaRepository = postgres.NewMpesaRepository(app.DB)
	app.Logger.Info("Repositories initialized.")

	// 6. Initialize collaborators
	notifier := notify.NewSMTPNotifier(
		app.Config.SMTP.Host,
		app.Config.SMTP.Port,
		app.Config.SMTP.Username,
		app.Config.SMTP.Password,
		app.Config.SMTP.From,
	)
	blobStore := blob.NewDirStore(app.Config.MediaDir)
	codeStore := otp.NewCodeStore(app.Redis)

	// 7. Initialize Services
	app.SuspensionService = service.NewSuspensionService(
		app.DB,
		app.DB,
		app.UserRepository,
		app.EvidenceRepository,
		notifier,
		blobStore,
		app.Logger,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.MpesaService = service.NewMpesaService(
		app.DB,
		app.DB,
		app.UserRepository,
		app.MpesaRepository,
		blobStore,
		app.Logger,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.LedgerService = service.NewLedgerService(
		app.DB,
		app.DB,
		app.UserRepository,
		app.AccountRepository,
		app.WalletRepository,
		app.TransactionRepository,
		app.StatementRepository,
		app.MpesaService,
		notifier,
		app.Logger,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.ProvisionService = service.NewProvisionService(
		app.DB,
		app.DB,
		app.AccountRepository,
		app.WalletRepository,
		app.Logger,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.AuthService = service.NewAuthService(
		app.DB,
		app.UserRepository,
		app.AccountRepository,
		app.ProvisionService,
		app.SuspensionService,
		app.LedgerService,
		codeStore,
		notifier,
		app.Config.JWTSecret,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 8. Initialize HTTP Handlers and Router
	authHandler := handler.NewAuthHandler(app.AuthService, app.Logger)
	accountHandler := handler.NewAccountHandler(app.ProvisionService, app.LedgerService, app.Logger)
	suspensionHandler := handler.NewSuspensionHandler(app.SuspensionService, app.Logger)
	mpesaHandler := handler.NewMpesaHandler(app.MpesaService, app.AuthService, app.Logger)
	app.HTTPHandler = router.NewRouter(
		app.AuthService,
		authHandler,
		accountHandler,
		suspensionHandler,
		mpesaHandler,
		app.Logger,
	)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
