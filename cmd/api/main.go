package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/case-service/internal/api/http"
	"github.com/spec-kit/case-service/internal/api/http/handlers"
	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/broadcast"
	"github.com/spec-kit/case-service/internal/config"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/mail"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/persistence"
	"github.com/spec-kit/case-service/internal/push"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/service"
	"github.com/spec-kit/case-service/internal/storage"
	"github.com/spec-kit/case-service/internal/worker"
)

const maxBodyBytes = 20 << 20

type repositories struct {
	cases         repository.CaseRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	stores        repository.StoreRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	repos := buildRepositories(pg, logger)

	var broadcaster broadcast.Broadcaster = broadcast.NewMemory()
	if redisConn.Enabled() {
		broadcaster = broadcast.NewRedis(redisConn.Client, logger)
	}

	var transport mail.Transport = mail.DisabledTransport{}
	if cfg.Mail.GmailConfigured() {
		gmailTransport, err := mail.NewGmailTransport(ctx, cfg.Mail, logger)
		if err != nil {
			logger.Fatal("failed to init gmail transport", zap.Error(err))
		}
		transport = gmailTransport
	} else {
		logger.Warn("mailbox credentials not provided; mail features are disabled")
	}

	var pushSender push.Sender = push.NewLogSender(logger)
	if cfg.Push.CredentialsFile != "" {
		fcm, err := push.NewFCMSender(ctx, cfg.Push)
		if err != nil {
			logger.Fatal("failed to init push sender", zap.Error(err))
		}
		pushSender = fcm
	}

	files, uploadsDir, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	var forwarder *events.KafkaForwarder
	if len(cfg.Kafka.Brokers) > 0 {
		forwarder, err = events.NewKafkaForwarder(cfg.Kafka)
		if err != nil {
			logger.Fatal("failed to init kafka forwarder", zap.Error(err))
		}
		defer forwarder.Close() //nolint:errcheck
	}

	metrics := observability.NewMetrics()

	fanout := service.NewNotificationFanout(service.FanoutDependencies{
		NotificationRepo: repos.notifications,
		UserRepo:         repos.users,
		Broadcaster:      broadcaster,
		Push:             pushSender,
		Metrics:          metrics,
		Logger:           logger,
	})
	machine := service.NewStatusMachine(service.StatusMachineDependencies{
		CaseRepo:   repos.cases,
		Notifier:   fanout,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	caseService := service.NewCaseService(service.CaseDependencies{
		CaseRepo:   repos.cases,
		Storage:    files,
		Machine:    machine,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	correlator := service.NewThreadCorrelator(service.CorrelatorDependencies{
		CaseRepo:   repos.cases,
		StoreRepo:  repos.stores,
		Transport:  transport,
		Storage:    files,
		Machine:    machine,
		Dispatcher: dispatcher,
		Mailbox:    cfg.Mail.MailboxAddress,
		Logger:     logger,
	})
	infoTracker := service.NewInfoExchangeTracker(service.InfoExchangeDependencies{
		CaseRepo:   repos.cases,
		Transport:  transport,
		Storage:    files,
		Machine:    machine,
		Dispatcher: dispatcher,
		Mailbox:    cfg.Mail.MailboxAddress,
		Logger:     logger,
	})
	syncJob := service.NewMailSyncBatchJob(service.MailSyncDependencies{
		CaseRepo:   repos.cases,
		Transport:  transport,
		Correlator: correlator,
		Metrics:    metrics,
		Logger:     logger,
		BatchLimit: cfg.Mail.BatchLimit,
	})
	notificationService := service.NewNotificationService(repos.notifications, broadcaster, dispatcher, logger)
	worker.StartEventWorkers(notificationService, dispatcher, forwarder)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(repos.users, tokens, cfg.Auth.BcryptCost)
	authenticator := auth.NewAuthenticator(tokens, cfg.Auth.AdminEmail, cfg.Auth.AdminSecretToken)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, BodyLimit: maxBodyBytes})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisConn),
		Auth:          handlers.NewAuthHandler(authService),
		Cases:         handlers.NewCasesHandler(caseService, infoTracker),
		AdminCases:    handlers.NewAdminCasesHandler(caseService, infoTracker, correlator, cfg.Mail.MailboxAddress),
		Notifications: handlers.NewNotificationsHandler(notificationService, logger),
		Mail:          handlers.NewMailHandler(syncJob, metrics, cfg.Mail.SyncWindow),
		Authenticator: authenticator,
		UploadsDir:    uploadsDir,
		UploadsPrefix: uploadsPrefix(cfg.Storage.PublicBaseURL),
	})

	if cfg.Mail.GmailConfigured() {
		syncWorker := worker.NewMailSyncWorker(syncJob, cfg.Mail.SyncInterval, cfg.Mail.SyncWindow, logger)
		go func() {
			if err := syncWorker.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("mail sync worker stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func buildRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	if pg.Enabled() {
		return repositories{
			cases:         repository.NewCaseRepository(pg.Pool),
			users:         repository.NewUserRepository(pg.Pool),
			notifications: repository.NewNotificationRepository(pg.Pool),
			stores:        repository.NewStoreRepository(pg.Pool),
		}
	}
	logger.Warn("POSTGRES_DSN not provided; using in-memory repositories")
	return repositories{
		cases:         repository.NewMemoryCaseRepository(),
		users:         repository.NewMemoryUserRepository(),
		notifications: repository.NewMemoryNotificationRepository(),
		stores:        repository.NewMemoryStoreRepository(),
	}
}

// openStorage picks Cloudinary, a bucket URL, or the local directory. The returned dir is
// non-empty only when files should be served by this process.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, string, error) {
	fetch := storage.NewFetcher(cfg.FetchTimeout, cfg.FetchMaxBytes)
	switch {
	case cfg.CloudinaryURL != "":
		store, err := storage.NewCloudinary(cfg.CloudinaryURL, fetch)
		return store, "", err
	case cfg.BucketURL != "":
		store, err := storage.OpenBucketURL(ctx, cfg.BucketURL, cfg.PublicBaseURL, fetch)
		return store, "", err
	default:
		store, err := storage.NewFileBucket(cfg.Dir, cfg.PublicBaseURL, fetch)
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	}
}

// uploadsPrefix serves local files under the path of the public base URL.
func uploadsPrefix(publicBaseURL string) string {
	u, err := url.Parse(publicBaseURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/uploads"
	}
	return u.Path
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
