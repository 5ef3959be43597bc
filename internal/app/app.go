// Package app wires config.Config into a running process: the database
// pool, every repository, the email provider, the archival writer, the
// telemetry exporter, and the background loops that drive the reactor,
// verifier, and sender on their configured cadences — the same
// functional-options App/AppInterface/NewApp shape the teacher's
// internal/app/app.go uses, generalized to this service's components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"contrib.go.opencensus.io/integrations/ocsql"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/emersion/go-smtp"
	_ "github.com/lib/pq"

	"github.com/isg-automation/scheduler/config"
	"github.com/isg-automation/scheduler/internal/archive"
	"github.com/isg-automation/scheduler/internal/database"
	"github.com/isg-automation/scheduler/internal/domain"
	httpHandler "github.com/isg-automation/scheduler/internal/http"
	"github.com/isg-automation/scheduler/internal/repository"
	"github.com/isg-automation/scheduler/internal/service/emailprovider"
	"github.com/isg-automation/scheduler/internal/service/filtereval"
	"github.com/isg-automation/scheduler/internal/service/inboundsmtp"
	"github.com/isg-automation/scheduler/internal/service/reactor"
	"github.com/isg-automation/scheduler/internal/service/sender"
	"github.com/isg-automation/scheduler/internal/service/verifier"
	"github.com/isg-automation/scheduler/internal/service/webhookevent"
	"github.com/isg-automation/scheduler/internal/telemetry"
	pkgdatabase "github.com/isg-automation/scheduler/pkg/database"
	"github.com/isg-automation/scheduler/pkg/emailerror"
	"github.com/isg-automation/scheduler/pkg/geocode"
	"github.com/isg-automation/scheduler/pkg/logger"
	"github.com/isg-automation/scheduler/pkg/tzconv"
)

// AppInterface is the lifecycle every main package drives: Initialize
// builds every component, Start blocks serving the HTTP surface and the
// background loops, Shutdown drains both.
type AppInterface interface {
	Initialize() error
	Start() error
	Shutdown(ctx context.Context) error

	GetConfig() *config.Config
	GetLogger() logger.Logger
	GetMux() *http.ServeMux
	GetDB() *sql.DB

	InitDB() error
	InitRepositories() error
	InitServices() error
	InitHandlers() error
}

// App holds every component one process instance wires together.
type App struct {
	config *config.Config
	logger logger.Logger
	db     *sql.DB

	automations     domain.AutomationRepository
	accounts        domain.AccountRepository
	policies        domain.PolicyRepository
	templates       domain.TemplateRepository
	scheduledEmails domain.ScheduledEmailRepository
	emailLogs       domain.EmailLogRepository
	activityLog     domain.ActivityLogRepository
	userSettings    domain.UserSettingsRepository
	senderDomains   domain.SenderDomainRepository
	unsubscribes    domain.UnsubscribeRepository
	massEmailBatch  domain.MassEmailBatchRepository

	provider     domain.EmailProvider
	providerKind domain.ProviderKind
	geocoder     *geocode.Client
	archiver     *archive.Archiver
	telemetry    *telemetry.Handle

	reactorDeps  reactor.Deps
	verifierDeps verifier.Deps
	senderDeps   sender.Deps

	mux *http.ServeMux

	server      *http.Server
	inboundSMTP *smtp.Server

	workerStop chan struct{}
	workerWG   sync.WaitGroup
}

// AppOption configures an App before Initialize runs.
type AppOption func(*App)

// WithLogger sets a custom logger, overriding the level-configured default.
func WithLogger(log logger.Logger) AppOption {
	return func(a *App) { a.logger = log }
}

// WithMockDB injects a pre-opened *sql.DB, used by integration tests to
// point the app at a throwaway database without going through config.
func WithMockDB(db *sql.DB) AppOption {
	return func(a *App) { a.db = db }
}

// NewApp builds an App from cfg, applying opts before any Init* method runs.
func NewApp(cfg *config.Config, opts ...AppOption) AppInterface {
	a := &App{
		config:     cfg,
		logger:     logger.NewLoggerWithLevel(cfg.LogLevel),
		mux:        http.NewServeMux(),
		workerStop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InitDB opens the system database pool and runs the schema bootstrap.
func (a *App) InitDB() error {
	if a.db != nil {
		// Already injected (tests via WithMockDB).
		return database.InitializeDatabase(a.db)
	}

	driverName := "postgres"
	if a.config.Telemetry.Exporter != "" {
		var err error
		driverName, err = ocsql.Register(driverName, ocsql.WithAllTraceOptions())
		if err != nil {
			return fmt.Errorf("app: registering opencensus sql driver: %w", err)
		}
	}

	db, err := sql.Open(driverName, a.config.Database.DSN())
	if err != nil {
		return fmt.Errorf("app: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("app: pinging database: %w", err)
	}
	db.SetMaxOpenConns(a.config.Database.MaxOpenConns)
	db.SetMaxIdleConns(a.config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(a.config.Database.ConnMaxLifetime)

	if err := database.InitializeDatabase(db); err != nil {
		db.Close()
		return fmt.Errorf("app: initializing schema: %w", err)
	}

	a.db = db
	return nil
}

// InitRepositories constructs every Postgres-backed repository over a.db.
func (a *App) InitRepositories() error {
	if a.db == nil {
		return fmt.Errorf("app: database must be initialized before repositories")
	}

	a.automations = repository.NewAutomationRepository(a.db)
	a.accounts = repository.NewAccountRepository(a.db)
	a.policies = repository.NewPolicyRepository(a.db)
	a.templates = repository.NewTemplateRepository(a.db)
	a.scheduledEmails = repository.NewScheduledEmailRepository(a.db)
	a.emailLogs = repository.NewEmailLogRepository(a.db)
	a.activityLog = repository.NewActivityLogRepository(a.db)
	a.userSettings = repository.NewUserSettingsRepository(a.db)
	a.senderDomains = repository.NewSenderDomainRepository(a.db)
	a.unsubscribes = repository.NewUnsubscribeRepository(a.db)
	a.massEmailBatch = repository.NewMassEmailBatchRepository(a.db)
	return nil
}

// InitServices builds the email provider, the optional archiver/geocoder/
// telemetry side channels, and the C2/C4/C5/C6 service Deps structs.
func (a *App) InitServices() error {
	if err := a.initProvider(); err != nil {
		return err
	}

	if a.config.GeocoderAPIKey != "" {
		a.geocoder = geocode.NewClient(&http.Client{Timeout: 10 * time.Second}, a.config.GeocoderEndpoint, a.config.GeocoderAPIKey, a.config.GeocoderConcurrency, a.logger)
	}

	if a.config.AWS.ArchiveBucket != "" {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(a.config.AWS.Region)})
		if err != nil {
			return fmt.Errorf("app: creating aws session for archival: %w", err)
		}
		a.archiver = archive.NewArchiver(sess, a.config.AWS.ArchiveBucket, a.logger)
	}

	handle, err := telemetry.Setup(a.config.Telemetry)
	if err != nil {
		return fmt.Errorf("app: setting up telemetry: %w", err)
	}
	a.telemetry = handle

	tz := tzconv.ForMode(a.config.TimezoneMode)
	filterDeps := filtereval.Deps{
		Policies:  a.policies,
		EmailLogs: a.emailLogs,
		Geocoder:  a.geocoder,
	}

	a.reactorDeps = reactor.Deps{
		Automations:           a.automations,
		Accounts:              a.accounts,
		Policies:              a.policies,
		Templates:             a.templates,
		ScheduledEmails:       a.scheduledEmails,
		ActivityLog:           a.activityLog,
		FilterDeps:            filterDeps,
		TZConv:                tz,
		Logger:                a.logger,
		MaxAccountsPerRefresh: a.config.MaxAccountsPerRefresh,
		ReaperThreshold:       a.config.ReaperThreshold,
		HorizonDays:           a.config.HorizonDays,
		PlannerBatch:          a.config.PlannerBatchSize,
	}

	a.verifierDeps = verifier.Deps{
		ScheduledEmails: a.scheduledEmails,
		Automations:     a.automations,
		Accounts:        a.accounts,
		Policies:        a.policies,
		Unsubscribes:    a.unsubscribes,
		EmailLogs:       a.emailLogs,
		Logger:          a.logger,
		Window:          a.config.VerificationWindow,
		DedupWindow:     time.Duration(a.config.DedupWindowDays) * 24 * time.Hour,
	}

	a.senderDeps = sender.Deps{
		ScheduledEmails:   a.scheduledEmails,
		Templates:         a.templates,
		Accounts:          a.accounts,
		Policies:          a.policies,
		Automations:       a.automations,
		UserSettings:      a.userSettings,
		SenderDomains:     a.senderDomains,
		Unsubscribes:      a.unsubscribes,
		EmailLogs:         a.emailLogs,
		ActivityLog:       a.activityLog,
		MassEmailBatches:  a.massEmailBatch,
		Provider:          a.provider,
		ProviderKind:      a.providerKind,
		Classifier:        emailerror.NewClassifier(),
		Logger:            a.logger,
		Archiver:          a.archiver,
		ReplyDomain:       a.config.ReplyDomain,
		UnsubscribeURL:    a.config.UnsubscribeURL,
		StarRatingBaseURL: a.config.StarRatingBaseURL,
		MaxPerRun:         a.config.MaxEmailsPerRun,
		DedupWindow:       time.Duration(a.config.DedupWindowDays) * 24 * time.Hour,
	}

	return nil
}

// initProvider selects domain.EmailProvider per config.Config.EmailProvider,
// falling back to the no-op provider whenever DryRun() is true.
func (a *App) initProvider() error {
	if a.config.DryRun() {
		a.provider = emailprovider.NewNoop(a.logger)
		a.providerKind = domain.ProviderNoop
		a.logger.Info("no email provider credentials configured, running in dry-run mode")
		return nil
	}

	switch a.config.EmailProvider {
	case "ses":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(a.config.AWS.Region)})
		if err != nil {
			return fmt.Errorf("app: creating aws session for ses: %w", err)
		}
		a.provider = emailprovider.NewSES(sess, a.config.AWS.Region, a.logger)
		a.providerKind = domain.ProviderSES

	case "smtp":
		smtp, err := emailprovider.NewSMTP(a.config.SMTP.Host, a.config.SMTP.Port, a.config.SMTP.Username, a.config.SMTP.Password, a.logger)
		if err != nil {
			return fmt.Errorf("app: configuring smtp provider: %w", err)
		}
		a.provider = smtp
		a.providerKind = domain.ProviderSMTP

	default:
		a.provider = emailprovider.NewSendGrid(&http.Client{Timeout: 30 * time.Second}, a.config.SendGrid.APIKey, a.logger)
		a.providerKind = domain.ProviderSendGrid
	}
	return nil
}

// InitHandlers registers the RPC, webhook, and health routes onto a.mux.
func (a *App) InitHandlers() error {
	httpHandler.RegisterRoutes(a.mux, httpHandler.RPCDeps{
		ReactorDeps:      a.reactorDeps,
		VerifierDeps:     a.verifierDeps,
		SenderDeps:       a.senderDeps,
		Automations:      a.automations,
		AdminTokenSecret: a.config.RPCAdminTokenSecret,
		Logger:           a.logger,
	})

	httpHandler.RegisterWebhookRoutes(a.mux, httpHandler.WebhookDeps{
		Ingest:        webhookevent.Deps{EmailLogs: a.emailLogs, Logger: a.logger},
		SigningSecret: a.config.Webhook.SigningSecret,
		Logger:        a.logger,
	})

	if err := pkgdatabase.InitializeConnectionManager(a.config, a.db); err != nil {
		return fmt.Errorf("app: initializing connection manager: %w", err)
	}
	connections, err := pkgdatabase.GetConnectionManager()
	if err != nil {
		return fmt.Errorf("app: fetching connection manager: %w", err)
	}

	var metricsHandler http.Handler
	if a.telemetry != nil {
		metricsHandler = a.telemetry.MetricsHandler
	}
	if a.config.InboundSMTPAddr != "" {
		backend := inboundsmtp.NewBackend(a.emailLogs, a.logger)
		a.inboundSMTP = inboundsmtp.NewServer(a.config.InboundSMTPAddr, a.config.InboundSMTPDomain, backend)
	}

	httpHandler.RegisterHealthRoutes(a.mux, httpHandler.HealthDeps{
		Connections:    connections,
		MetricsHandler: metricsHandler,
	})

	return nil
}

// Initialize runs every Init* step in dependency order.
func (a *App) Initialize() error {
	if err := a.InitDB(); err != nil {
		return err
	}
	if err := a.InitRepositories(); err != nil {
		return err
	}
	if err := a.InitServices(); err != nil {
		return err
	}
	if err := a.InitHandlers(); err != nil {
		return err
	}
	a.logger.Info("application successfully initialized")
	return nil
}

// Start runs the HTTP server and the two background loops (verify+send on
// WorkerInterval, full refresh on RefreshInterval) until Shutdown is called.
func (a *App) Start() error {
	a.startWorkers()

	if a.inboundSMTP != nil {
		go func() {
			a.logger.WithField("address", a.inboundSMTP.Addr).Info("inbound smtp server starting")
			if err := a.inboundSMTP.ListenAndServe(); err != nil {
				a.logger.WithError(err).Warn("inbound smtp server stopped")
			}
		}()
	}

	a.server = &http.Server{Addr: a.config.Server.Addr(), Handler: a.mux}
	a.logger.WithField("address", a.config.Server.Addr()).Info("server starting")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) startWorkers() {
	a.workerWG.Add(2)
	go a.runLoop("worker", a.config.WorkerInterval, func(ctx context.Context, now time.Time) {
		if _, err := verifier.Run(ctx, now, a.verifierDeps); err != nil {
			a.logger.WithError(err).Error("scheduled verify run failed")
		}
		if _, err := sender.Run(ctx, now, a.senderDeps); err != nil {
			a.logger.WithError(err).Error("scheduled send run failed")
		}
	})
	go a.runLoop("refresh", a.config.RefreshInterval, func(ctx context.Context, now time.Time) {
		if _, err := reactor.Daily(ctx, now, a.reactorDeps); err != nil {
			a.logger.WithError(err).Error("scheduled daily refresh failed")
		}
	})
}

func (a *App) runLoop(name string, interval time.Duration, step func(ctx context.Context, now time.Time)) {
	defer a.workerWG.Done()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.workerStop:
			return
		case t := <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			a.logger.WithField("loop", name).Debug("running scheduled loop")
			step(ctx, t.UTC())
			cancel()
		}
	}
}

// Shutdown stops the background loops, drains the HTTP server, and
// closes the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	close(a.workerStop)
	a.workerWG.Wait()

	if a.telemetry != nil {
		a.telemetry.Shutdown()
	}

	if a.inboundSMTP != nil {
		if err := a.inboundSMTP.Close(); err != nil {
			a.logger.WithError(err).Warn("error closing inbound smtp server")
		}
	}

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) GetConfig() *config.Config { return a.config }
func (a *App) GetLogger() logger.Logger  { return a.logger }
func (a *App) GetMux() *http.ServeMux    { return a.mux }
func (a *App) GetDB() *sql.DB            { return a.db }
