// Package bootstrap assembles the intake components selected by configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/lead-intake/internal/api/router"
	"github.com/wolfman30/lead-intake/internal/captcha"
	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/internal/enrichment"
	"github.com/wolfman30/lead-intake/internal/intake"
	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/notify"
	"github.com/wolfman30/lead-intake/internal/observability/metrics"
	"github.com/wolfman30/lead-intake/internal/scoring"
	"github.com/wolfman30/lead-intake/internal/spam"
	"github.com/wolfman30/lead-intake/internal/validation"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

// App is the wired API process.
type App struct {
	Handler http.Handler
	Metrics *metrics.IntakeMetrics
	// Worker is the in-process enrichment worker. Nil when jobs go to SQS
	// and a separate enrichment-worker consumes them.
	Worker *enrichment.Worker

	closers []func()
	logger  *logging.Logger
}

// NewAPI builds the HTTP handler and, for the in-memory queue, the inline
// enrichment worker. awsCfg may be nil when no AWS backend is selected.
func NewAPI(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	metricsHandler, m := BuildMetrics()
	app.Metrics = m

	repo, closeRepo, err := BuildLeadRepository(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeRepo)

	redisClient := BuildRedisClient(ctx, cfg, logger, cfg.RateLimitBackend == appconfig.BackendRedis)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	limiter, err := BuildLimiter(ctx, cfg, redisClient)
	if err != nil {
		return nil, err
	}

	validator, err := buildValidator(cfg)
	if err != nil {
		return nil, err
	}

	queue, err := buildQueue(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if memQueue, ok := queue.(*enrichment.MemoryQueue); ok {
		// Zero wait keeps Stop responsive; idle polls are in-process.
		worker, closeWorker, err := newWorker(ctx, cfg, awsCfg, memQueue, repo, m, logger, enrichment.WithReceiveWaitSeconds(0))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, closeWorker)
		app.Worker = worker
	}

	var verifier captcha.Verifier = captcha.NoopVerifier{}
	if cfg.CaptchaRequired {
		verifier = captcha.NewSiteVerifier(cfg.CaptchaSecret, cfg.CaptchaVerifyURL, cfg.CaptchaTimeout, logger)
	}

	pipeline := intake.NewPipeline(
		limiter,
		verifier,
		validator,
		repo,
		enrichment.NewPublisher(queue, logger),
		intake.Config{
			CaptchaRequired: cfg.CaptchaRequired,
			DispatchTimeout: cfg.EnrichmentDispatchLimit,
		},
		m,
		logger,
	)

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		IntakeHandler:      intake.NewHandler(pipeline, logger),
		LeadsHandler:       leads.NewHandler(repo, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})
	return app, nil
}

// Start launches the inline worker, if any.
func (a *App) Start(ctx context.Context) {
	if a.Worker != nil {
		a.Worker.Start(ctx)
	}
}

// Shutdown drains the inline worker and releases backends.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.Worker != nil {
		if stopErr := a.Worker.Stop(ctx); stopErr != nil {
			err = fmt.Errorf("bootstrap: stop enrichment worker: %w", stopErr)
		} else {
			a.logger.Info("enrichment worker drained")
		}
	}
	a.close()
	return err
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewEnrichmentWorker builds a standalone worker consuming the configured
// queue. The closer releases the lead store and LLM clients.
func NewEnrichmentWorker(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.IntakeMetrics, logger *logging.Logger) (*enrichment.Worker, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("bootstrap: config is required")
	}
	if cfg.EnrichmentQueue != appconfig.BackendSQS {
		return nil, nil, errors.New("bootstrap: standalone enrichment worker requires ENRICHMENT_QUEUE=sqs")
	}
	queue, err := buildQueue(cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	repo, closeRepo, err := BuildLeadRepository(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	worker, closeWorker, err := newWorker(ctx, cfg, awsCfg, queue, repo, m, logger)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	return worker, func() {
		closeWorker()
		closeRepo()
	}, nil
}

func newWorker(
	ctx context.Context,
	cfg *appconfig.Config,
	awsCfg *aws.Config,
	queue enrichment.Queue,
	repo leads.Repository,
	m *metrics.IntakeMetrics,
	logger *logging.Logger,
	opts ...enrichment.WorkerOption,
) (*enrichment.Worker, func(), error) {
	weights, err := cfg.ScoreWeights()
	if err != nil {
		return nil, nil, err
	}
	scorer, err := scoring.NewScorer(weights)
	if err != nil {
		return nil, nil, err
	}
	analyzer, closeAnalyzer, err := BuildAnalyzer(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	sender, err := BuildEmailSender(cfg, awsCfg, logger)
	if err != nil {
		closeAnalyzer()
		return nil, nil, err
	}
	dispatcher := notify.NewDispatcher(sender, notify.Config{
		AdminEmail:    cfg.AdminNotificationEmail,
		PublicBaseURL: cfg.PublicBaseURL,
		SendTimeout:   cfg.EmailTimeout,
		Signature:     cfg.NotificationSignature,
	}, m, logger)

	enricher := enrichment.NewEnricher(analyzer, scorer, dispatcher, repo, m, logger)
	opts = append([]enrichment.WorkerOption{enrichment.WithWorkerCount(cfg.WorkerCount)}, opts...)
	worker := enrichment.NewWorker(enricher, queue, logger, opts...)
	return worker, closeAnalyzer, nil
}

func buildQueue(cfg *appconfig.Config, awsCfg *aws.Config) (enrichment.Queue, error) {
	switch cfg.EnrichmentQueue {
	case appconfig.BackendSQS:
		if awsCfg == nil {
			return nil, fmt.Errorf("%w: sqs enrichment queue", ErrAWSConfigRequired)
		}
		return enrichment.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.EnrichmentQueueURL), nil
	case appconfig.BackendMemory, "":
		return enrichment.NewMemoryQueue(0), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown enrichment queue %q", cfg.EnrichmentQueue)
	}
}

func buildValidator(cfg *appconfig.Config) (*validation.Validator, error) {
	spamCfg, err := cfg.SpamConfig()
	if err != nil {
		return nil, err
	}
	analyzer, err := spam.NewAnalyzer(spamCfg)
	if err != nil {
		return nil, err
	}
	return validation.NewValidator(analyzer, cfg.DisposableEmailDomains...), nil
}
