package main

import (
	"context"
	"fmt"
	"time"

	"membership-workflow/internal/common/aws"
	"membership-workflow/internal/common/config"
	"membership-workflow/internal/common/database"
	"membership-workflow/internal/common/lock"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/common/observability"
	"membership-workflow/internal/dispatch"
	"membership-workflow/internal/lifecycle"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/server"
	"membership-workflow/internal/store"
	"membership-workflow/pkg/registry"

	ca "membership-workflow/internal/workers/application/claim-application"
	da "membership-workflow/internal/workers/application/decide-application"
	sa "membership-workflow/internal/workers/application/submit-application"

	cs "membership-workflow/internal/workers/operator/cleanup-spaces"
	ds "membership-workflow/internal/workers/operator/delete-space"
	hc "membership-workflow/internal/workers/operator/health-check"
	la "membership-workflow/internal/workers/operator/list-applications"
	pp "membership-workflow/internal/workers/operator/post-panel"
	qs "membership-workflow/internal/workers/operator/query-status"

	"github.com/spf13/viper"
)

// app holds every wired component of one process.
type app struct {
	cfg        *config.Config
	log        logger.Logger
	db         *database.SQLClient
	store      *store.SQLStore
	platform   *platform.HTTPClient
	authorizer *platform.RoleAuthorizer
	dispatcher *dispatch.Dispatcher
	controller *lifecycle.Controller
	obs        *observability.Observability
	handlers   server.Handlers

	closers []func()
}

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) (logger.Logger, func(), error) {
	return logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type pingCloser interface {
	Ping(ctx context.Context) error
	Close() error
}

// openVerified opens a handle and pings it. The handle is closed again when the ping
// fails.
func openVerified[T pingCloser](ctx context.Context, open func() (T, error)) (T, error) {
	var zero T
	handle, err := open()
	if err != nil {
		return zero, err
	}
	if err := handle.Ping(ctx); err != nil {
		_ = handle.Close()
		return zero, err
	}
	return handle, nil
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// --- Store ---
	err := retryWithBackoff(func() error {
		var err error
		a.db, err = openVerified(ctx, func() (*database.SQLClient, error) {
			return database.Open(cfg.Database)
		})
		return err
	}, 10, time.Second, log, "database connection")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.db.Close() })
	log.Info("database connected", map[string]interface{}{"driver": cfg.Database.Driver})

	a.store = store.NewSQLStore(a.db.DB, log)

	templates, err := registry.LoadRegistry(cfg.Templates.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	a.platform = platform.NewHTTPClient(cfg.Platform, log)
	a.authorizer = platform.NewRoleAuthorizer(cfg.Authorization.ReviewerRoles, cfg.Authorization.CommandRoles)
	a.obs = observability.New(cfg.App.Name)
	a.closers = append(a.closers, a.obs.Shutdown)

	// --- Audit sinks and operator alerts ---
	sinks := []dispatch.AuditSink{store.NewAuditLog(a.db.DB)}
	var healthChecks []hc.Option

	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch: %w", err)
		}
		sinks = append(sinks, dispatch.NewSearchSink(es, cfg.Database.Elasticsearch.Index))
		healthChecks = append(healthChecks, hc.WithCheck("elasticsearch", es))
		log.Info("audit mirror enabled", map[string]interface{}{"index": cfg.Database.Elasticsearch.Index})
	}

	var alerters []dispatch.Alerter
	awsCfg := cfg.Integrations.AWS
	if awsCfg.SES.Enabled {
		ses, err := aws.NewSESClient(ctx, awsCfg.Region, awsCfg.SES.FromEmail, awsCfg.SES.To)
		if err != nil {
			return nil, fmt.Errorf("ses: %w", err)
		}
		alerters = append(alerters, ses)
	}
	if awsCfg.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, awsCfg.Region, awsCfg.SNS.TopicARN)
		if err != nil {
			return nil, fmt.Errorf("sns: %w", err)
		}
		alerters = append(alerters, sns)
	}

	a.dispatcher = dispatch.NewDispatcher(&dispatch.Config{
		ParentContainer: cfg.Platform.ParentContainer,
		SpacePrefix:     cfg.Platform.SpacePrefix,
		LogSpace:        cfg.Platform.LogSpace,
		ReviewerRoles:   cfg.Authorization.ReviewerRoles,
		HistoryLimit:    cfg.Lifecycle.HistoryLimit,
		CallTimeout:     config.GetDuration(cfg.Lifecycle.CallTimeout),
	}, a.platform, a.store, templates, log,
		dispatch.WithAuditSinks(sinks...),
		dispatch.WithAlerters(alerters...),
	)

	// --- Lifecycle ---
	opts := []lifecycle.Option{lifecycle.WithObservability(a.obs)}
	if cfg.Database.Redis.Enabled {
		var rc *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 5, time.Second, log, "Redis connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		opts = append(opts, lifecycle.WithLocker(lock.NewRedisLocker(rc.GetClient(), log,
			lock.WithTTL(config.GetDuration(cfg.Lifecycle.LockTTL)),
		)))
		healthChecks = append(healthChecks, hc.WithCheck("redis", rc))
		log.Info("distributed decision lock enabled", map[string]interface{}{"address": cfg.Database.Redis.Address})
	}

	a.controller, err = lifecycle.NewController(&lifecycle.Config{
		TeardownDelay: config.GetDuration(cfg.Lifecycle.TeardownDelay),
		CallTimeout:   config.GetDuration(cfg.Lifecycle.CallTimeout),
	}, a.store, a.dispatcher, a.authorizer, log, opts...)
	if err != nil {
		return nil, err
	}

	a.handlers = a.buildHandlers(templates, healthChecks)
	ok = true
	return a, nil
}

// buildHandlers creates the enabled task handlers. Disabled tasks stay nil.
func (a *app) buildHandlers(templates *registry.TemplateRegistry, healthChecks []hc.Option) server.Handlers {
	cfg := a.cfg
	var h server.Handlers

	// --- 1. Interaction Handlers ---
	if config.IsWorkerEnabled(cfg, sa.TaskType) {
		h.Submit = sa.NewHandler(sa.LoadConfig(cfg), a.controller, templates, a.log)
	}
	if config.IsWorkerEnabled(cfg, da.TaskType) {
		h.Decide = da.NewHandler(da.LoadConfig(cfg), a.controller, a.log)
	}
	if config.IsWorkerEnabled(cfg, ca.TaskType) {
		h.Claim = ca.NewHandler(ca.LoadConfig(cfg), a.controller, a.log)
	}

	// --- 2. Operator Commands ---
	if config.IsWorkerEnabled(cfg, pp.TaskType) {
		h.PostPanel = pp.NewHandler(pp.LoadConfig(cfg), a.platform, a.authorizer, templates, a.log)
	}
	if config.IsWorkerEnabled(cfg, la.TaskType) {
		h.List = la.NewHandler(la.LoadConfig(cfg), a.store, a.authorizer, templates, a.log)
	}
	if config.IsWorkerEnabled(cfg, cs.TaskType) {
		h.Cleanup = cs.NewHandler(cs.LoadConfig(cfg), a.platform, a.store, a.authorizer, templates, a.log)
	}
	if config.IsWorkerEnabled(cfg, qs.TaskType) {
		h.QueryStatus = qs.NewHandler(qs.LoadConfig(cfg), a.store, a.authorizer, templates, a.log)
	}
	if config.IsWorkerEnabled(cfg, ds.TaskType) {
		h.DeleteSpace = ds.NewHandler(ds.LoadConfig(cfg), a.platform, a.authorizer, templates, a.log)
	}
	if config.IsWorkerEnabled(cfg, hc.TaskType) {
		h.HealthCheck = hc.NewHandler(hc.LoadConfig(cfg), a.store, a.platform, a.authorizer, templates, a.log, healthChecks...)
	}

	for name, enabled := range map[string]bool{
		sa.TaskType: h.Submit != nil, da.TaskType: h.Decide != nil, ca.TaskType: h.Claim != nil,
		pp.TaskType: h.PostPanel != nil, la.TaskType: h.List != nil, cs.TaskType: h.Cleanup != nil,
		qs.TaskType: h.QueryStatus != nil, ds.TaskType: h.DeleteSpace != nil, hc.TaskType: h.HealthCheck != nil,
	} {
		if !enabled {
			a.log.Info("task disabled", map[string]interface{}{"taskType": name})
		}
	}
	return h
}

// Close waits for scheduled teardowns, then releases connections in reverse order.
func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
