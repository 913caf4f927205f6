package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/pos/pkg"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/appetiteclub/pos/pkg/store"
	"github.com/appetiteclub/pos/services/kitchen/internal/audit"
	"github.com/appetiteclub/pos/services/kitchen/internal/display"
	"github.com/appetiteclub/pos/services/kitchen/internal/events"
	"github.com/appetiteclub/pos/services/kitchen/internal/mongo"
	"github.com/appetiteclub/pos/services/kitchen/internal/orderstream"
	"github.com/appetiteclub/pos/services/kitchen/internal/session"
	"github.com/google/uuid"
)

const (
	AppName    = "kitchen"
	AppVersion = "0.1.0"
)

const (
	defaultStoreURL     = "http://localhost:8000/api"
	defaultNATSURL      = "nats://localhost:4222"
	defaultKafkaTopic   = "orders.status"
	defaultKafkaGroup   = "pos-kitchen"
	defaultRedisAddr    = "localhost:6379"
	defaultLocale       = "en-US"
	defaultCurrency     = "$"
	defaultPollInterval = lifecycle.DefaultPollInterval
)

// App encapsulates the kitchen display service
type App struct {
	config *apt.Config
	logger apt.Logger
	micro  *apt.Micro

	// source identifies this instance on the event bus so it can skip
	// its own events.
	source string
	ctrl   *lifecycle.Controller
}

// New creates a new kitchen display application
func New(config *apt.Config, logger apt.Logger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &App{
		config: config,
		logger: logger,
		source: fmt.Sprintf("%s-%s", AppName, uuid.NewString()[:8]),
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	// Order store, authenticated with the operator token or the device session
	storeCfg := store.Config{
		Dialect: a.config.GetStringOrDef("store.dialect", store.DialectREST),
		URL:     a.config.GetStringOrDef("store.url", defaultStoreURL),
		Timeout: a.duration("store.timeout", store.DefaultTimeout),
	}

	var device *session.Device
	storeCfg.Token = func(ctx context.Context) string {
		if device == nil {
			return session.TokenFromContext(ctx)
		}
		return device.TokenSource()(ctx)
	}

	orderStore, err := store.New(storeCfg, a.logger)
	if err != nil {
		return fmt.Errorf("cannot create order store: %w", err)
	}

	sessionTTL := a.duration("auth.session.ttl", session.DefaultTTL)
	device = session.NewDevice(orderStore,
		a.config.GetStringOrDef("store.username", ""),
		a.config.GetStringOrDef("store.pin", ""),
		sessionTTL, a.logger)

	sessions, sessionLifecycle := a.sessionStore()

	// Audit trail
	var auditRepo audit.Repo
	var lifecycles []interface{}
	lifecycles = append(lifecycles, sessionLifecycle, device)

	if url, _ := a.config.GetString("db.mongo.url"); url != "" {
		repo := mongo.NewAuditRepo(a.config, a.logger)
		auditRepo = repo
		lifecycles = append(lifecycles, repo)
	} else {
		a.logger.Info("MongoDB not configured, keeping audit trail in memory")
		auditRepo = audit.NewMemoryRepo(0)
	}
	recorder := audit.NewRecorder(auditRepo, a.logger)

	// Event bus
	publisher, subscriber, closers, err := a.eventBus(ctx)
	if err != nil {
		return err
	}

	observers := []lifecycle.MutationObserver{recorder}
	if publisher != nil {
		observers = append(observers, events.NewStatusPublisher(publisher, event.OrderStatusTopic, a.source, a.logger))
	}

	hub := display.NewHub(a.logger)

	a.ctrl = lifecycle.NewController(orderStore,
		lifecycle.WithLogger(a.logger),
		lifecycle.WithNotifier(hub),
		lifecycle.WithObservers(observers...),
		lifecycle.WithStrictTransitions(a.config.GetStringOrDef("orders.strict_transitions", "true") != "false"),
	)

	// Change sources. The poller's first refresh is the initial load, so it
	// starts after the device session. Sources outlive the start context.
	poller := lifecycle.NewPoller(a.ctrl, a.duration("orders.poll_interval", defaultPollInterval), a.logger)
	lifecycles = append(lifecycles, apt.LifecycleHooks{
		OnStart: func(ctx context.Context) error { return poller.Start(context.WithoutCancel(ctx)) },
		OnStop:  poller.Stop,
	})

	if subscriber != nil {
		orderSubscriber := events.NewOrderSubscriber(subscriber, a.ctrl, event.OrderStatusTopic, a.source, a.logger)
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStart: func(ctx context.Context) error { return orderSubscriber.Start(context.WithoutCancel(ctx)) },
			OnStop:  orderSubscriber.Stop,
		})
	}

	if brokers := events.ParseBrokers(a.config.GetStringOrDef("kafka.brokers", "")); len(brokers) > 0 {
		kafkaCfg := events.KafkaConfig{
			Brokers: brokers,
			Topic:   a.config.GetStringOrDef("kafka.topic", defaultKafkaTopic),
			GroupID: a.config.GetStringOrDef("kafka.group", defaultKafkaGroup),
		}
		lifecycles = append(lifecycles, events.NewKafkaSource(kafkaCfg, a.ctrl, a.source, a.logger))
		a.logger.Info("Kafka change source enabled", "topic", kafkaCfg.Topic, "brokers", len(brokers))
	}

	if upstream, _ := a.config.GetString("orderstream.upstream"); upstream != "" {
		lifecycles = append(lifecycles, orderstream.NewClient(upstream, a.ctrl, a.logger))
		a.logger.Info("Order stream client enabled", "upstream", upstream)
	}

	// Teardown of the controller and the bus connections
	lifecycles = append(lifecycles, apt.LifecycleHooks{
		OnStop: func(context.Context) error { return a.ctrl.Close() },
	})
	for _, c := range closers {
		closer := c
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStop: func(context.Context) error { return closer() },
		})
	}

	// Servers
	handler := display.NewHandler(a.ctrl, orderStore, sessions, recorder, hub, display.Config{
		SessionName: a.config.GetStringOrDef("auth.session.name", "pos_session"),
		SessionTTL:  sessionTTL,
		Money: lifecycle.NewMoneyFormat(
			a.config.GetStringOrDef("display.locale", defaultLocale),
			a.config.GetStringOrDef("display.currency", defaultCurrency),
		),
	}, a.logger)

	streamServer := orderstream.NewServer(a.ctrl, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithGRPCServerModules("grpc.port", streamServer),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

// sessionStore picks the operator session backend.
func (a *App) sessionStore() (session.Store, interface{}) {
	if a.config.GetStringOrDef("session.backend", "memory") == "redis" {
		db, err := strconv.Atoi(a.config.GetStringOrDef("redis.db", "0"))
		if err != nil {
			a.logger.Errorf("Invalid redis.db, using 0: %v", err)
			db = 0
		}
		s := session.NewRedisStore(session.RedisConfig{
			Addr:     a.config.GetStringOrDef("redis.addr", defaultRedisAddr),
			Password: a.config.GetStringOrDef("redis.password", ""),
			DB:       db,
		})
		a.logger.Info("Redis session store enabled")
		return s, s
	}
	s := session.NewMemoryStore()
	return s, s
}

// eventBus connects NATS when enabled. With the stream enabled a single
// JetStream connection publishes and consumes; otherwise NATS core is used.
func (a *App) eventBus(ctx context.Context) (aptevents.Publisher, aptevents.Subscriber, []func() error, error) {
	if a.config.GetStringOrDef("nats.enabled", "false") != "true" {
		return nil, nil, nil, nil
	}

	natsURL := a.config.GetStringOrDef("nats.url", defaultNATSURL)

	if a.config.GetStringOrDef("nats.stream.enabled", "false") == "true" {
		stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   event.OrderEventsStream,
			Topic:        event.OrderStatusTopic,
			ConsumerName: a.source,
			MaxAge:       24 * time.Hour,
			Replay:       a.config.GetStringOrDef("nats.stream.replay", "false") == "true",
			Logger:       a.logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		a.logger.Info("NATS stream initialized for persistent events")
		return stream, stream, []func() error{stream.Close}, nil
	}

	publisher, err := pkg.NewNATSPublisher(natsURL, pkg.WithNATSName(a.source+"-pub"), pkg.WithNATSLogger(a.logger))
	if err != nil {
		return nil, nil, nil, err
	}

	subscriber, err := pkg.NewNATSSubscriber(natsURL, pkg.WithNATSName(a.source+"-sub"), pkg.WithNATSLogger(a.logger))
	if err != nil {
		publisher.Close()
		return nil, nil, nil, err
	}

	a.logger.Info("NATS core initialized", "url", natsURL)
	return publisher, subscriber, []func() error{subscriber.Close, publisher.Close}, nil
}

func (a *App) duration(key string, def time.Duration) time.Duration {
	raw, ok := a.config.GetString(key)
	if !ok || raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		a.logger.Errorf("Invalid duration for %s (%q), using %s", key, raw, def)
		return def
	}
	return d
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	// Lifecycle cleanup is handled by apt.Micro
	return nil
}
