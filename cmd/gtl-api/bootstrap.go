package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/GTLTrack/config"
	"github.com/BearBump/GTLTrack/internal/api/httpapi"
	"github.com/BearBump/GTLTrack/internal/broker/kafka"
	"github.com/BearBump/GTLTrack/internal/cache"
	"github.com/BearBump/GTLTrack/internal/cache/rediscache"
	"github.com/BearBump/GTLTrack/internal/services/admin"
	"github.com/BearBump/GTLTrack/internal/services/auth"
	"github.com/BearBump/GTLTrack/internal/services/inquiry"
	"github.com/BearBump/GTLTrack/internal/services/lookup"
	"github.com/BearBump/GTLTrack/internal/services/shipments"
	"github.com/BearBump/GTLTrack/internal/services/siteinfo"
	"github.com/BearBump/GTLTrack/internal/storage/memstore"
	"github.com/BearBump/GTLTrack/internal/storage/pgshipments"
	"github.com/BearBump/GTLTrack/internal/storage/redisstore"
)

type gtlAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     gtlAPIOpts
	handler  *httpapi.Server
	tracker  *lookup.Tracker
	consumer *kafka.Consumer
	closers  []func()
}

// settings is the config with every default filled in.
type settings struct {
	httpAddr         string
	backend          string
	storeTimeout     time.Duration
	cacheTTL         time.Duration
	sessionTTL       time.Duration
	trackLimit       int64
	inquiryLimit     int64
	changedTopic     string
	inquiryTopic     string
	consumerGroup    string
	whatsApp         string
	inquiryResetTime time.Duration
	adminEmail       string
}

func withDefaults(cfg *config.Config) settings {
	s := settings{
		httpAddr:         cfg.GTL.HTTPAddr,
		backend:          cfg.Store.Backend,
		storeTimeout:     time.Duration(cfg.Store.TimeoutSeconds) * time.Second,
		cacheTTL:         time.Duration(cfg.GTL.CurrentShipmentTTLSeconds) * time.Second,
		sessionTTL:       time.Duration(cfg.Admin.SessionTTLSeconds) * time.Second,
		trackLimit:       int64(cfg.GTL.TrackRateLimitPerMinute),
		inquiryLimit:     int64(cfg.GTL.InquiryRateLimitPerMinute),
		changedTopic:     cfg.Kafka.ShipmentChangedTopicName,
		inquiryTopic:     cfg.Kafka.InquiryTopicName,
		consumerGroup:    cfg.GTL.KafkaConsumerGroup,
		whatsApp:         cfg.Inquiry.WhatsAppNumber,
		inquiryResetTime: time.Duration(cfg.Inquiry.ResetAfterSeconds) * time.Second,
		adminEmail:       cfg.Admin.Email,
	}
	if s.httpAddr == "" {
		s.httpAddr = ":8080"
	}
	if s.backend == "" {
		s.backend = "redis"
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 10 * time.Minute
	}
	if s.trackLimit <= 0 {
		s.trackLimit = 60
	}
	if s.inquiryLimit <= 0 {
		s.inquiryLimit = 10
	}
	if s.changedTopic == "" {
		s.changedTopic = "shipment.changed"
	}
	if s.inquiryTopic == "" {
		s.inquiryTopic = "inquiry.submitted"
	}
	if s.consumerGroup == "" {
		s.consumerGroup = "gtl-api"
	}
	if s.whatsApp == "" {
		s.whatsApp = siteinfo.DefaultContacts().WhatsApp
	}
	if s.inquiryResetTime <= 0 {
		s.inquiryResetTime = 3 * time.Second
	}
	if s.adminEmail == "" {
		s.adminEmail = "admin@gtl.com"
	}
	return s
}

type producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// wire builds the HTTP server over already opened infrastructure. p may be nil.
func wire(cfg *config.Config, set settings, swaggerPath string, store shipments.Store, c cache.BytesCache, rl httpapi.RateLimiter, p producer) (*httpapi.Server, *lookup.Tracker) {
	repo := shipments.New(store).WithTimeout(set.storeTimeout)
	inq := inquiry.New(set.whatsApp, set.inquiryResetTime)
	if p != nil {
		repo.WithChangeEvents(p, set.changedTopic)
		inq.WithLeads(p, set.inquiryTopic)
	}
	tracker := lookup.NewTracker(repo, c, set.cacheTTL)
	// свой процесс сбрасывает кэш сразу, Kafka нужна только для остальных инстансов
	repo.OnWrite(tracker.Evict)

	if cfg.Admin.PasswordHash == "" {
		slog.Warn("admin.password_hash is empty, admin login is disabled")
	}

	srv := httpapi.New(httpapi.Deps{
		Tracker:  tracker,
		Admin:    admin.New(repo),
		Auth:     auth.New(set.adminEmail, cfg.Admin.PasswordHash, c, set.sessionTTL),
		Inquiry:  inq,
		Contacts: siteinfo.ContactsWith(set.whatsApp),
		Limiter:  rl,
		Ready:    pingerOf(c),
	}, httpapi.Options{
		SwaggerPath:      swaggerPath,
		TrackRateLimit:   set.trackLimit,
		InquiryRateLimit: set.inquiryLimit,
		SessionTTL:       set.sessionTTL,
		TrustProxy:       cfg.GTL.TrustProxyHeaders,
	})
	return srv, tracker
}

func pingerOf(c cache.BytesCache) httpapi.Pinger {
	if p, ok := c.(httpapi.Pinger); ok {
		return p
	}
	return nil
}

func mustBootstrapGTLAPI() *gtlAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	set := withDefaults(cfg)

	app := &gtlAPIApp{}
	store, closeStore := mustOpenStore(cfg, set.backend)
	app.closers = append(app.closers, closeStore)

	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
	app.closers = append(app.closers, func() { _ = rc.Close() }, func() { _ = rl.Close() })

	var p producer
	if cfg.Kafka.Enabled {
		kp := kafka.NewProducer(cfg.Kafka.Brokers())
		app.closers = append(app.closers, func() { _ = kp.Close() })
		p = kp
		app.consumer = kafka.NewConsumer(cfg.Kafka.Brokers(), set.changedTopic, set.consumerGroup)
	}

	srv, tracker := wire(cfg, set, swaggerPath, store, rc, rl, p)
	app.handler = srv
	app.tracker = tracker

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = gtlAPIOpts{
		httpAddr:      set.httpAddr,
		swaggerPath:   swaggerPath,
		topic:         set.changedTopic,
		consumerGroup: set.consumerGroup,
	}
	slog.Info("gtl-api configured", "store", set.backend, "kafka", cfg.Kafka.Enabled, "addr", set.httpAddr)
	return app
}

func mustOpenStore(cfg *config.Config, backend string) (shipments.Store, func()) {
	switch backend {
	case "redis":
		st := redisstore.New(cfg.Redis.Addr())
		return st, func() { _ = st.Close() }
	case "postgres":
		st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
		return st, st.Close
	case "memory":
		return memstore.New(), func() {}
	default:
		panic(fmt.Sprintf("unknown store.backend %q", backend))
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipments.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipments.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *gtlAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *gtlAPIApp) Run() error {
	// nil *kafka.Consumer не должен превратиться в ненулевой интерфейс
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runGTLAPI(a.ctx, a.opts, a.handler.Router(), a.tracker, consumer)
}
