package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"coffeehouse/internal/app"
	"coffeehouse/internal/audit"
	"coffeehouse/internal/auth"
	"coffeehouse/internal/config"
	"coffeehouse/internal/kafka"
	"coffeehouse/internal/live"
	"coffeehouse/internal/logging"
	"coffeehouse/internal/middleware"
	"coffeehouse/internal/notify"
	taskprocessor "coffeehouse/internal/processor"
	"coffeehouse/internal/repository"
	"coffeehouse/internal/server"
	"coffeehouse/internal/smsgateway"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn("close store", "error", err)
		}
	}()

	rdb, err := app.OpenRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("open redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	hub := live.NewHub()
	goRun(func() { hub.Run(ctx) })

	var pub live.Publisher = hub
	if rdb != nil {
		bridge := live.NewBridge(rdb, hub, live.DefaultChannel, log)
		pub = bridge
		goRun(func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("live bridge stopped", "error", err)
			}
		})
	}

	svc, err := app.NewService(cfg, store, rdb, pub, log)
	if err != nil {
		log.Error("build service", "error", err)
		os.Exit(1)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET not set, dashboard sessions will not survive a restart")
	}
	authn, err := auth.New(auth.Config{
		Secret:       []byte(secret),
		TTL:          cfg.JWTTTL,
		PasswordHash: cfg.DashboardPasswordHash,
		User:         cfg.Username,
		Password:     cfg.Password,
	})
	if err != nil {
		log.Error("auth", "error", err)
		os.Exit(1)
	}

	processors := []audit.AuditLogProcessor{&audit.LogProcessor{Log: log}}
	if store.SQL != nil {
		processors = append(processors, audit.NewDBProcessor(store.SQL))
	}
	auditPool := audit.NewAuditWorkerPool(audit.AuditPoolConfig{
		BatchSize:   cfg.AuditBatchSize,
		Timeout:     cfg.AuditTimeout,
		ChannelSize: 100,
	}, log, processors...)
	auditCtx, cancelAudit := context.WithCancel(context.Background())
	auditPool.Start(auditCtx, 2)
	defer auditPool.Shutdown(cancelAudit)

	if store.SQL != nil && len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewSaramaProducer(cfg.KafkaBrokers, log)
		if err != nil {
			log.Error("kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		proc := taskprocessor.NewTaskProcessor(repository.NewPostgresTaskRepository(store.SQL), producer, taskprocessor.Config{
			Topic:        cfg.KafkaTopic,
			PollInterval: cfg.OutboxPollInterval,
		}, log)
		goRun(func() { proc.Start(ctx) })
	} else if store.SQL != nil {
		log.Info("KAFKA_BROKERS not set, events stay in the outbox table")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	goRun(func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limiter.Sweep()
			}
		}
	})

	var sender smsgateway.Sender
	if cfg.SMSConfigured() {
		sender = smsgateway.NewVonageClient(cfg.VonageBaseURL, cfg.VonageAPIKey, cfg.VonageAPISecret, cfg.VonagePhoneNumber)
	}

	srv := server.NewServer(server.Options{
		Addr:        cfg.Addr(),
		PublicURL:   cfg.PublicURL,
		CORSOrigins: cfg.CORSOrigins,
		Service:     svc,
		Auth:        authn,
		Hub:         hub,
		SMSGateway:  smsgateway.NewHandler(sender, log),
		Push:        notify.NewPushRegistrar(log),
		Audit:       auditPool,
		Limiter:     limiter,
		Log:         log,
	})
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		stop()
	}
	wg.Wait()
	log.Info("shutdown complete")
}
