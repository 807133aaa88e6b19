package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatcore/config"
	"chatcore/internal/assistant"
	"chatcore/internal/domain/principal"
	"chatcore/internal/gateway"
	"chatcore/internal/identity"
	"chatcore/internal/loop"
	"chatcore/internal/outbox"
	"chatcore/internal/redis"
	"chatcore/internal/repository"
	"chatcore/internal/server"
	"chatcore/internal/session"
	"chatcore/pkg/database"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const usage = `
chatcore - realtime conversation sync server

Usage:
  chatcore [command] [flags]

Commands:
  serve       Run the HTTP and websocket server (default)
  migrate     Create or update the database schema
  token       Issue a session token for a principal

Flags (token):
  -kind string   Principal kind, user or external (default "user")
  -id string     Principal id
`

func main() {
	flag.Usage = func() { fmt.Print(usage) }
	flag.Parse()

	command := "serve"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.LoadConfig()
	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	var err error
	switch command {
	case "serve":
		err = serve(cfg, l)
	case "migrate":
		err = migrate(cfg, l)
	case "token":
		err = issueToken(cfg, flag.Args()[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		l.Error("command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

func migrate(cfg *config.Config, l *logger.Logger) error {
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := repository.InitSchema(db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	l.Info("schema is up to date")
	return nil
}

func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	kind := fs.String("kind", string(principal.KindUser), "principal kind")
	id := fs.String("id", "", "principal id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ref := principal.Ref{Kind: principal.Kind(*kind)}
	if !ref.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", *kind)
	}
	parsed, err := uuid.Parse(*id)
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	ref.ID = parsed

	token, err := identity.NewTokens(cfg.JWTSecret, cfg.JWTTTL).Issue(ref)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func serve(cfg *config.Config, l *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := repository.InitSchema(db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	rdb := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := redis.Ping(ctx, rdb); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	publisher := redis.NewPublisher(rdb)
	subscriptions := redis.NewHub(rdb, l)
	presenceStore := redis.NewPresenceStore(rdb, publisher, cfg.PresenceTTL)
	limiter := redis.NewRateLimiter(rdb, redis.DefaultRateLimitConfig())

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	outboxRepo := repository.NewOutboxRepository(db, cfg.OutboxMaxRetries)

	tokens := identity.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	directory := identity.NewDirectory(
		repository.NewDirectoryRepository(db),
		redis.NewCacheStore(rdb, cfg.ProfileCacheTTL),
		l,
	)
	ai := assistant.NewClient(cfg.AIEndpoint, cfg.AIAPIKey, cfg.AITimeout, l)

	sessionCfg := session.Config{
		HeartbeatEvery:    cfg.HeartbeatInterval,
		TypingStopAfter:   cfg.TypingStopAfter,
		TypingExpireAfter: cfg.TypingExpireAfter,
	}
	deps := session.Deps{
		Messages:      messageRepo,
		Conversations: conversationRepo,
		Cursors:       conversationRepo,
		Directory:     directory,
		Presence:      presenceStore,
		Typing:        publisher,
		Subscriber:    subscriptions,
		Assistant:     ai,
	}
	newSession := func(sched loop.Scheduler, who principal.Principal, sessionID string) gateway.Session {
		return session.New(sched, deps, who, sessionID, sessionCfg, l)
	}

	gwLog := gateway.NewLogger(l)
	connections := gateway.NewHub(gateway.NewConnectionLimiter(cfg.MaxConnsPerMinute), gwLog)
	wsHandler := gateway.NewHandler(connections, tokens, directory, newSession, limiter, cfg.SweepInterval, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(server.Routes{
		WebSocket: wsHandler.Handle,
		Upgrades:  limiter,
		Checks: []server.Check{
			{Name: "postgres", Fn: func(ctx context.Context) error { return database.HealthCheck(ctx, db) }},
			{Name: "redis", Fn: func(ctx context.Context) error { return redis.Ping(ctx, rdb) }},
		},
	})

	relay := outbox.NewRelay(cfg, outboxRepo, publisher, l)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return subscriptions.Run(gctx) })
	g.Go(func() error { return connections.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	subscriptions.Close()
	if err != nil && ctx.Err() == nil {
		return err
	}
	l.Info("shutdown complete")
	return nil
}
