package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/burner-chat/config"
	"github.com/cwrk-planet/burner-chat/internal/broadcast"
	"github.com/cwrk-planet/burner-chat/internal/redisstore"
	"github.com/cwrk-planet/burner-chat/internal/security"
	httpserver "github.com/cwrk-planet/burner-chat/internal/server/http"
	"github.com/cwrk-planet/burner-chat/internal/service"
	grpcx "github.com/cwrk-planet/burner-chat/internal/transport/grpc"
	httpx "github.com/cwrk-planet/burner-chat/internal/transport/http"
	httpmw "github.com/cwrk-planet/burner-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/burner-chat/internal/transport/ws"
	"github.com/cwrk-planet/burner-chat/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env опционален
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	defer logger.Sync()
	slog.Info("starting burner-chat",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "broadcast", cfg.Broadcast.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", slog.Any("err", err))
		logger.Sync()
		os.Exit(1)
	}
	slog.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- redis ---
	db, err := redisstore.New(ctx, redisstore.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	// --- broadcast ---
	bus, err := newBus(cfg, db)
	if err != nil {
		return err
	}
	defer bus.Close()

	newID, err := security.NewIDGenerator(cfg.Room.IDLength)
	if err != nil {
		return err
	}

	// --- repos ---
	roomRepo := redisstore.NewRoomRepository(db, cfg.Room.TTL, cfg.Room.Capacity)
	chatRepo := redisstore.NewMessageRepository(db)
	presenceRepo := redisstore.NewPresenceRepository(db)
	ttl := redisstore.NewTTLSynchronizer(db)

	// --- services ---
	roomSvc := service.NewRoomService(roomRepo, ttl, bus, newID)
	memberSvc := service.NewMemberService(roomRepo, presenceRepo, ttl)
	chatSvc := service.NewChatService(chatRepo, ttl, bus, newID)

	// --- WS Hub & Server ---
	hub := ws.NewHub(bus)
	wsServer := ws.NewServer(hub, memberSvc, bus, cfg.HTTP.CORSOrigins)

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, memberSvc, chatSvc, httpx.Config{
		Cookie: httpmw.SessionCookie{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.Secure,
		},
		LandingPath: cfg.HTTP.LandingPath,
		IndexFile:   cfg.HTTP.IndexFile,
	})
	router := httpx.NewRouter(handler, memberSvc, wsServer, httpx.RouterConfig{
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := httpserver.New(httpserver.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)

	// --- gRPC (health) ---
	grpcSrv := grpcx.New(cfg.GRPC.Addr, func(ctx context.Context) error {
		return redisstore.Ping(ctx, db)
	}, cfg.GRPC.HealthInterval)

	// --- run both servers ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer hub.CloseAll()
		return httpSrv.Run(gctx)
	})

	g.Go(func() error {
		if err := grpcSrv.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.Stop(stopCtx)
		return nil
	})

	return g.Wait()
}

func newBus(cfg *config.Config, db *redis.Client) (broadcast.Bus, error) {
	switch cfg.Broadcast.Backend {
	case config.BroadcastNATS:
		nb, err := broadcast.ConnectNATS(cfg.Broadcast.NATSURL, cfg.Logging.Service)
		if err != nil {
			return nil, err
		}
		return nb, nil
	default:
		return broadcast.NewRedisBus(db), nil
	}
}
