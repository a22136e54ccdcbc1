package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/hellolucient/nether-chat-sub000/internal/auth"
	"github.com/hellolucient/nether-chat-sub000/internal/config"
	"github.com/hellolucient/nether-chat-sub000/internal/credentials"
	"github.com/hellolucient/nether-chat-sub000/internal/db"
	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
	"github.com/hellolucient/nether-chat-sub000/internal/gifs"
	"github.com/hellolucient/nether-chat-sub000/internal/grants"
	"github.com/hellolucient/nether-chat-sub000/internal/handlers"
	"github.com/hellolucient/nether-chat-sub000/internal/logger"
	"github.com/hellolucient/nether-chat-sub000/internal/messages"
	"github.com/hellolucient/nether-chat-sub000/internal/readstate"
	"github.com/hellolucient/nether-chat-sub000/internal/server"
	"github.com/hellolucient/nether-chat-sub000/internal/syncer"
	"github.com/hellolucient/nether-chat-sub000/internal/unread"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideDBTX,
			provideGateway,
			auth.NewChallengeStore,
			credentials.NewService,
			provideGrantsService,
			messages.NewService,
			readstate.NewService,
			provideUnreadService,
			provideSyncerService,
			provideGifsService,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideChannelsHandler),
			provideServerHandler(provideMessagesHandler),
			provideServerHandler(provideAdminHandler),
			provideServerHandler(provideStickersHandler),
			provideServerHandler(provideUsersHandler),
			provideServerHandler(provideGifsHandler),
			provideServer,
		),
		fx.Invoke(
			wireInboundSink,
			startRetentionSweep,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBTX(conn *pgxpool.Pool) db.DBTX { return conn }

func provideGateway(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) *gateway.Adapter {
	adapter := gateway.NewAdapter(log, cfg.Discord.GuildID, cfg.Sync.HistoryPage)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { adapter.Close(); return nil }})
	return adapter
}

func provideGrantsService(log *slog.Logger, dbtx db.DBTX, cfg config.Config) *grants.Service {
	return grants.NewService(log, dbtx, cfg.Admin.Wallets)
}

func provideUnreadService(log *slog.Logger, grantSvc *grants.Service, readSvc *readstate.Service, msgSvc *messages.Service) *unread.Service {
	return unread.NewService(log, grantSvc, readSvc, msgSvc)
}

func provideSyncerService(log *slog.Logger, adapter *gateway.Adapter, msgSvc *messages.Service, credSvc *credentials.Service, cfg config.Config) *syncer.Service {
	return syncer.NewService(log, adapter, msgSvc, credSvc, cfg.Discord.BotToken, cfg.Sync.HistoryLimit)
}

func provideGifsService(log *slog.Logger, cfg config.Config) *gifs.Service {
	return gifs.NewService(log, cfg.Giphy.BaseURL, cfg.Giphy.APIKey)
}

func provideAuthHandler(log *slog.Logger, challenges *auth.ChallengeStore, cfg config.Config) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	return handlers.NewAuthHandler(log, challenges, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideChannelsHandler(log *slog.Logger, adapter *gateway.Adapter, grantSvc *grants.Service, credSvc *credentials.Service, unreadSvc *unread.Service, cfg config.Config) *handlers.ChannelsHandler {
	return handlers.NewChannelsHandler(log, adapter, grantSvc, credSvc, unreadSvc, cfg.Discord.BotToken)
}

func provideMessagesHandler(log *slog.Logger, msgSvc *messages.Service, readSvc *readstate.Service, grantSvc *grants.Service, adapter *gateway.Adapter, syncSvc *syncer.Service, credSvc *credentials.Service, cfg config.Config) *handlers.MessagesHandler {
	return handlers.NewMessagesHandler(log, msgSvc, readSvc, grantSvc, adapter, syncSvc, credSvc, cfg.Discord.BotToken)
}

func provideAdminHandler(log *slog.Logger, credSvc *credentials.Service, grantSvc *grants.Service, adapter *gateway.Adapter) *handlers.AdminHandler {
	return handlers.NewAdminHandler(log, credSvc, grantSvc, adapter)
}

func provideStickersHandler(log *slog.Logger, adapter *gateway.Adapter, credSvc *credentials.Service, cfg config.Config) *handlers.StickersHandler {
	return handlers.NewStickersHandler(log, adapter, credSvc, cfg.Discord.BotToken)
}

func provideUsersHandler(log *slog.Logger, adapter *gateway.Adapter, cfg config.Config) *handlers.UsersHandler {
	return handlers.NewUsersHandler(log, adapter, cfg.Discord.BotToken)
}

func provideGifsHandler(log *slog.Logger, gifSvc *gifs.Service) *handlers.GifsHandler {
	return handlers.NewGifsHandler(log, gifSvc)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers)
}

// wireInboundSink routes gateway push events into the message cache so the
// cache stays warm between explicit syncs.
func wireInboundSink(adapter *gateway.Adapter, msgSvc *messages.Service) {
	adapter.SetSink(msgSvc)
}

func startRetentionSweep(lc fx.Lifecycle, logger *slog.Logger, cfg config.Config, msgSvc *messages.Service) error {
	if cfg.Sync.RetentionHours <= 0 {
		return nil
	}
	retention := time.Duration(cfg.Sync.RetentionHours) * time.Hour
	c := cron.New()
	_, err := c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := msgSvc.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			logger.Error("retention sweep failed", slog.Any("error", err))
			return
		}
		if removed > 0 {
			logger.Info("retention sweep", slog.Int64("removed", removed))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { c.Start(); return nil },
		OnStop: func(ctx context.Context) error {
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
