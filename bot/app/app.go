// Package app assembles the listing bot: questionnaire flow, review
// routing, subscriptions, and the background scheduler, wired onto the
// shared telegram runtime.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/engine"
	"github.com/dailyinfluencing/listingbot/bot/journal"
	"github.com/dailyinfluencing/listingbot/bot/paystack"
	"github.com/dailyinfluencing/listingbot/bot/review"
	"github.com/dailyinfluencing/listingbot/bot/scheduler"
	"github.com/dailyinfluencing/listingbot/bot/session"
	"github.com/dailyinfluencing/listingbot/bot/store"
	"github.com/dailyinfluencing/listingbot/bot/subscription"
	"github.com/dailyinfluencing/listingbot/core/bootstrap"
	coreconfig "github.com/dailyinfluencing/listingbot/core/config"
	corecmd "github.com/dailyinfluencing/listingbot/core/cmd"
	coredatabase "github.com/dailyinfluencing/listingbot/core/database"
	"github.com/dailyinfluencing/listingbot/core/logger"
	tg "github.com/dailyinfluencing/listingbot/core/telegram"
	"github.com/dailyinfluencing/listingbot/core/telegram/router"
)

// Config carries the loaded configuration into the shared cmd runner.
type Config struct {
	Core *coreconfig.Config
}

// CoreConfig satisfies the cmd.ConfigCarrier interface.
func (c Config) CoreConfig() *coreconfig.Config { return c.Core }

// LoadConfig reads and validates configuration for the cmd runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return Config{Core: cfg}, nil
}

// App is the fully wired bot.
type App struct {
	cfg *coreconfig.Config
	db  *sqlx.DB

	users    store.UserStore
	journal  *journal.Journal
	sessions session.Store

	engine    *engine.Engine
	review    *review.Service
	subs      *subscription.Service
	sched     *scheduler.Scheduler
	messenger *botMessenger

	registry     *tg.Registry
	stopSessions func() error
	cancelSched  context.CancelFunc
}

// Bootstrap builds the App from configuration: logger, database,
// migrations, journals, session backend, payment client, and services.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()

	// A malformed questionnaire catalog must stop the boot, not surface
	// mid-conversation.
	if err := catalog.ValidateAll(); err != nil {
		return nil, fmt.Errorf("app: catalog validation: %w", err)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg,
		Database: databaseConfig(cfg),
	})
	if err != nil {
		return nil, err
	}

	j, err := journal.New(cfg.Journal.Dir)
	if err != nil {
		return nil, fmt.Errorf("app: journal init: %w", err)
	}

	sessions, stopSessions, err := buildSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	payClient, err := paystack.New(cfg.Paystack.SecretKey, paystack.WithBaseURL(cfg.Paystack.BaseURL))
	if err != nil {
		return nil, err
	}

	users := store.NewPostgresStore(res.DB)
	messenger := newBotMessenger(cfg.Links.Support)

	reviewSvc, err := review.NewService(review.Options{
		Users:     users,
		Journal:   j,
		Messenger: messenger,
		Reviewers: cfg.Review.ReviewerIDs,
	})
	if err != nil {
		return nil, err
	}

	subsSvc, err := subscription.NewService(subscription.ServiceOptions{
		Users:   users,
		Journal: j,
		Gateway: payClient,
	})
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(scheduler.Options{
		Users:              users,
		Notifier:           messenger,
		ReminderInterval:   cfg.Scheduler.ReminderInterval,
		InactivityInterval: cfg.Scheduler.InactivityInterval,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:          cfg,
		db:           res.DB,
		users:        users,
		journal:      j,
		sessions:     sessions,
		engine:       engine.New(cfg.Links.CACAgent),
		review:       reviewSvc,
		subs:         subsSvc,
		sched:        sched,
		messenger:    messenger,
		registry:     tg.NewRegistry(),
		stopSessions: stopSessions,
	}
	a.registerCommands()
	a.registerCallbacks()
	return a, nil
}

// databaseConfig converts the config-local database section into the
// struct the database layer consumes.
func databaseConfig(cfg *coreconfig.Config) coredatabase.Config {
	return coredatabase.Config{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Name:           cfg.Database.Name,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: cfg.Database.MaxConnections,
	}
}

func buildSessionStore(cfg *coreconfig.Config) (session.Store, func() error, error) {
	switch cfg.Session.Backend {
	case coreconfig.SessionBackendRedis:
		s, err := session.NewRedisStore(context.Background(), cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("app: redis session store: %w", err)
		}
		var stop func() error
		if closer, ok := s.(io.Closer); ok {
			stop = closer.Close
		}
		return s, stop, nil
	default:
		return session.NewMemoryStore(), nil, nil
	}
}

// TelegramRunOptions exposes routes, middlewares and lifecycle hooks to
// the shared runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	gate := a.cooldownGate()

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		ReviewerIDs: a.cfg.Review.ReviewerIDs,
		OnReviewerReject: func(c tele.Context) error {
			return c.Send("You do not have permission to use this command.")
		},
		Gate: gate,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{Gate: gate}))
	routes = append(routes, router.MessageRoutes(&questionnaireFlow{app: a}, a.registry, router.MessageOptions{
		UnknownText:  a.handleUnknownText,
		UnknownMedia: a.handleUnknownMedia,
		Gate:         gate,
	})...)

	// Recover, rate limit, logger and metrics come from the runtime's
	// default chain; only bot-specific middleware is added here.
	middlewares := []tg.Middleware{
		{Name: "last_active", Use: a.lastActiveMiddleware()},
	}

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: middlewares,
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.messenger.Bind(rt.Bot, rt.Dispatcher)

	schedCtx, cancel := context.WithCancel(context.Background())
	a.cancelSched = cancel
	go func() {
		if err := a.sched.Run(schedCtx); err != nil && schedCtx.Err() == nil {
			logger.Error(schedCtx, "scheduler", "run_stopped", slog.String("err", err.Error()))
		}
	}()
	return nil
}

func (a *App) onStop(ctx context.Context, rt tg.Runtime) error {
	if a.cancelSched != nil {
		a.cancelSched()
	}
	if a.stopSessions != nil {
		if err := a.stopSessions(); err != nil {
			logger.Warn(ctx, "session", "close_failed", slog.String("err", err.Error()))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn(ctx, "db", "close_failed", slog.String("err", err.Error()))
		}
	}
	return nil
}
