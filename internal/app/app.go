// Package app builds the dashboard from its configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ST10104037/hippocampus-site/internal/config"
	"github.com/ST10104037/hippocampus-site/internal/controller"
	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/docstore/memory"
	"github.com/ST10104037/hippocampus-site/internal/docstore/postgres"
	"github.com/ST10104037/hippocampus-site/internal/docstore/redisfeed"
	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/repository"
	"github.com/ST10104037/hippocampus-site/internal/service"
	"github.com/ST10104037/hippocampus-site/internal/session"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

const shutdownTimeout = 5 * time.Second

// Services are the operations the UI and the CLI call
type Services struct {
	Profile  *service.ProfileService
	Admin    *service.AdminService
	Booking  *service.BookingService
	Account  *service.AccountService
	Sessions identity.Factory
}

type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool    *pgxpool.Pool
	redis   *redis.Client
	pgStore *postgres.Store
	store   docstore.Store

	profiles   *repository.ProfileRepository
	bookings   *repository.BookingRepository
	provider   *identity.Local
	registry   *subscription.Registry
	reconciler *view.Reconciler
	session    *session.Controller
	bot        *controller.BotController
	keeper     *SignInKeeper

	Services Services
}

// New wires the dashboard. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	policy, err := session.ParseRolePolicy(cfg.RolePolicy)
	if err != nil {
		return nil, err
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var accounts identity.AccountStore = identity.NewMemoryAccounts()
	if a.pool != nil {
		accounts = repository.NewAccountRepository(a.pool)
	}
	tokens := identity.NewTokens(cfg.JWTSecret, cfg.SessionTTL)
	throttle := identity.NewThrottle(5, 15*time.Minute)
	factory := identity.LocalFactory(accounts, tokens, throttle, logger)
	a.provider = identity.NewLocal(accounts, tokens, logger, identity.WithThrottle(throttle))

	a.profiles = repository.NewProfileRepository(a.store, cfg.AppID)
	a.bookings = repository.NewBookingRepository(a.store, cfg.AppID)

	a.Services = Services{
		Profile:  service.NewProfileService(a.profiles, logger),
		Admin:    service.NewAdminService(a.profiles, factory, logger),
		Booking:  service.NewBookingService(a.bookings, logger),
		Account:  service.NewAccountService(a.profiles, factory, logger),
		Sessions: factory,
	}

	sinks := view.Sinks{controller.NewLogSink(logger)}
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		a.bot = controller.NewBotController(b, cfg.TelegramChatID, a.Services.Admin, a.Services.Booking, logger)
		sinks = append(sinks, a.bot)
	}

	a.registry = subscription.NewRegistry(a.store, logger)
	a.reconciler = view.NewReconciler(a.registry, a.profiles, sinks, logger)
	a.session = session.NewController(a.provider, a.registry, a.reconciler, a.profiles, a.bookings, sinks, policy, logger)
	if a.bot != nil {
		a.bot.Bind(a.reconciler, a.session)
	}
	a.keeper = NewSignInKeeper(a.session, cfg.DashboardEmail, cfg.DashboardPassword, logger)

	logger.Info("Dashboard wired",
		zap.String("store", cfg.Store),
		zap.String("feed", cfg.Feed),
		zap.String("app_id", cfg.AppID),
		zap.String("role_policy", string(policy)),
		zap.Bool("telegram", a.bot != nil))
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if !a.cfg.UsesPostgres() {
		a.store = memory.New()
		return nil
	}

	pool, err := postgres.NewPool(ctx, a.cfg.DBDSN)
	if err != nil {
		return err
	}
	a.pool = pool

	var feed postgres.Feed = postgres.NewPGFeed(pool, postgres.DefaultChannel)
	if a.cfg.Feed == config.FeedRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		feed = redisfeed.New(a.redis, redisfeed.DefaultChannel)
	}

	a.pgStore = postgres.New(pool, feed, a.logger)
	a.store = a.pgStore
	return nil
}

// Migrate applies the database migrations; a no-op for the memory store
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	m, err := NewMigrator(a.pool, a.logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Run(ctx)
}

// Run serves until ctx is done or a component fails
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.pgStore != nil {
		g.Go(func() error {
			return a.pgStore.Run(ctx)
		})
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           NewRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if a.bot != nil {
		g.Go(func() error {
			return a.bot.Start(ctx)
		})
	}

	a.session.Start()
	g.Go(func() error {
		a.keeper.Run(ctx)
		return nil
	})

	err := g.Wait()
	a.session.Stop()
	a.reconciler.WaitFetches()
	a.logger.Info("Dashboard stopped")
	return err
}

// Close releases the database and redis connections
func (a *App) Close() {
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// BootstrapAdmin creates an admin account without an admin session. It is
// meant for the operator setting up an empty installation.
func (a *App) BootstrapAdmin(ctx context.Context, email, password string) (string, error) {
	var uid string
	err := identity.WithSecondarySession(ctx, a.Services.Sessions, func(ctx context.Context, p identity.Provider) error {
		created, err := p.CreateAccount(ctx, email, password)
		if err != nil {
			return err
		}
		uid = created.UID
		return a.profiles.Create(ctx, model.NewStaffProfile(created.UID, created.Email, model.RoleAdmin, time.Now()))
	})
	if err != nil {
		return "", fmt.Errorf("bootstrap admin: %w", err)
	}
	return uid, nil
}

// SignInAs builds a session for a one-off CLI operation without opening
// any subscription
func (a *App) SignInAs(ctx context.Context, email, password string) (*session.Context, error) {
	var sess *session.Context
	err := identity.WithSecondarySession(ctx, a.Services.Sessions, func(ctx context.Context, p identity.Provider) error {
		id, err := p.SignInWithPassword(ctx, email, password)
		if err != nil {
			return err
		}
		profile, err := a.profiles.Get(ctx, id.UID)
		if err != nil {
			return err
		}
		synthesized := profile == nil
		if synthesized {
			profile = model.DefaultProfile(id.UID, id.Email)
		}
		sess = &session.Context{
			Identity:    *id,
			Profile:     profile,
			Role:        profile.Role,
			Synthesized: synthesized,
			LoginAt:     time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Ping checks the database; the memory store is always reachable
func (a *App) Ping(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping(ctx)
}

func (a *App) SessionState() string {
	return a.session.State().String()
}

func (a *App) ActivePurposes() []subscription.Purpose {
	return a.registry.Active()
}
