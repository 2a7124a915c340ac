package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/service"
	"github.com/ST10104037/hippocampus-site/internal/session"
)

const signInInterval = time.Minute

// SignInKeeper signs the dashboard account in at start and again whenever
// the session ended, for example after the database was unreachable.
type SignInKeeper struct {
	session  *session.Controller
	email    string
	password string
	interval time.Duration
	logger   *zap.Logger
}

func NewSignInKeeper(ctl *session.Controller, email, password string, logger *zap.Logger) *SignInKeeper {
	return &SignInKeeper{
		session:  ctl,
		email:    email,
		password: password,
		interval: signInInterval,
		logger:   logger.Named("signin"),
	}
}

// Run blocks until ctx is done
func (k *SignInKeeper) Run(ctx context.Context) {
	if k.email == "" {
		k.logger.Info("No dashboard account configured, waiting for sign-in")
		return
	}

	k.ensureSignedIn(ctx)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.ensureSignedIn(ctx)
		case <-ctx.Done():
			k.logger.Info("Sign-in keeper stopped")
			return
		}
	}
}

func (k *SignInKeeper) ensureSignedIn(ctx context.Context) {
	if k.session.State() != session.StateLoggedOut {
		return
	}

	if err := k.session.SignIn(ctx, k.email, k.password); err != nil {
		k.logger.Error("Failed to sign in",
			zap.String("email", k.email),
			zap.String("reason", service.ErrorMessage(err)),
			zap.Error(err))
		return
	}
	k.logger.Info("Dashboard account signed in", zap.String("email", k.email))
}
