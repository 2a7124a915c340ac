package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ST10104037/hippocampus-site/internal/fifo"
)

var _ Provider = (*Local)(nil)

const (
	MinPasswordLength = 6

	defaultFailureLimit  = 5
	defaultFailureWindow = 15 * time.Minute
)

var validate = validator.New()

// Local is a Provider backed by an AccountStore with bcrypt password hashes
// and signed session tokens. One Local holds one session.
type Local struct {
	accounts AccountStore
	tokens   *Tokens
	throttle *Throttle
	logger   *zap.Logger

	mu        sync.Mutex
	current   *Identity
	token     string
	listeners map[int]*authListener
	nextID    int
	closed    bool
}

type authListener struct {
	queue *fifo.Queue[*Identity]
	done  chan struct{}
	once  sync.Once
}

func (al *authListener) stop() {
	al.once.Do(func() {
		al.queue.Close()
		close(al.done)
	})
}

type LocalOption func(*Local)

// WithThrottle shares failure counting between provider instances
func WithThrottle(t *Throttle) LocalOption {
	return func(l *Local) { l.throttle = t }
}

func NewLocal(accounts AccountStore, tokens *Tokens, logger *zap.Logger, opts ...LocalOption) *Local {
	l := &Local{
		accounts:  accounts,
		tokens:    tokens,
		logger:    logger.Named("identity"),
		listeners: make(map[int]*authListener),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.throttle == nil {
		l.throttle = NewThrottle(defaultFailureLimit, defaultFailureWindow)
	}
	return l
}

// LocalFactory returns a Factory of providers sharing accounts, tokens and throttle
func LocalFactory(accounts AccountStore, tokens *Tokens, throttle *Throttle, logger *zap.Logger) Factory {
	return func() (Provider, error) {
		return NewLocal(accounts, tokens, logger, WithThrottle(throttle)), nil
	}
}

func (l *Local) OnAuthStateChange(fn func(*Identity)) func() {
	al := &authListener{queue: fifo.New[*Identity](), done: make(chan struct{})}

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = al
	al.queue.Push(copyIdentity(l.current))
	l.mu.Unlock()

	go func() {
		for {
			ident, ok := al.queue.Next(al.done)
			if !ok {
				return
			}
			fn(ident)
		}
	}()

	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
		al.stop()
	}
}

func (l *Local) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	email = NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, authError(CodeInvalidEmail)
	}

	if !l.throttle.Allowed(email) {
		l.logger.Warn("Sign-in throttled", zap.String("email", email))
		return nil, authError(CodeTooManyRequests)
	}

	account, err := l.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		l.throttle.Fail(email)
		return nil, authError(CodeInvalidCredential)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		l.throttle.Fail(email)
		return nil, authError(CodeInvalidCredential)
	}
	l.throttle.Reset(email)

	ident := Identity{UID: account.UID, Email: account.Email}
	if err := l.setSession(ident); err != nil {
		return nil, err
	}

	l.logger.Info("Signed in", zap.String("uid", ident.UID))
	return &ident, nil
}

func (l *Local) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	email = NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, authError(CodeInvalidEmail)
	}
	if len(password) < MinPasswordLength {
		return nil, authError(CodeWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, authError(CodeEmailInUse)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	ident := Identity{UID: account.UID, Email: account.Email}
	if err := l.setSession(ident); err != nil {
		return nil, err
	}

	l.logger.Info("Account created", zap.String("uid", ident.UID))
	return &ident, nil
}

// Resume restores a session from a token issued earlier
func (l *Local) Resume(ctx context.Context, token string) (*Identity, error) {
	claims, err := l.tokens.Parse(token)
	if err != nil {
		return nil, &AuthError{Code: CodeInvalidToken, Err: err}
	}

	account, err := l.accounts.GetByUID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, authError(CodeInvalidToken)
	}

	ident := Identity{UID: account.UID, Email: account.Email}
	l.mu.Lock()
	l.current = &ident
	l.token = token
	l.notifyLocked()
	l.mu.Unlock()

	return &ident, nil
}

// Token returns the token of the current session, empty when signed out
func (l *Local) Token() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}

// Current returns the signed-in identity or nil
func (l *Local) Current() *Identity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyIdentity(l.current)
}

func (l *Local) SignOut(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return nil
	}
	l.current = nil
	l.token = ""
	l.notifyLocked()
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	for id, al := range l.listeners {
		al.stop()
		delete(l.listeners, id)
	}
	return nil
}

func (l *Local) setSession(ident Identity) error {
	token, err := l.tokens.Issue(ident)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = &ident
	l.token = token
	l.notifyLocked()
	return nil
}

func (l *Local) notifyLocked() {
	for _, al := range l.listeners {
		al.queue.Push(copyIdentity(l.current))
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
