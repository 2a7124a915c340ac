package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrAccountExists = errors.New("account already exists")

type Account struct {
	UID          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore persists accounts. Lookups return nil, nil when absent;
// Create returns ErrAccountExists for a duplicate email.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByUID(ctx context.Context, uid string) (*Account, error)
	Create(ctx context.Context, account *Account) error
}

// NormalizeEmail lowercases and trims an email for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryAccounts keeps accounts in process memory
type MemoryAccounts struct {
	mu      sync.RWMutex
	byUID   map[string]*Account
	byEmail map[string]*Account
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byUID:   make(map[string]*Account),
		byEmail: make(map[string]*Account),
	}
}

func (m *MemoryAccounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryAccounts) GetByUID(ctx context.Context, uid string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byUID[uid]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryAccounts) Create(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := NormalizeEmail(account.Email)
	if _, ok := m.byEmail[email]; ok {
		return ErrAccountExists
	}

	cp := *account
	cp.Email = email
	m.byUID[cp.UID] = &cp
	m.byEmail[email] = &cp
	return nil
}
