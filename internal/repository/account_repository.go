package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/repository/base"
)

var _ identity.AccountStore = (*AccountRepository)(nil)

// AccountRepository keeps sign-in accounts in the accounts table
type AccountRepository struct {
	*base.Repository
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{Repository: base.NewRepository(pool)}
}

// GetByEmail returns the account or nil when absent
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	query := `
		SELECT uid, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`

	account, err := r.scan(ctx, query, identity.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

// GetByUID returns the account or nil when absent
func (r *AccountRepository) GetByUID(ctx context.Context, uid string) (*identity.Account, error) {
	query := `
		SELECT uid, email, password_hash, created_at
		FROM accounts
		WHERE uid = $1
	`

	account, err := r.scan(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("get account by uid: %w", err)
	}
	return account, nil
}

// Create inserts an account, identity.ErrAccountExists on a taken email
func (r *AccountRepository) Create(ctx context.Context, account *identity.Account) error {
	query := `
		INSERT INTO accounts (uid, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.ExecAffected(ctx, query,
		account.UID,
		identity.NormalizeEmail(account.Email),
		account.PasswordHash,
		account.CreatedAt,
	)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return identity.ErrAccountExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) scan(ctx context.Context, query string, arg string) (*identity.Account, error) {
	var a identity.Account
	err := r.QueryRow(ctx, query, arg).Scan(&a.UID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
