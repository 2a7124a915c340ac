package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
)

// NewPool opens a connection pool and checks connectivity
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// insufficient_privilege
const codeInsufficientPrivilege = "42501"

// mapError converts database privilege errors into docstore permission errors
func mapError(op docstore.Op, path docstore.Path, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeInsufficientPrivilege {
		return &docstore.PermissionError{Op: op, Path: path}
	}
	return err
}
