package identity

import (
	"context"
	"errors"
	"fmt"
)

// WithSecondarySession runs fn against a provider instance isolated from the
// caller's own session, so creating an account there does not replace the
// caller's sign-in. The instance is signed out and closed on every path,
// including a panic in fn; teardown errors are joined to the result.
func WithSecondarySession(ctx context.Context, factory Factory, fn func(ctx context.Context, p Provider) error) (err error) {
	p, err := factory()
	if err != nil {
		return fmt.Errorf("open secondary session: %w", err)
	}

	defer func() {
		r := recover()

		if teardown := errors.Join(p.SignOut(ctx), p.Close()); teardown != nil {
			err = errors.Join(err, fmt.Errorf("tear down secondary session: %w", teardown))
		}

		if r != nil {
			panic(r)
		}
	}()

	return fn(ctx, p)
}
