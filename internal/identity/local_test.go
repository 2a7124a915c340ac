package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocal(t *testing.T) (*Local, *MemoryAccounts) {
	t.Helper()
	accounts := NewMemoryAccounts()
	p := NewLocal(accounts, NewTokens("test-secret", time.Hour), zap.NewNop())
	t.Cleanup(func() { _ = p.Close() })
	return p, accounts
}

func requireCode(t *testing.T, err error, want AuthCode) {
	t.Helper()
	code, ok := CodeOf(err)
	require.True(t, ok, "expected auth error, got %v", err)
	assert.Equal(t, want, code)
}

func TestLocal_CreateAndSignIn(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)

	created, err := p.CreateAccount(ctx, "Ann@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", created.Email)
	assert.NotEmpty(t, created.UID)
	assert.NotEmpty(t, p.Token())

	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, p.Current())

	signed, err := p.SignInWithPassword(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, signed.UID)
}

func TestLocal_CreateAccountErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)

	_, err := p.CreateAccount(ctx, "not-an-email", "secret1")
	requireCode(t, err, CodeInvalidEmail)

	_, err = p.CreateAccount(ctx, "ann@example.com", "12345")
	requireCode(t, err, CodeWeakPassword)

	_, err = p.CreateAccount(ctx, "ann@example.com", "123456")
	require.NoError(t, err)
	_, err = p.CreateAccount(ctx, "ANN@example.com", "123456")
	requireCode(t, err, CodeEmailInUse)
}

func TestLocal_WrongPasswordAndThrottle(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)

	_, err := p.CreateAccount(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignInWithPassword(ctx, "nobody@example.com", "secret1")
	requireCode(t, err, CodeInvalidCredential)

	for i := 0; i < defaultFailureLimit; i++ {
		_, err = p.SignInWithPassword(ctx, "ann@example.com", "wrong")
		requireCode(t, err, CodeInvalidCredential)
	}

	_, err = p.SignInWithPassword(ctx, "ann@example.com", "secret1")
	requireCode(t, err, CodeTooManyRequests)
}

func TestThrottle_WindowExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	th := NewThrottle(2, time.Minute)
	th.now = func() time.Time { return now }

	th.Fail("a")
	th.Fail("a")
	assert.False(t, th.Allowed("a"))
	assert.True(t, th.Allowed("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, th.Allowed("a"))

	th.Fail("a")
	th.Reset("a")
	assert.True(t, th.Allowed("a"))
}

func TestLocal_Resume(t *testing.T) {
	ctx := context.Background()
	accounts := NewMemoryAccounts()
	tokens := NewTokens("test-secret", time.Hour)

	first := NewLocal(accounts, tokens, zap.NewNop())
	created, err := first.CreateAccount(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	token := first.Token()

	second := NewLocal(accounts, tokens, zap.NewNop())
	resumed, err := second.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.UID, resumed.UID)

	_, err = second.Resume(ctx, token+"x")
	requireCode(t, err, CodeInvalidToken)

	other := NewLocal(accounts, NewTokens("other-secret", time.Hour), zap.NewNop())
	_, err = other.Resume(ctx, token)
	requireCode(t, err, CodeInvalidToken)
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens("s", time.Minute)
	now := time.Now()
	tokens.now = func() time.Time { return now }

	signed, err := tokens.Issue(Identity{UID: "u1", Email: "a@b.c"})
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	now = now.Add(2 * time.Minute)
	_, err = tokens.Parse(signed)
	assert.Error(t, err)
}

func TestLocal_AuthStateChanges(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)

	events := make(chan *Identity, 8)
	cancel := p.OnAuthStateChange(func(id *Identity) { events <- id })
	defer cancel()

	next := func() *Identity {
		select {
		case id := <-events:
			return id
		case <-time.After(time.Second):
			t.Fatal("no auth event")
			return nil
		}
	}

	assert.Nil(t, next())

	created, err := p.CreateAccount(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	got := next()
	require.NotNil(t, got)
	assert.Equal(t, created.UID, got.UID)

	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, next())

	cancel()
	cancel()
}

func TestWithSecondarySession(t *testing.T) {
	ctx := context.Background()
	accounts := NewMemoryAccounts()
	tokens := NewTokens("test-secret", time.Hour)
	throttle := NewThrottle(5, time.Minute)

	primary := NewLocal(accounts, tokens, zap.NewNop())
	admin, err := primary.CreateAccount(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	var opened []*Local
	factory := func() (Provider, error) {
		p := NewLocal(accounts, tokens, zap.NewNop(), WithThrottle(throttle))
		opened = append(opened, p)
		return p, nil
	}

	t.Run("success keeps primary session", func(t *testing.T) {
		err := WithSecondarySession(ctx, factory, func(ctx context.Context, p Provider) error {
			_, err := p.CreateAccount(ctx, "staff@example.com", "secret1")
			return err
		})
		require.NoError(t, err)
		assert.Nil(t, opened[len(opened)-1].Current())
		assert.Equal(t, admin.UID, primary.Current().UID)
	})

	t.Run("failure still signs out", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithSecondarySession(ctx, factory, func(ctx context.Context, p Provider) error {
			if _, err := p.CreateAccount(ctx, "staff2@example.com", "secret1"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, opened[len(opened)-1].Current())
	})

	t.Run("panic still signs out", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = WithSecondarySession(ctx, factory, func(ctx context.Context, p Provider) error {
				_, _ = p.CreateAccount(ctx, "staff3@example.com", "secret1")
				panic("boom")
			})
		})
		assert.Nil(t, opened[len(opened)-1].Current())
	})

	t.Run("factory error", func(t *testing.T) {
		err := WithSecondarySession(ctx, func() (Provider, error) {
			return nil, errors.New("no app")
		}, func(ctx context.Context, p Provider) error { return nil })
		assert.Error(t, err)
	})
}

func TestFriendlyMessage(t *testing.T) {
	assert.Equal(t, "Invalid email or password. Please try again.",
		FriendlyMessage(authError(CodeInvalidCredential), DefaultLoginMessage))
	assert.Equal(t, "This email address is already registered. Please login.",
		FriendlyMessage(authError(CodeEmailInUse), DefaultRegistrationMessage))
	assert.Equal(t, DefaultLoginMessage, FriendlyMessage(errors.New("network"), DefaultLoginMessage))
}

func TestIdentity_EmailLocalPart(t *testing.T) {
	assert.Equal(t, "ann", Identity{Email: "ann@example.com"}.EmailLocalPart())
	assert.Equal(t, "plain", Identity{Email: "plain"}.EmailLocalPart())
}
