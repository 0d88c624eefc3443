/*
Package auth establishes and caches the authentication credential used by every
other component: the Session.

This file defines the Authenticator, which performs login/register calls against
the HTTP API, caches the resulting Session for silent resume, and invalidates it
on logout. No retries happen here; every retry decision belongs to the caller.
*/
package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"blobparty/internal/pkg/errs"
	"blobparty/internal/pkg/logx"
)

// API is the slice of the HTTP transport the Authenticator depends on.
type API interface {
	// Authenticate exchanges email/password for a session token; create
	// requests account registration first.
	Authenticate(ctx context.Context, email string, password string, create bool) (string, *errs.CustomError)
}

// Authenticator owns the cached Session and the credential operations.
type Authenticator struct {
	// api is the HTTP transport used for credential calls.
	api API

	// mu protects cached.
	mu sync.Mutex

	// cached is the session from the most recent successful login/register.
	cached *Session

	// structured logger with component context.
	logger zerolog.Logger
}

// NewAuthenticator constructs and returns a new Authenticator instance.
func NewAuthenticator(api API) *Authenticator {
	authLogger := logx.Logger().With().Str("component", "Authenticator").Logger()

	return &Authenticator{
		api:    api,
		logger: authLogger,
	}
}

// Register creates a new account and returns its fresh Session.
// The session is cached for silent resume.
func (a *Authenticator) Register(ctx context.Context, email string, password string) (*Session, *errs.CustomError) {
	return a.authenticate(ctx, email, password, true)
}

// Login authenticates an existing account and returns its fresh Session.
// The session is cached for silent resume.
func (a *Authenticator) Login(ctx context.Context, email string, password string) (*Session, *errs.CustomError) {
	return a.authenticate(ctx, email, password, false)
}

// authenticate performs a single credential exchange. One attempt, no retries.
func (a *Authenticator) authenticate(ctx context.Context, email string, password string, create bool) (*Session, *errs.CustomError) {
	token, customErr := a.api.Authenticate(ctx, email, password, create)
	if customErr != nil {
		return nil, customErr
	}

	session, customErr := sessionFromToken(token)
	if customErr != nil {
		return nil, customErr
	}

	a.mu.Lock()
	a.cached = session
	a.mu.Unlock()

	a.logger.Info().
		Str("user_id", session.UserID).
		Bool("created", create).
		Time("expires_at", session.ExpiresAt).
		Msg("Session established")

	return session, nil
}

// Resume returns the previously cached Session when it is still live, without
// contacting the server. It fails ErrUnauthenticated when no usable session
// is cached.
func (a *Authenticator) Resume() (*Session, *errs.CustomError) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached.Expired() {
		a.cached = nil
		return nil, errs.NewError(errs.ErrUnauthenticated)
	}

	return a.cached, nil
}

// Logout invalidates the cached Session. Idempotent.
func (a *Authenticator) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil {
		a.logger.Info().Str("user_id", a.cached.UserID).Msg("Session invalidated")
	}
	a.cached = nil
}
