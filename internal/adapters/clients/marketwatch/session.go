package marketwatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
	"github.com/jsamuelsen/stockquote-service/internal/ports"
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
)

func (s sessionState) String() string {
	if s == stateAuthenticated {
		return "authenticated"
	}

	return "unauthenticated"
}

// maxDrain bounds how much of a login response is read before closing it.
const maxDrain = 64 << 10

// session is the login state shared by every request of a Source.
// Cookies live in the jar of the client; session only tracks whether they
// are believed valid. Concurrent logins collapse into one.
type session struct {
	client   *clients.Client
	loginURL string
	form     url.Values
	ttl      time.Duration
	timeout  time.Duration
	clock    ports.Clock
	logger   *slog.Logger

	group singleflight.Group

	mu        sync.Mutex
	state     sessionState
	expiresAt time.Time
	logins    int
}

// anonymous reports whether the source is scraped without logging in.
func (s *session) anonymous() bool {
	return s.loginURL == ""
}

func (s *session) valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == stateAuthenticated && s.clock.Now().Before(s.expiresAt)
}

// Ensure logs in unless the session is authenticated and unexpired.
func (s *session) Ensure(ctx context.Context) error {
	if s.anonymous() || s.valid() {
		return nil
	}

	ch := s.group.DoChan("login", func() (any, error) {
		if s.valid() {
			return nil, nil
		}

		// The login outlives any single caller; it is bounded by its own timeout.
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		return nil, s.login(loginCtx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Invalidate returns the session to unauthenticated after a rejection.
func (s *session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateUnauthenticated {
		s.logger.Info("session invalidated", slog.String("from", s.state.String()))
	}

	s.state = stateUnauthenticated
	s.expiresAt = time.Time{}
}

func (s *session) login(ctx context.Context) error {
	s.logger.DebugContext(ctx, "logging in",
		slog.String("login_url", s.loginURL),
		slog.String("username", s.form.Get("username")),
		slog.Any("client_id", logging.Secret(s.form.Get("client_id"))))

	resp, err := s.client.PostForm(ctx, s.loginURL, s.form)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrLoginRejected, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	s.mu.Lock()
	s.state = stateAuthenticated
	s.expiresAt = s.clock.Now().Add(s.ttl)
	s.logins++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session established", slog.Duration("ttl", s.ttl))

	return nil
}

// loginForm builds the credential form posted to the login endpoint. The
// connection and tenant values are fixed by the Dow Jones SSO form.
func loginForm(username, password, clientID string) url.Values {
	return url.Values{
		"username":   {username},
		"password":   {password},
		"client_id":  {clientID},
		"connection": {"DJldap"},
		"tenant":     {"sso"},
	}
}
