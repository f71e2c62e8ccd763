package marketwatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSite mimics the login endpoint and a cookie-protected stock page.
type fakeSite struct {
	logins     atomic.Int32
	pages      atomic.Int32
	loginDelay time.Duration
	rejectAuth atomic.Bool
	revoked    atomic.Bool
	lastForm   atomic.Value
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		time.Sleep(f.loginDelay)

		_ = r.ParseForm()
		f.lastForm.Store(r.PostForm)

		if f.rejectAuth.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		f.revoked.Store(false)
		http.SetCookie(w, &http.Cookie{Name: "djcs_session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/", http.StatusFound)
	})

	mux.HandleFunc("GET /login/page", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1>Sign in</h1></body></html>`))
	})

	mux.HandleFunc("GET /investing/stock/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		f.pages.Add(1)

		if _, err := r.Cookie("djcs_session"); err != nil || f.revoked.Load() {
			http.Redirect(w, r, "/login/page", http.StatusFound)
			return
		}

		if r.PathValue("symbol") != "msft" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(stockPage))
	})

	return mux
}

func newTestSource(t *testing.T, site *fakeSite, clock *fakeClock, withLogin bool) *Source {
	t.Helper()

	server := httptest.NewServer(site.handler())
	t.Cleanup(server.Close)

	cfg := Config{
		Name:       "competitor-source",
		BaseURL:    server.URL,
		PagePath:   "/investing/stock/%s",
		Username:   "trader@example.com",
		Password:   "hunter2",
		ClientID:   "client-123",
		Timeout:    2 * time.Second,
		SessionTTL: 30 * time.Minute,
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   10,
			Timeout:       time.Second,
			HalfOpenLimit: 1,
		},
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if withLogin {
		cfg.LoginURL = server.URL + "/login"
	}

	src, err := New(cfg)
	require.NoError(t, err)

	return src
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{PagePath: "/investing/stock/%s"})
	require.Error(t, err)
}

func TestFetchProfile_LogsInOnceAndReusesSession(t *testing.T) {
	site := &fakeSite{}
	src := newTestSource(t, site, &fakeClock{now: time.Now()}, true)

	for range 3 {
		enr, err := src.FetchProfile(context.Background(), "MSFT")
		require.NoError(t, err)
		assert.Len(t, enr.Competitors, 3)
		assert.NotNil(t, enr.Performance)
	}

	assert.Equal(t, int32(1), site.logins.Load())
	assert.Equal(t, int32(3), site.pages.Load())

	form, _ := site.lastForm.Load().(url.Values)
	assert.Equal(t, []string{"trader@example.com"}, form["username"])
	assert.Equal(t, []string{"client-123"}, form["client_id"])
}

func TestFetchProfile_SessionExpiryTriggersLogin(t *testing.T) {
	site := &fakeSite{}
	clock := &fakeClock{now: time.Now()}
	src := newTestSource(t, site, clock, true)

	_, err := src.FetchProfile(context.Background(), "MSFT")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	_, err = src.FetchProfile(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, int32(2), site.logins.Load())
}

func TestFetchProfile_RejectionReLogsInOnce(t *testing.T) {
	site := &fakeSite{}
	src := newTestSource(t, site, &fakeClock{now: time.Now()}, true)

	_, err := src.FetchProfile(context.Background(), "MSFT")
	require.NoError(t, err)

	site.revoked.Store(true)

	enr, err := src.FetchProfile(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Len(t, enr.Competitors, 3)

	assert.Equal(t, int32(2), site.logins.Load())
	assert.Equal(t, int32(3), site.pages.Load())
	assert.Equal(t, stateAuthenticated, src.session.state)
}

func TestFetchProfile_LoginRejected(t *testing.T) {
	site := &fakeSite{}
	site.rejectAuth.Store(true)
	src := newTestSource(t, site, &fakeClock{now: time.Now()}, true)

	_, err := src.FetchProfile(context.Background(), "MSFT")

	require.ErrorIs(t, err, ErrLoginRejected)
	assert.Zero(t, site.pages.Load())
	assert.Equal(t, stateUnauthenticated, src.session.state)
}

func TestFetchProfile_ConcurrentLoginsCoalesce(t *testing.T) {
	site := &fakeSite{loginDelay: 100 * time.Millisecond}
	src := newTestSource(t, site, &fakeClock{now: time.Now()}, true)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := src.FetchProfile(context.Background(), "MSFT")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), site.logins.Load())
	assert.Equal(t, 1, src.session.logins)
}

func TestFetchProfile_AnonymousRedirectIsRejection(t *testing.T) {
	site := &fakeSite{}
	src := newTestSource(t, site, &fakeClock{now: time.Now()}, false)

	_, err := src.FetchProfile(context.Background(), "MSFT")

	require.ErrorIs(t, err, ErrSessionRejected)
	assert.Zero(t, site.logins.Load())
	assert.Equal(t, int32(1), site.pages.Load(), "anonymous sessions cannot be refreshed")
}

func TestFetchProfile_UnknownSymbol(t *testing.T) {
	site := &fakeSite{}
	src := newTestSource(t, site, &fakeClock{now: time.Now()}, true)

	_, err := src.FetchProfile(context.Background(), "ZZZZ")

	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestSource_Health(t *testing.T) {
	src := newTestSource(t, &fakeSite{}, &fakeClock{now: time.Now()}, false)

	assert.Equal(t, "competitor-source", src.Name())
	assert.True(t, src.Optional())
	assert.NoError(t, src.Check(context.Background()))
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Services.Competitors = config.CompetitorsConfig{
		Enabled:  true,
		Name:     "competitor-source",
		BaseURL:  "https://www.marketwatch.com",
		LoginURL: "https://sso.example.com/login",
		PagePath: "/investing/stock/%s",
		ClientID: "abc",
	}

	out := FromConfig(cfg, nil)
	assert.Empty(t, out.LoginURL, "no credentials means anonymous scraping")

	cfg.Services.Competitors.Username = "user"
	cfg.Services.Competitors.Password = "pwd"

	out = FromConfig(cfg, nil)
	assert.Equal(t, "https://sso.example.com/login", out.LoginURL)
	assert.Equal(t, "user", out.Username)
}
