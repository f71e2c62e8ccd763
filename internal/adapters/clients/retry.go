package clients

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
)

// backoff computes the wait before each retry.
type backoff struct {
	initial    time.Duration
	ceiling    time.Duration
	multiplier float64
	jitter     float64
	rand       func() float64
}

func newBackoff(cfg config.RetryConfig) backoff {
	return backoff{
		initial:    cfg.InitialInterval,
		ceiling:    cfg.MaxInterval,
		multiplier: cfg.Multiplier,
		jitter:     min(max(cfg.JitterFactor, 0), 1),
		rand:       rand.Float64, //nolint:gosec // jitter only
	}
}

// delay returns the wait before retry n (0 for the first retry). The base
// grows by multiplier per retry, stops at ceiling and is spread by ±jitter so
// clients that failed together do not retry together. A Retry-After from the
// failed attempt wins over a shorter computed delay, but never exceeds ceiling.
func (b backoff) delay(n int, cause error) time.Duration {
	base := float64(b.initial) * math.Pow(b.multiplier, float64(n))
	if b.ceiling > 0 {
		base = min(base, float64(b.ceiling))
	}

	d := time.Duration(base * (1 + b.jitter*(2*b.rand()-1)))

	var se *ServerError
	if errors.As(cause, &se) && se.RetryAfter > d {
		d = se.RetryAfter
		if b.ceiling > 0 {
			d = min(d, b.ceiling)
		}
	}

	return d
}

// transient reports whether a transport error is worth another attempt.
// Cancellation and deadlines belong to the caller and are final.
func transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}

	return 0
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// rewind restores a consumed request body before a retry.
func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return err
	}

	req.Body = body

	return nil
}
