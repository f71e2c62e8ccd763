package logging

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// Secret marks a value that must never reach a log sink, such as the
// competitor source client id or the market data API key.
type Secret string

// sensitiveKeys are attribute names whose values are always masked: the
// credentials this service holds and the headers that carry them.
var sensitiveKeys = []string{
	"password", "secret", "token", "credential", "credentials",
	"api_key", "apiKey", "apikey", "access_token", "accessToken",
	"authorization", "Authorization", "auth", "bearer",
	"cookie", "Cookie", "set-cookie", "Set-Cookie", "session",
}

var sensitiveValues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+`),
	regexp.MustCompile(`^eyJ[\w-]*\.eyJ[\w-]*\.[\w-]*$`), // JWT
	regexp.MustCompile(`^(pk|sk)_(live|test|integration)_\w+$`),
	regexp.MustCompile(`djcs_\w+=`), // competitor source session cookie
}

// DefaultRedactOptions returns the masq options used by every handler.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveKeys)+len(sensitiveValues)+3)

	for _, key := range sensitiveKeys {
		opts = append(opts, masq.WithFieldName(key))
	}

	for _, re := range sensitiveValues {
		opts = append(opts, masq.WithRegex(re))
	}

	return append(opts,
		masq.WithType[Secret](),
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr that masks sensitive data.
// Extra options add to the defaults.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), extra...)...)
}

// redactingHandler masks attributes for handlers that take no
// slog.HandlerOptions, such as the charm console handler.
type redactingHandler struct {
	next    slog.Handler
	replace func(groups []string, a slog.Attr) slog.Attr
	groups  []string
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler signature
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.replace(h.groups, a))
		return true
	})

	return h.next.Handle(ctx, masked)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		masked = append(masked, h.replace(h.groups, a))
	}

	return &redactingHandler{next: h.next.WithAttrs(masked), replace: h.replace, groups: h.groups}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string(nil), h.groups...), name)

	return &redactingHandler{next: h.next.WithGroup(name), replace: h.replace, groups: groups}
}
