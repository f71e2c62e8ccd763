// Package acl is the Anti-Corruption Layer in front of the market data API.
//
// External DTOs stay unexported in this package; callers only ever see
// domain types and domain errors. Translation follows one rule set:
//
//   - 404 on /v3/reference/tickers or an empty /prev result → [domain.ErrNotFound]
//   - 404 on /v1/open-close, a session other than the one asked for, a future
//     date or a date before coverage → [domain.ErrInvalidDate]
//   - 401/403 → permanent [domain.UpstreamError] (the key was rejected)
//   - 429, 5xx, transport failures, timeouts → retryable [domain.UpstreamError]
//
// Client-level errors ([clients.ErrCircuitOpen], [clients.ErrMaxRetriesExceeded],
// [clients.ErrRateLimited]) are translated to retryable upstream errors with
// the operation that failed as context.
//
// Building a provider:
//
//	client, _ := clients.New(&clients.Config{
//	    ServiceName:   "market-data",
//	    BaseURL:       "https://api.polygon.io",
//	    Retry:         config.RetryConfig{MaxAttempts: 1},
//	    RatePerMinute: 5,
//	    AuthFunc:      acl.BearerAuth(apiKey),
//	})
//	provider := acl.NewMarketDataProvider(acl.MarketDataConfig{Client: client})
package acl
