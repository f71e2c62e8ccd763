package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/clients"
	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

// maxResponseBytes caps what is decoded from one market data answer.
const maxResponseBytes = 1 << 20

// call describes one market data request.
type call struct {
	path      string
	operation string

	// notFound is what a 404 means for this endpoint. Nil falls back to a
	// generic resource NotFoundError.
	notFound error
}

// getJSON performs c and decodes a successful body into T. Every failure is
// already a domain error: transport and status failures go through
// MapHTTPError, and a body of the wrong shape is a permanent upstream error.
func getJSON[T any](ctx context.Context, client *clients.Client, c call) (*T, error) {
	service := client.ServiceName()

	resp, err := client.Get(ctx, c.path)
	if err != nil {
		return nil, MapHTTPError(nil, err, service, c.operation, c.notFound)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, MapHTTPError(resp, nil, service, c.operation, c.notFound)
	}

	var out T
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, domain.NewPermanentUpstreamError(service, c.operation+": unexpected response shape", err)
	}

	return &out, nil
}

func decodeJSON(r io.Reader, v any) error {
	if r == nil {
		return errors.New("response body is nil")
	}

	if err := json.NewDecoder(io.LimitReader(r, maxResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
