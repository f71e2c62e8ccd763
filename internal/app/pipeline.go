package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
)

// Stage names one step of a MissPipeline.
type Stage string

const (
	StageValidate Stage = "validate"
	StageFetch    Stage = "fetch"
	StageVerify   Stage = "verify"
	StageStore    Stage = "store"
)

// StageError records the stage a cache miss failed in. The cause keeps its
// domain classification, so errors.As still finds ValidationError and friends.
type StageError struct {
	Pipeline string
	Stage    Stage
	Cause    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Pipeline, e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// FailedStage reports the stage an error came from, if it came from a pipeline.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}

	return "", false
}

// MissPipeline resolves a cache miss for key K: reject bad keys before any
// upstream call, fetch, verify the answer and only then store it. A value
// that fails verification never reaches the cache.
type MissPipeline[K fmt.Stringer, V any] struct {
	Name string

	Validate func(ctx context.Context, key K) error
	Fetch    func(ctx context.Context, key K) (V, error)
	Verify   func(ctx context.Context, key K, value V) error

	// Store is best-effort; the caches log their own write failures.
	Store func(ctx context.Context, key K, value V)
}

// Run executes the stages in order. Each stage is recorded as an event on the
// span in ctx and failures are logged with the stage that produced them.
func (p MissPipeline[K, V]) Run(ctx context.Context, logger *slog.Logger, key K) (V, error) {
	var zero V

	logger = logging.FromContextOr(ctx, logger).With(
		slog.String("pipeline", p.Name),
		slog.String("key", key.String()))
	span := trace.SpanFromContext(ctx)
	start := time.Now()

	fail := func(stage Stage, err error) (V, error) {
		span.AddEvent(string(stage)+".failed", trace.WithAttributes(attribute.String("error", err.Error())))

		level := slog.LevelError
		if stage == StageValidate {
			level = slog.LevelWarn
		}

		logger.Log(ctx, level, "cache miss failed", slog.String("stage", string(stage)), slog.Any("error", err))

		return zero, &StageError{Pipeline: p.Name, Stage: stage, Cause: err}
	}

	if p.Validate != nil {
		if err := p.Validate(ctx, key); err != nil {
			return fail(StageValidate, err)
		}
	}

	span.AddEvent(string(StageFetch))

	value, err := p.Fetch(ctx, key)
	if err != nil {
		return fail(StageFetch, err)
	}

	if p.Verify != nil {
		if err := p.Verify(ctx, key, value); err != nil {
			return fail(StageVerify, err)
		}
	}

	if p.Store != nil {
		span.AddEvent(string(StageStore))
		p.Store(ctx, key, value)
	}

	logger.InfoContext(ctx, "cache miss resolved", slog.Duration("duration", time.Since(start)))

	return value, nil
}
