package generation

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker around the backend.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used in production.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "bedrock",
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerBackend stops calling a failing backend for a while. For streams
// only opening the stream goes through the breaker.
type BreakerBackend struct {
	inner Backend
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerBackend wraps inner with a circuit breaker.
func NewBreakerBackend(inner Backend, cfg BreakerConfig, logger *zap.Logger) *BreakerBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A caller giving up is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerBackend{inner: inner, cb: cb}
}

func (b *BreakerBackend) ModelName() string { return b.inner.ModelName() }

// State exposes the breaker state for health reporting.
func (b *BreakerBackend) State() gobreaker.State { return b.cb.State() }

func (b *BreakerBackend) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Generate(ctx, prompt)
	})
	if err != nil {
		return "", breakerError(err)
	}
	return out.(string), nil
}

func (b *BreakerBackend) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.GenerateStream(ctx, prompt)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return out.(<-chan Chunk), nil
}

// Chat goes through the same breaker as the other calls. The wrapped
// backend must implement Chatter.
func (b *BreakerBackend) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	chatter, ok := b.inner.(Chatter)
	if !ok {
		return ChatReply{}, appErrors.NewInternal("generation backend does not support conversations", nil)
	}
	out, err := b.cb.Execute(func() (interface{}, error) {
		return chatter.Chat(ctx, req)
	})
	if err != nil {
		return ChatReply{}, breakerError(err)
	}
	return out.(ChatReply), nil
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return appErrors.NewGeneration("generation backend temporarily unavailable", err).WithCode("CIRCUIT_OPEN")
	}
	return err
}
