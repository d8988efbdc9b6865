package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"imobot-backend/internal/domain"
)

// BreakerOptions tune the remote-first policy.
type BreakerOptions struct {
	// Timeout bounds a single remote call.
	Timeout time.Duration
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold uint32
	// Cooldown is how long an open circuit skips the remote extractor.
	Cooldown time.Duration
	Logger   *slog.Logger
}

// Breaker prefers the remote extractor and degrades to the local one on any
// remote failure. Repeated failures open a circuit so the remote is skipped
// until the cooldown elapses. Extract never returns an error.
type Breaker struct {
	remote  Extractor
	local   Extractor
	cb      *gobreaker.CircuitBreaker[*Result]
	timeout time.Duration
	logger  *slog.Logger
}

// NewBreaker wires remote and local behind a circuit breaker. A nil remote
// means every call goes to local.
func NewBreaker(remote, local Extractor, opts BreakerOptions) *Breaker {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := opts.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        "intent-remote",
		MaxRequests: 1,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A reply we could not parse still means the upstream is reachable,
		// and a caller that went away says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMalformed) || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("intent circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{remote: remote, local: local, cb: cb, timeout: opts.Timeout, logger: logger}
}

// State reports the circuit state ("closed", "half-open" or "open").
func (b *Breaker) State() string { return b.cb.State().String() }

// Extract implements Extractor.
func (b *Breaker) Extract(ctx context.Context, message string, session *domain.Session) (*Result, error) {
	if b.remote != nil {
		res, err := b.callRemote(ctx, message, session)
		if err == nil && res != nil {
			return res, nil
		}
		b.logger.Warn("intent classifier degraded to local", "session_id", session.ID, "state", session.State, "error", err)
	}
	res, err := b.local.Extract(ctx, message, session)
	if err != nil || res == nil {
		return guess(message, session.State), nil
	}
	return res, nil
}

// errCallerGone marks remote errors caused by the request context ending
// rather than by the upstream.
var errCallerGone = errors.New("caller went away")

func (b *Breaker) callRemote(ctx context.Context, message string, session *domain.Session) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("intent remote panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.cb.Execute(func() (*Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		res, err := b.remote.Extract(callCtx, message, session)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return res, err
	})
}
