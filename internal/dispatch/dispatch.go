// Package dispatch executes remote actions for confirmed button presses.
//
// Requests flow through a small bounded queue consumed by a single worker,
// so a slow Home Assistant instance cannot back the button path up: while a
// button already has a request in flight, further presses of that button
// are dropped, and when the queue is full the newest request is dropped.
// Each request gets one retry after a fixed delay; the final outcome is
// reported through a callback, never by blocking the caller.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/panelsync/internal/infrastructure/logging"
	"github.com/nerrad567/panelsync/internal/layout"
)

// Invoker performs the remote service call for an action.
type Invoker interface {
	CallService(ctx context.Context, domain, service, entityID string) error
}

// Request is one queued button action.
type Request struct {
	ID         uuid.UUID
	Button     int
	Action     layout.Action
	EnqueuedAt time.Time
}

// Outcome is the final result of a request.
type Outcome struct {
	Request  Request
	Attempts int
	Err      error
	Elapsed  time.Duration
}

// OK reports whether the action was delivered.
func (o Outcome) OK() bool { return o.Err == nil }

// OutcomeFunc receives final outcomes. It runs on the worker goroutine and
// must not block.
type OutcomeFunc func(Outcome)

// Config holds dispatcher settings.
type Config struct {
	// QueueSize caps queued requests.
	QueueSize int

	// Timeout bounds each remote call attempt.
	Timeout time.Duration

	// RetryDelay is the pause before the single retry.
	RetryDelay time.Duration
}

// Dispatcher serializes remote action execution.
type Dispatcher struct {
	invoker Invoker
	outcome OutcomeFunc
	logger  *logging.Logger

	timeout time.Duration
	retry   time.Duration
	queue   chan Request

	// inFly holds one slot per button; a filled slot means a request for
	// that button is queued or executing.
	inFly [layout.ButtonCount]chan struct{}
}

// New creates a dispatcher. outcome may be nil.
func New(cfg Config, invoker Invoker, outcome OutcomeFunc, logger *logging.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if outcome == nil {
		outcome = func(Outcome) {}
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		invoker: invoker,
		outcome: outcome,
		logger:  logger,
		timeout: cfg.Timeout,
		retry:   cfg.RetryDelay,
		queue:   make(chan Request, cfg.QueueSize),
	}
	for n := range d.inFly {
		d.inFly[n] = make(chan struct{}, 1)
	}
	return d
}

// Enqueue queues an action for a button. It returns false when the press is
// dropped because the button already has a request outstanding or the
// queue is full. It never blocks.
func (d *Dispatcher) Enqueue(button int, action layout.Action) bool {
	if button < 0 || button >= layout.ButtonCount {
		return false
	}
	select {
	case d.inFly[button] <- struct{}{}:
	default:
		d.logger.Debug("press dropped, dispatch already pending", "button", button)
		return false
	}

	req := Request{
		ID:         uuid.New(),
		Button:     button,
		Action:     action,
		EnqueuedAt: time.Now(),
	}
	select {
	case d.queue <- req:
		return true
	default:
		<-d.inFly[button]
		d.logger.Warn("press dropped, dispatch queue full", "button", button)
		return false
	}
}

// Run consumes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.queue:
			d.process(ctx, req)
			<-d.inFly[req.Button]
		}
	}
}

// process attempts the remote call, retrying once after the retry delay.
func (d *Dispatcher) process(ctx context.Context, req Request) {
	start := time.Now()
	var err error
	attempts := 0
	for attempts < 2 {
		attempts++
		err = d.attempt(ctx, req.Action)
		if err == nil || ctx.Err() != nil {
			break
		}
		d.logger.Warn("action failed",
			"id", req.ID, "button", req.Button,
			"target", req.Action.Target(), "attempt", attempts, "error", err)
		if attempts < 2 {
			select {
			case <-ctx.Done():
				d.report(req, attempts, ctx.Err(), start)
				return
			case <-time.After(d.retry):
			}
		}
	}
	d.report(req, attempts, err, start)
}

func (d *Dispatcher) attempt(ctx context.Context, action layout.Action) error {
	actx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.invoker.CallService(actx, action.Domain(), action.Service(), action.Target())
}

func (d *Dispatcher) report(req Request, attempts int, err error, start time.Time) {
	o := Outcome{Request: req, Attempts: attempts, Err: err, Elapsed: time.Since(start)}
	if err == nil {
		d.logger.Info("action dispatched",
			"id", req.ID, "button", req.Button,
			"service", req.Action.Domain()+"."+req.Action.Service(),
			"target", req.Action.Target(), "attempts", attempts)
	}
	d.outcome(o)
}
