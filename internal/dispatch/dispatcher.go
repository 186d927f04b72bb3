package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattjoyce/aoproc/internal/action"
	"github.com/mattjoyce/aoproc/internal/log"
	"github.com/mattjoyce/aoproc/internal/metrics"
	"github.com/mattjoyce/aoproc/internal/protocol"
)

// ErrActionRequired is reported when a message carries no Action tag.
var ErrActionRequired = errors.New("Action is required")

// unknownActionLabel bounds the metrics label set for unrecognized actions.
const unknownActionLabel = "unknown"

// Dispatcher routes messages by their Action tag.
type Dispatcher struct {
	store    action.Store
	handlers map[string]action.HandlerFunc
	names    []string
	metrics  metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics sets the metrics sink. The default discards.
func WithMetrics(m metrics.Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithProcessName sets the name used in the Info greeting.
func WithProcessName(name string) Option {
	return func(d *Dispatcher) {
		d.handlers = action.Handlers(name)
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher over st with the standard action table.
func New(st action.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    st,
		handlers: action.Handlers(""),
		names:    action.Names(),
		metrics:  metrics.Nop(),
		logger:   log.WithComponent("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Actions returns the action names this dispatcher accepts, in advertised order.
func (d *Dispatcher) Actions() []string {
	return append([]string(nil), d.names...)
}

// Dispatch runs msg through its handler and always returns a response.
func (d *Dispatcher) Dispatch(msg *protocol.Message) *protocol.Response {
	if msg == nil {
		msg = &protocol.Message{}
	}
	start := time.Now()
	from := msg.Sender()

	name, ok := msg.Tag(action.TagAction)
	if !ok {
		d.logger.Debug("message without action", "from", from, "message_id", msg.ID)
		d.observe(unknownActionLabel, metrics.OutcomeFailed, start)
		return protocol.ErrorResponse(from, ErrActionRequired.Error())
	}

	handler, ok := d.handlers[name]
	if !ok {
		d.logger.Debug("unknown action", "action", name, "from", from)
		d.observe(unknownActionLabel, metrics.OutcomeError, start)
		return protocol.ErrorResponse(from, fmt.Sprintf(
			"Unknown action: %s. Available actions: %s", name, strings.Join(d.names, ", ")))
	}

	logger := log.WithMessage(log.WithAction(d.logger, name), msg.ID).With("from", from)
	logger.Debug("received message")

	resp, err := d.run(handler, msg)
	switch {
	case err != nil:
		logger.Warn("handler failed", "error", err)
		d.observe(name, metrics.OutcomeFailed, start)
		return protocol.ErrorResponse(from, err.Error())
	case resp == nil:
		logger.Error("handler returned no response")
		d.observe(name, metrics.OutcomeFailed, start)
		return protocol.ErrorResponse(from, "Internal error: empty response")
	case resp.IsError():
		d.observe(name, metrics.OutcomeError, start)
	default:
		d.observe(name, metrics.OutcomeOK, start)
	}

	logger.Debug("sending response", "response_action", resp.Action)
	return resp
}

// run calls handler, converting a panic into an error.
func (d *Dispatcher) run(handler action.HandlerFunc, msg *protocol.Message) (resp *protocol.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked", "panic", r)
			resp, err = nil, fmt.Errorf("Internal error: %v", r)
		}
	}()
	return handler(msg, d.store)
}

func (d *Dispatcher) observe(name, outcome string, start time.Time) {
	d.metrics.MessageHandled(name, outcome, time.Since(start))
	if n, err := d.store.Size(); err == nil {
		d.metrics.StateEntries(n)
	}
}
