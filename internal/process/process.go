// Package process exposes the raw-text entry points a host runtime calls:
// Handle, GetState, ClearState and Init. None of them fail observably.
package process

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/aoproc/internal/action"
	"github.com/mattjoyce/aoproc/internal/dispatch"
	"github.com/mattjoyce/aoproc/internal/log"
	"github.com/mattjoyce/aoproc/internal/protocol"
	"github.com/mattjoyce/aoproc/internal/state"
)

// Record kinds delivered to observers.
const (
	KindMessageHandled = "message.handled"
	KindStateCleared   = "state.cleared"
)

// Record describes one completed entry-point call.
type Record struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	MessageID      string    `json:"message_id,omitempty"`
	From           string    `json:"from"`
	Action         string    `json:"action,omitempty"`
	ResponseAction string    `json:"response_action"`
	ResponseData   string    `json:"response_data"`
	At             time.Time `json:"at"`
}

// Observer is notified after a response has been produced. Observers cannot
// change the response and a panicking observer is logged and skipped.
type Observer interface {
	Observe(rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec Record)

func (f ObserverFunc) Observe(rec Record) { f(rec) }

// Process owns the store and dispatcher for one hosting process.
type Process struct {
	store      *state.Store
	dispatcher *dispatch.Dispatcher
	observers  []Observer
	logger     *slog.Logger

	encode func(*protocol.Response) ([]byte, error)
	now    func() time.Time
}

// Option configures a Process.
type Option func(*Process)

// WithObserver adds an observer. Observers run in registration order.
func WithObserver(o Observer) Option {
	return func(p *Process) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// New wires a Process around st. If d is nil a dispatcher with default
// options is created over st.
func New(st *state.Store, d *dispatch.Dispatcher, opts ...Option) *Process {
	if d == nil {
		d = dispatch.New(st)
	}
	p := &Process{
		store:      st,
		dispatcher: d,
		logger:     log.WithComponent("process"),
		encode:     protocol.EncodeResponse,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init performs one-time logging setup. Calls after the first have no effect.
func Init(level, format string, w io.Writer) {
	log.SetupWith(level, format, w)
	log.Info("AO process initialized", "actions", action.Names())
}

// Store returns the process state store.
func (p *Process) Store() *state.Store { return p.store }

// Handle decodes raw, dispatches it and returns the encoded response. Any
// failure yields an encoded Error response instead.
func (p *Process) Handle(raw string) string {
	msg, err := protocol.DecodeMessage([]byte(raw))
	if err != nil {
		p.logger.Warn("rejecting malformed message", "error", err)
		resp := protocol.ErrorResponse(protocol.UnknownSender, err.Error())
		out, encErr := p.encode(resp)
		if encErr != nil {
			p.logger.Error("failed to encode parse error response", "error", encErr)
			return protocol.FallbackParseError
		}
		p.notify(Record{Kind: KindMessageHandled, From: protocol.UnknownSender, ResponseAction: resp.Action, ResponseData: resp.Data})
		return string(out)
	}

	resp := p.dispatcher.Dispatch(msg)
	requested, _ := msg.Tag(action.TagAction)

	out, err := p.encode(resp)
	if err != nil {
		log.WithMessage(p.logger, msg.ID).Error("failed to encode response", "error", err)
		return protocol.FallbackSerializationError
	}

	p.notify(Record{
		Kind:           KindMessageHandled,
		MessageID:      msg.ID,
		From:           msg.Sender(),
		Action:         requested,
		ResponseAction: resp.Action,
		ResponseData:   resp.Data,
	})
	return string(out)
}

// GetState returns the encoded store snapshot, or "{}" on any error.
func (p *Process) GetState() string {
	snapshot, err := p.store.List()
	if err != nil {
		p.logger.Error("error getting state", "error", err)
		return protocol.EmptyState
	}
	out, err := protocol.EncodeState(snapshot)
	if err != nil {
		p.logger.Error("error encoding state", "error", err)
		return protocol.EmptyState
	}
	return string(out)
}

// ClearState empties the store and reports whether it succeeded.
func (p *Process) ClearState() bool {
	if err := p.store.Clear(); err != nil {
		p.logger.Error("error clearing state", "error", err)
		return false
	}
	p.logger.Info("state cleared")
	p.notify(Record{Kind: KindStateCleared, From: protocol.UnknownSender, ResponseAction: "Clear-Response", ResponseData: "State cleared successfully"})
	return true
}

func (p *Process) notify(rec Record) {
	if len(p.observers) == 0 {
		return
	}
	rec.ID = uuid.NewString()
	rec.At = p.now()
	for _, o := range p.observers {
		p.observe(o, rec)
	}
}

func (p *Process) observe(o Observer, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("observer panicked", "panic", r, "kind", rec.Kind)
		}
	}()
	o.Observe(rec)
}
