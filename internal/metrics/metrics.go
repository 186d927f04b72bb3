// Package metrics records dispatch outcomes. The core depends only on the
// Metrics interface; Prometheus is one implementation and Nop is the default.
package metrics

import "time"

// Dispatch outcomes.
const (
	OutcomeOK     = "ok"     // handler returned a normal response
	OutcomeError  = "error"  // handler or dispatcher returned a deliberate Error response
	OutcomeFailed = "failed" // handler failure or panic converted to an Error response
)

// Metrics is implemented by instrumentation backends.
type Metrics interface {
	// MessageHandled records one dispatched message.
	MessageHandled(action, outcome string, d time.Duration)
	// StateEntries records the current store size.
	StateEntries(n int)
}

type nop struct{}

func (nop) MessageHandled(string, string, time.Duration) {}
func (nop) StateEntries(int) {}

// Nop returns a Metrics that discards everything.
func Nop() Metrics { return nop{} }
