// Package dispatch routes decoded messages to action handlers.
//
// The dispatcher reads the Action tag from a message, looks up the matching
// handler and runs it against the shared state store. Its contract is total:
// Dispatch always returns a well-formed response.
//
// Error handling:
//   - Missing Action tag → Error response "Action is required"
//   - Unknown action → Error response listing the available actions
//   - Handler failure (returned error) → Error response carrying err.Error()
//   - Handler panic → recovered, Error response "Internal error: ..."
//   - Deliberate Error responses from handlers pass through unchanged
//
// Every Error response is addressed to the sender, or "unknown" when the
// message has no From.
//
// Dispatch is synchronous and holds no state between calls other than the
// store, so it is safe to call from many goroutines at once.
package dispatch
