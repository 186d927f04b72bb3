package api

import "github.com/mattjoyce/aoproc/internal/process"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	StateEntries  int    `json:"state_entries"`
}

// ClearResponse is returned by DELETE /state.
type ClearResponse struct {
	Cleared bool `json:"cleared"`
}

// JournalResponse is returned by GET /journal, newest record first.
type JournalResponse struct {
	Records []process.Record `json:"records"`
}
