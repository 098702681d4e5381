package client

import "time"

// Outcome is one liveness check as reported by the prober.
type Outcome struct {
	CheckedAt time.Time `json:"checked_at"`
	Detector  string    `json:"detector"`
	Liveness  string    `json:"liveness"` // present, absent or check_failed
	Action    string    `json:"action"`   // none or start
	PID       int       `json:"pid,omitempty"`
	ProbeErr  string    `json:"probe_error,omitempty"`
	SpawnErr  string    `json:"spawn_error,omitempty"`
}

// CheckResult is the response of POST /check.
type CheckResult struct {
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// ProcessInfo is one matching row of the remote process table.
type ProcessInfo struct {
	PID     int32  `json:"pid"`
	User    string `json:"user"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline"`
}

// ProcessList is the response of GET /processes.
type ProcessList struct {
	User      string        `json:"user"`
	Match     string        `json:"match"`
	Processes []ProcessInfo `json:"processes"`
}

// ProcessQuery overrides the server's configured filter. Nil fields keep it.
type ProcessQuery struct {
	User  *string
	Match string
}

type errorResp struct {
	Error string `json:"error"`
}
