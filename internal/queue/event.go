// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationCompletedEvent is published when a reservation job reaches a
// terminal outcome.  It carries enough information for downstream consumers
// to log, notify or feed analytics without touching the bot's own state.
type ReservationCompletedEvent struct {
	JobID       string `json:"job_id"`
	SessionID   string `json:"session_id"`
	LoginID     string `json:"login_id"`
	Status      int    `json:"status"` // 1 success, 0 failure/cancelled, -1 error
	Detail      string `json:"detail"`
	CompletedAt string `json:"completed_at"`
}
