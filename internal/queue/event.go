// Package queue defines message payloads exchanged over the message broker
// and the consumer that delivers them.
package queue

// PasswordResetQueue is the default durable queue for reset mail jobs.
const PasswordResetQueue = "auth.password_reset"

// PasswordResetRequested is published when a user asks for a reset link.
// It carries everything the mail sender needs without touching the
// database.  The raw token only appears inside ResetLink.
type PasswordResetRequested struct {
	UserID      string `json:"user_id"`
	To          string `json:"to"`
	Name        string `json:"name"`
	ResetLink   string `json:"reset_link"`
	RequestedAt string `json:"requested_at"`
}
