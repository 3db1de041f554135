// Package queue defines the mail events exchanged over the message
// broker and the background worker that consumes them.
package queue

// MailQueueName is the durable queue carrying outbound mail requests.
const MailQueueName = "mail.send"

// Mail event kinds. The consumer (or a real delivery worker replacing
// it) picks the template from the kind.
const (
	MailKindVerification  = "verification"
	MailKindPasswordReset = "password_reset"
	MailKindWelcome       = "welcome"
)

// MailEvent is published whenever the auth core wants an email sent.
// It carries everything a delivery worker needs without querying the
// primary database. Code holds the plaintext verification code or
// reset token; it exists only in flight and is never persisted by the
// auth core.
type MailEvent struct {
	Kind     string `json:"kind"`
	To       string `json:"to"`
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
	QueuedAt string `json:"queued_at"`
}
