package adapter

import "context"

// EmailSender is the external notification collaborator. Send failures are
// logged by callers and never roll back business state.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
