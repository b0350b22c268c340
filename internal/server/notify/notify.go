// Package notify delivers login tokens to users. Delivery is best effort: the
// caller treats a failed send as a warning, never as a failed registration.
package notify

import (
	"context"
	"log/slog"
)

type Notifier interface {
	SendLoginToken(ctx context.Context, email, token string) error
}

// LogNotifier writes the token to the log instead of sending mail. It is used
// when no SMTP credentials are configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendLoginToken(ctx context.Context, email, token string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email simulation: login token", "email", email, "token", token)
	return nil
}
