package library

import "log/slog"

// Notifier delivers out-of-band messages to users. The circulation engine
// only depends on this interface; delivery transport is an adapter concern.
type Notifier interface {
	Notify(user *UserAccount, subject, body string) error
}

// LogNotifier is the default Notifier: it writes the message to the log
// instead of delivering it anywhere.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(user *UserAccount, subject, body string) error {
	n.Log.Info("notification", "user", user.Username, "subject", subject, "body", body)
	return nil
}
