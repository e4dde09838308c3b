package notify

import "fmt"

// ErrSendFailed is returned by a channel when a message could not be
// delivered.
type ErrSendFailed struct {
	Channel string
	Cause   error
}

func (e *ErrSendFailed) Error() string {
	return fmt.Sprintf("notify: send failed on %s: %v", e.Channel, e.Cause)
}

func (e *ErrSendFailed) Unwrap() error { return e.Cause }

func sendFailed(channel string, format string, args ...any) error {
	return &ErrSendFailed{Channel: channel, Cause: fmt.Errorf(format, args...)}
}
