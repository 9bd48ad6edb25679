package webhooks

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEvent         = errors.New("invalid event")
	ErrEndpointUnreachable  = errors.New("endpoint unreachable")
	ErrEndpointTimeout      = errors.New("endpoint timeout")
	ErrInvalidConfiguration = errors.New("invalid endpoint configuration")
	ErrDeliveryCancelled    = errors.New("delivery cancelled")
)

// NonSuccessStatusError is a response outside 2xx.
type NonSuccessStatusError struct {
	Code int
	Body string
}

func (e *NonSuccessStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("endpoint returned status %d", e.Code)
	}
	return fmt.Sprintf("endpoint returned status %d: %s", e.Code, e.Body)
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	return !errors.Is(err, ErrInvalidConfiguration) && !errors.Is(err, ErrDeliveryCancelled)
}
