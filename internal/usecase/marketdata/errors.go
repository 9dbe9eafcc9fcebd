package marketdata

import "fmt"

// FeedConnectionError is a transport failure; the feed recovers by reconnecting
type FeedConnectionError struct {
	Op  string // dial, subscribe, read
	Err error
}

func (e *FeedConnectionError) Error() string {
	return fmt.Sprintf("feed %s failed: %v", e.Op, e.Err)
}

func (e *FeedConnectionError) Unwrap() error {
	return e.Err
}

// MessageParseError describes one discarded feed message; it never leaves the feed task
type MessageParseError struct {
	Raw string
	Err error
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("malformed feed message: %v", e.Err)
}

func (e *MessageParseError) Unwrap() error {
	return e.Err
}
