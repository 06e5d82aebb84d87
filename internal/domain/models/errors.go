package models

import "fmt"

// ConnectionError is a transport-level push channel failure. It is retried
// automatically up to the configured attempt count; past that the connection
// stays errored until a manual reconnect.
type ConnectionError struct {
	Attempt int
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("push channel (attempt %d): %v", e.Attempt, e.Err)
	}
	return fmt.Sprintf("push channel: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchError is a REST history failure. Not auto-retried; the page counter is
// left unchanged so the same call retries cleanly.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch signals page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedResponseError means the REST payload had an unexpected shape.
// Fail-soft: the store is left untouched and pagination stops.
type MalformedResponseError struct {
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return "malformed signals response: " + e.Detail
}
