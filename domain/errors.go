package domain

import "fmt"

// FetchError wraps network and feed-parse failures.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DateParseError reports a timestamp that matched none of the accepted layouts.
type DateParseError struct {
	Field string
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// StoreError wraps lookup and write failures against the state store.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PublishError is a non-fatal, per-item publish failure.
type PublishError struct {
	StatusCode int
	Err        error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("publish: %v", e.Err)
	}
	return fmt.Sprintf("publish: unexpected status %d", e.StatusCode)
}

func (e *PublishError) Unwrap() error { return e.Err }
