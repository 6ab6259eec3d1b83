// Package ezerr provides the tagged error taxonomy used across EZDB. Every
// public operation returns a value of this type (or wraps one) instead of
// panicking on malformed input; callers switch on Tag to decide whether an
// error is safe to surface to a client verbatim or must be logged and
// replaced with a generic message.
package ezerr

import (
	"errors"
	"fmt"
)

// Tag classifies an error for the worker pool's surface-or-log decision.
type Tag string

const (
	Io              Tag = "IO"
	Utf8            Tag = "UTF8"
	Structure       Tag = "STRUCTURE"
	Query           Tag = "QUERY"
	Deserialization Tag = "DESERIALIZATION"
	Authentication  Tag = "AUTHENTICATION"
	Crypto          Tag = "CRYPTO"
	Unimplemented   Tag = "UNIMPLEMENTED"
	NoBufferSpace   Tag = "NO_BUFFER_SPACE"
)

// Error is a tagged error value. It never originates from a panic recovery;
// callers construct it directly at the point a contract is violated.
type Error struct {
	Tag  Tag
	Text string
	err  error
}

func (e *Error) Error() string {
	if e.Text == "" {
		return string(e.Tag)
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Text)
}

func (e *Error) Unwrap() error { return e.err }

// New builds a tagged error from a message.
func New(tag Tag, text string) *Error {
	return &Error{Tag: tag, Text: text}
}

// Newf builds a tagged error from a format string.
func Newf(tag Tag, format string, args ...any) *Error {
	return &Error{Tag: tag, Text: fmt.Sprintf(format, args...)}
}

// Wrap attaches a tag to an existing error, keeping it reachable via errors.Unwrap.
func Wrap(tag Tag, text string, err error) *Error {
	return &Error{Tag: tag, Text: text, err: err}
}

// Is reports whether err is a tagged Error carrying tag.
func Is(err error, tag Tag) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Tag == tag
}
