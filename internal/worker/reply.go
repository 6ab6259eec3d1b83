package worker

import (
	"errors"

	"ezdb/internal/ezerr"
)

// Reply status bytes: the worker's three possible outcomes for one
// request (spec §4.7 item 4 — "a binary result table, an error message,
// or ACK").
const (
	statusAck   = 0
	statusOK    = 1
	statusError = 2
)

func ackFrame() []byte {
	return []byte{statusAck}
}

func okFrame(data []byte) []byte {
	return append([]byte{statusOK}, data...)
}

func encodeError(err error) []byte {
	tag, text := string(ezerr.Query), err.Error()
	var e *ezerr.Error
	if errors.As(err, &e) {
		tag, text = string(e.Tag), e.Text
	}
	out := make([]byte, 0, 1+len(tag)+1+len(text))
	out = append(out, statusError)
	out = append(out, tag...)
	out = append(out, 0)
	out = append(out, text...)
	return out
}
