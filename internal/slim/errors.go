package slim

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection reports that the TCP connection to the server could not be established.
	ErrConnection = errors.New("connection error")

	// ErrTransport reports a socket failure after connect but before a full response line arrived.
	ErrTransport = errors.New("transport error")

	// ErrMalformedResponse reports a reply that cannot be framed, decoded or matched to its request.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoAnswer reports a question whose reply carried nothing past the echoed command.
	ErrNoAnswer = errors.New("no answer")
)

// PlayerError captures the failure of a single player lookup inside Players.
type PlayerError struct {
	Err      error
	PlayerID string
	Index    int
}

func (e *PlayerError) Error() string {
	if e.PlayerID == "" {
		return fmt.Sprintf("player %d: %v", e.Index, e.Err)
	}

	return fmt.Sprintf("player %d (%s): %v", e.Index, e.PlayerID, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}
