package liveness

import "errors"

// ErrBadHandshake is returned when a peer's response does not match the
// expected 2-byte "OK" acknowledgement.
var ErrBadHandshake = errors.New("liveness: bad handshake response")
