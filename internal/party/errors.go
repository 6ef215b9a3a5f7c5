package party

import (
	"errors"
	"fmt"
)

var (
	// ErrBadWatchtowerSig means the SRS's own signature did not verify
	// against the trusted watchtower public key.
	ErrBadWatchtowerSig = errors.New("party: bad watchtower signature on snapshot")
	// ErrLengthMismatch means the fetched log does not have exactly
	// srs.Msg.LogLen entries.
	ErrLengthMismatch = errors.New("party: fetched log length does not match snapshot log_len")
	// ErrRootMismatch means the recomputed Merkle root does not match the
	// root committed to by the snapshot.
	ErrRootMismatch = errors.New("party: recomputed merkle root does not match snapshot")
)

// BadPartySigError reports that the PRR at the given 1-based log index
// failed to verify against its own claimed public key.
type BadPartySigError struct {
	Index uint64
}

func (e *BadPartySigError) Error() string {
	return fmt.Sprintf("party: bad party signature at log index %d", e.Index)
}
