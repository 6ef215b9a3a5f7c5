package gossip

import "errors"

// ErrBadWatchtowerSig is returned when a received SRS's own signature
// does not verify against the trusted watchtower public key; such a
// message is rejected outright and never reaches the equivocation check.
var ErrBadWatchtowerSig = errors.New("gossip: bad watchtower signature on received snapshot")
