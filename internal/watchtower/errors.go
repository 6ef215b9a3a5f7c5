package watchtower

import "errors"

var (
	// ErrEpochMismatch is returned by Register when the submitted
	// registration's epoch does not match the watchtower's current epoch.
	ErrEpochMismatch = errors.New("watchtower: registration epoch does not match watchtower epoch")
	// ErrBadKey is returned when the registration's party public key does
	// not decode to a valid curve point.
	ErrBadKey = errors.New("watchtower: bad party public key")
	// ErrBadSignature is returned when the registration's party signature
	// does not verify.
	ErrBadSignature = errors.New("watchtower: bad party signature")
	// ErrNonMonotonicSeq is returned when the registration's seq does not
	// strictly increase over the last accepted seq for that party_id.
	ErrNonMonotonicSeq = errors.New("watchtower: seq is not strictly greater than the last accepted seq for this party")
	// ErrBadRange is returned by Entries for an invalid or out-of-bounds
	// [from, to] range.
	ErrBadRange = errors.New("watchtower: invalid entry range")
)
