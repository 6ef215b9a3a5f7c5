// Package party implements the party side of the protocol: end-to-end
// verification of a watchtower snapshot against the full log (spec.md
// §4.5), and the local roster/state a verified sync materializes into
// (spec.md §3).
package party

import (
	"bytes"
	"crypto/ed25519"

	"github.com/forestrie/roster-attestation/internal/canon"
	"github.com/forestrie/roster-attestation/internal/merkle"
	"github.com/forestrie/roster-attestation/internal/signing"
	"github.com/forestrie/roster-attestation/internal/wire"
)

// RosterEntry is the latest-seq record a party holds for one party_id.
type RosterEntry struct {
	Endpoint wire.Endpoint
	PKParty  []byte
	Seq      uint64
}

// Verify runs the full verification pipeline: watchtower signature on the
// snapshot, every party signature in the log, and the recomputed Merkle
// root. It is all-or-nothing — on any failure it returns a non-nil error
// and the caller must leave its local state untouched (spec.md §7).
//
// On success it returns the roster materialized from log, in log order:
// for each party_id the entry with the maximum seq, per spec.md §4.5.
func Verify(pubW ed25519.PublicKey, srs wire.SRS, log []wire.PRR) (map[uint64]RosterEntry, error) {
	if err := signing.VerifyStruct(pubW, srs.Msg, srs.SigWatchtower); err != nil {
		return nil, ErrBadWatchtowerSig
	}

	k := srs.Msg.LogLen
	if uint64(len(log)) != k {
		return nil, ErrLengthMismatch
	}

	leaves := make([][32]byte, len(log))
	for i, prr := range log {
		pkParty, err := signing.VerifyingKeyFromBytes(prr.Msg.PKParty)
		if err != nil {
			return nil, &BadPartySigError{Index: uint64(i) + 1}
		}
		if err := signing.VerifyStruct(pkParty, prr.Msg, prr.SigParty); err != nil {
			return nil, &BadPartySigError{Index: uint64(i) + 1}
		}

		h, err := canon.HashStruct(prr)
		if err != nil {
			return nil, &BadPartySigError{Index: uint64(i) + 1}
		}
		leaves[i] = h
	}

	root := merkle.Root(leaves)
	if !bytes.Equal(root[:], srs.Msg.MerkleRoot) {
		return nil, ErrRootMismatch
	}

	return MaterializeRoster(log), nil
}

// MaterializeRoster applies a log in order to produce the latest-seq
// roster view (spec.md §4.5). It is a pure function of the log: applying
// the same PRR set twice, or re-deriving from scratch on every sync,
// yields the same result (roster idempotence).
func MaterializeRoster(log []wire.PRR) map[uint64]RosterEntry {
	roster := make(map[uint64]RosterEntry, len(log))
	for _, prr := range log {
		pid := prr.Msg.PartyID
		existing, ok := roster[pid]
		if !ok || prr.Msg.Seq > existing.Seq {
			roster[pid] = RosterEntry{
				Endpoint: prr.Msg.Endpoint,
				PKParty:  prr.Msg.PKParty,
				Seq:      prr.Msg.Seq,
			}
		}
	}
	return roster
}
