// Package watchtower implements the single-writer, authenticated
// append-only log and snapshot/Merkle commitment protocol described in
// spec.md §4.4. It is the watchtower side of the roster-attestation
// protocol: parties submit signed registrations here and receive a
// watchtower-signed snapshot committing to the resulting log.
package watchtower

import (
	"crypto/ed25519"
	"sync"

	"go.uber.org/zap"

	"github.com/forestrie/roster-attestation/internal/canon"
	"github.com/forestrie/roster-attestation/internal/merkle"
	"github.com/forestrie/roster-attestation/internal/signing"
	"github.com/forestrie/roster-attestation/internal/wire"
)

// Config holds the fixed parameters of a Log for its process lifetime,
// mirroring the teacher's MassifCommitterConfig plain-struct idiom.
type Config struct {
	Epoch uint64
}

// Log is the watchtower's append-only log and snapshotter. The tuple
// (entries, lastSeq) is a single shared mutable resource serialized by mu,
// exactly as spec.md §5 requires: every Register/Snapshot/Entries call
// holds mu for its duration, so appends are linearizable and every
// snapshot observes a consistent (log, lastSeq) pair.
type Log struct {
	cfg  Config
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	log  *zap.SugaredLogger

	mu      sync.Mutex
	entries []wire.PRR
	lastSeq map[uint64]uint64
}

// New constructs a Log for the given epoch and watchtower keypair.
func New(cfg Config, priv ed25519.PrivateKey, pub ed25519.PublicKey, logger *zap.SugaredLogger) *Log {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Log{
		cfg:     cfg,
		priv:    priv,
		pub:     pub,
		log:     logger,
		lastSeq: make(map[uint64]uint64),
	}
}

// Register validates and, on success, appends prr to the log, then returns
// a fresh signed snapshot. Validation failures never mutate state: either
// both the lastSeq update and the append happen, or neither does.
func (l *Log) Register(prr wire.PRR) (wire.SRS, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prr.Msg.Epoch != l.cfg.Epoch {
		return wire.SRS{}, ErrEpochMismatch
	}

	pkParty, err := signing.VerifyingKeyFromBytes(prr.Msg.PKParty)
	if err != nil {
		return wire.SRS{}, ErrBadKey
	}

	if err := signing.VerifyStruct(pkParty, prr.Msg, prr.SigParty); err != nil {
		return wire.SRS{}, ErrBadSignature
	}

	pid := prr.Msg.PartyID
	seq := prr.Msg.Seq

	if last, ok := l.lastSeq[pid]; ok && seq <= last {
		return wire.SRS{}, ErrNonMonotonicSeq
	}

	l.lastSeq[pid] = seq
	l.entries = append(l.entries, prr)

	l.log.Infow("accepted registration",
		"epoch", l.cfg.Epoch, "party_id", pid, "seq", seq, "log_len", len(l.entries))

	return l.snapshotLocked()
}

// Snapshot returns a fresh signed commitment to the current log.
func (l *Log) Snapshot() (wire.SRS, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// snapshotLocked must be called with mu held.
func (l *Log) snapshotLocked() (wire.SRS, error) {
	leaves := make([][32]byte, len(l.entries))
	for i, prr := range l.entries {
		h, err := canon.HashStruct(prr)
		if err != nil {
			return wire.SRS{}, err
		}
		leaves[i] = h
	}
	root := merkle.Root(leaves)

	msg := wire.SnapshotMessage{
		Epoch:      l.cfg.Epoch,
		LogLen:     uint64(len(l.entries)),
		MerkleRoot: root[:],
	}
	sig, err := signing.SignStruct(l.priv, msg)
	if err != nil {
		return wire.SRS{}, err
	}
	return wire.SRS{Msg: msg, SigWatchtower: sig}, nil
}

// Entries returns a 1-indexed, inclusive copy of log[from:to].
func (l *Log) Entries(from, to uint64) ([]wire.PRR, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := uint64(len(l.entries))
	if from == 0 || to == 0 || from > to || to > k {
		return nil, ErrBadRange
	}

	out := make([]wire.PRR, to-from+1)
	copy(out, l.entries[from-1:to])
	return out, nil
}

// WatchtowerPubKey returns the watchtower's public key, for TOFU bootstrap
// by parties.
func (l *Log) WatchtowerPubKey() []byte {
	pk := make([]byte, len(l.pub))
	copy(pk, l.pub)
	return pk
}

// Stats is a read-only debug/health view over the log, not part of the
// core protocol (spec.md covers only register/snapshot/entries/pubkey);
// it backs the HTTP /stats endpoint.
type Stats struct {
	Epoch      uint64
	LogLen     uint64
	NumParties int
}

// Stats returns a snapshot of the current log statistics.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Epoch:      l.cfg.Epoch,
		LogLen:     uint64(len(l.entries)),
		NumParties: len(l.lastSeq),
	}
}
