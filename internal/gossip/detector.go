// Package gossip implements cross-party forwarding of signed snapshots,
// to detect a watchtower equivocating — signing two different logs for
// the same (epoch, log_len) — per spec.md §4.6.
package gossip

import (
	"bytes"
	"crypto/ed25519"
	"sync"

	"go.uber.org/zap"

	"github.com/forestrie/roster-attestation/internal/signing"
	"github.com/forestrie/roster-attestation/internal/wire"
)

// Evidence is the non-repudiable proof that a watchtower signed two
// distinct roster states at the same (epoch, log_len): both signed
// snapshots, retained exactly as received.
type Evidence struct {
	Epoch  uint64
	LogLen uint64
	Prior  wire.SRS
	New    wire.SRS
}

// Detector is the reference single-slot equivocation detector: it stores
// only the most recently received SRS. It catches equivocation pairs
// whose members happen to be the current slot and the incoming message —
// the minimum behavior the spec requires (§9); internal/gossip.Index
// below is the opt-in multi-slot upgrade.
type Detector struct {
	pubW ed25519.PublicKey
	log  *zap.SugaredLogger

	mu   sync.Mutex
	last *wire.SRS
}

// NewDetector constructs a single-slot detector trusting pubW.
func NewDetector(pubW ed25519.PublicKey, logger *zap.SugaredLogger) *Detector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Detector{pubW: pubW, log: logger}
}

// Receive verifies g's watchtower signature, then compares it against the
// held slot. If the slot holds an SRS at the same (epoch, log_len) but a
// different root, it reports Evidence and leaves the prior slot
// un-overwritten — both signed artifacts remain available. Otherwise it
// stores g as the new slot contents and returns (nil, nil): an
// acknowledgement, not an error.
func (d *Detector) Receive(g wire.GossipSnapshot) (*Evidence, error) {
	if err := signing.VerifyStruct(d.pubW, g.SRS.Msg, g.SRS.SigWatchtower); err != nil {
		return nil, ErrBadWatchtowerSig
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last != nil &&
		d.last.Msg.Epoch == g.SRS.Msg.Epoch &&
		d.last.Msg.LogLen == g.SRS.Msg.LogLen &&
		!bytes.Equal(d.last.Msg.MerkleRoot, g.SRS.Msg.MerkleRoot) {

		d.log.Warnw("equivocation detected",
			"epoch", g.SRS.Msg.Epoch, "log_len", g.SRS.Msg.LogLen, "from_party_id", g.FromPartyID)

		return &Evidence{
			Epoch:  g.SRS.Msg.Epoch,
			LogLen: g.SRS.Msg.LogLen,
			Prior:  *d.last,
			New:    g.SRS,
		}, nil
	}

	last := g.SRS
	d.last = &last
	return nil, nil
}

// Last returns the currently held SRS, if any, for diagnostics/seeding a
// fresh detector from persisted party state.
func (d *Detector) Last() *wire.SRS {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	srs := *d.last
	return &srs
}

// Seed primes the detector's slot, used when a party process restarts and
// reloads its last-known SRS from disk.
func (d *Detector) Seed(srs wire.SRS) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := srs
	d.last = &s
}
