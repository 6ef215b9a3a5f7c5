package party

import "github.com/forestrie/roster-attestation/internal/wire"

// State is a party's local view, resumed across process restarts via
// internal/statefile. Invariant (spec.md §3): for every party_id,
// Roster[party_id].Seq equals the maximum seq of any PRR observed for
// that id.
type State struct {
	Epoch      uint64
	PartyID    uint64
	NextSeq    uint64
	CurrentSRS *wire.SRS
	LastLogLen uint64
	Roster     map[uint64]RosterEntry
}

// NewState creates a fresh state for an (epoch, party_id) pair, with
// next_seq defaulting to 1 (the watchtower accepts any first seq, but a
// party with no prior state has no reason to start anywhere else).
func NewState(epoch, partyID uint64) *State {
	return &State{
		Epoch:   epoch,
		PartyID: partyID,
		NextSeq: 1,
		Roster:  make(map[uint64]RosterEntry),
	}
}

// ResetIfChanged re-initializes the state if epoch or partyID differs from
// what was persisted, matching original_source's state.rs: "If user
// changes epoch/party_id, reset the state to avoid confusion."
func (s *State) ResetIfChanged(epoch, partyID uint64) {
	if s.Epoch != epoch || s.PartyID != partyID {
		*s = *NewState(epoch, partyID)
	}
}

// ApplyVerifiedSync records the outcome of one successful Verify call.
// Because Verify recomputes the roster from scratch against the full
// fetched log every time, applying the same log twice reproduces the same
// roster (idempotence) — there's no incremental merge logic to get wrong.
func (s *State) ApplyVerifiedSync(srs wire.SRS, roster map[uint64]RosterEntry) {
	srsCopy := srs
	s.CurrentSRS = &srsCopy
	s.LastLogLen = srs.Msg.LogLen
	s.Roster = roster
}

// AdvanceSeq returns the seq to use for the next registration and records
// that it has been consumed. Mirrors original_source's
// `next_seq.saturating_add(1)` after a successful register.
func (s *State) AdvanceSeq() uint64 {
	seq := s.NextSeq
	if s.NextSeq < ^uint64(0) {
		s.NextSeq++
	}
	return seq
}
