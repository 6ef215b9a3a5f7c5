// Package statefile persists a party's internal/party.State to JSON and
// loads it back. Out-of-scope plumbing per spec.md §1 ("party local state
// file persistence") — no algorithmic content.
package statefile

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/forestrie/roster-attestation/internal/party"
	"github.com/forestrie/roster-attestation/internal/wire"
)

type srsFile struct {
	Epoch         uint64 `json:"epoch"`
	LogLen        uint64 `json:"log_len"`
	MerkleRootB64 string `json:"merkle_root_b64"`
	SigB64        string `json:"sig_watchtower_b64"`
}

type rosterEntryFile struct {
	Endpoint   string `json:"endpoint"`
	PKPartyB64 string `json:"pk_party_b64"`
	Seq        uint64 `json:"seq"`
}

type fileFormat struct {
	Epoch      uint64                     `json:"epoch"`
	PartyID    uint64                     `json:"party_id"`
	NextSeq    uint64                     `json:"next_seq"`
	CurrentSRS *srsFile                   `json:"current_srs,omitempty"`
	LastLogLen uint64                     `json:"last_log_len"`
	Roster     map[uint64]rosterEntryFile `json:"roster"`
}

// Load reads a party.State from path, resetting it if its persisted
// (epoch, party_id) differs from the ones given, or returns a fresh state
// for (epoch, partyID) if path does not exist yet.
func Load(path string, epoch, partyID uint64) (*party.State, error) {
	st, err := Peek(path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return party.NewState(epoch, partyID), nil
		}
		return nil, err
	}
	st.ResetIfChanged(epoch, partyID)
	return st, nil
}

// Peek reads a party.State from path exactly as persisted, with no
// epoch/party_id reset check. Used by commands like show-roster and
// gossip-send that only read existing state and have no epoch/party_id of
// their own to compare against.
func Peek(path string) (*party.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "statefile: reading %s", path)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, errors.Wrapf(err, "statefile: parsing %s", path)
	}

	st := &party.State{
		Epoch:      ff.Epoch,
		PartyID:    ff.PartyID,
		NextSeq:    ff.NextSeq,
		LastLogLen: ff.LastLogLen,
		Roster:     make(map[uint64]party.RosterEntry, len(ff.Roster)),
	}
	for pid, re := range ff.Roster {
		pk, err := base64.StdEncoding.DecodeString(re.PKPartyB64)
		if err != nil {
			return nil, errors.Wrapf(err, "statefile: decoding pk_party for party %d", pid)
		}
		st.Roster[pid] = party.RosterEntry{
			Endpoint: wire.Endpoint(re.Endpoint),
			PKParty:  pk,
			Seq:      re.Seq,
		}
	}
	if ff.CurrentSRS != nil {
		root, err := base64.StdEncoding.DecodeString(ff.CurrentSRS.MerkleRootB64)
		if err != nil {
			return nil, errors.Wrap(err, "statefile: decoding merkle_root")
		}
		sig, err := base64.StdEncoding.DecodeString(ff.CurrentSRS.SigB64)
		if err != nil {
			return nil, errors.Wrap(err, "statefile: decoding sig_watchtower")
		}
		st.CurrentSRS = &wire.SRS{
			Msg: wire.SnapshotMessage{
				Epoch:      ff.CurrentSRS.Epoch,
				LogLen:     ff.CurrentSRS.LogLen,
				MerkleRoot: root,
			},
			SigWatchtower: sig,
		}
	}

	return st, nil
}

// Save writes st to path as JSON.
func Save(path string, st *party.State) error {
	ff := fileFormat{
		Epoch:      st.Epoch,
		PartyID:    st.PartyID,
		NextSeq:    st.NextSeq,
		LastLogLen: st.LastLogLen,
		Roster:     make(map[uint64]rosterEntryFile, len(st.Roster)),
	}
	for pid, re := range st.Roster {
		ff.Roster[pid] = rosterEntryFile{
			Endpoint:   string(re.Endpoint),
			PKPartyB64: base64.StdEncoding.EncodeToString(re.PKParty),
			Seq:        re.Seq,
		}
	}
	if st.CurrentSRS != nil {
		ff.CurrentSRS = &srsFile{
			Epoch:         st.CurrentSRS.Msg.Epoch,
			LogLen:        st.CurrentSRS.Msg.LogLen,
			MerkleRootB64: base64.StdEncoding.EncodeToString(st.CurrentSRS.Msg.MerkleRoot),
			SigB64:        base64.StdEncoding.EncodeToString(st.CurrentSRS.SigWatchtower),
		}
	}

	out, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return errors.Wrap(err, "statefile: marshaling")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrapf(err, "statefile: writing %s", path)
	}
	return nil
}
