package runner

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forestrie/roster-attestation/internal/api"
	"github.com/forestrie/roster-attestation/internal/client"
	"github.com/forestrie/roster-attestation/internal/party"
	"github.com/forestrie/roster-attestation/internal/signing"
	"github.com/forestrie/roster-attestation/internal/watchtower"
	"github.com/forestrie/roster-attestation/internal/wire"
)

func TestSyncOnceAppliesVerifiedState(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	log := watchtower.New(watchtower.Config{Epoch: 1}, priv, pub, nil)
	srv := httptest.NewServer(api.NewWatchtowerRouter(log, nil))
	defer srv.Close()

	partyPub, partyPriv, err := signing.GenerateKey()
	require.NoError(t, err)
	msg := wire.RegistrationMessage{
		Epoch: 1, PartyID: 7, Endpoint: "10.0.0.7:9000", PKParty: partyPub, Seq: 1, Nonce: make([]byte, 16),
	}
	sig, err := signing.SignStruct(partyPriv, msg)
	require.NoError(t, err)
	_, err = log.Register(wire.PRR{Msg: msg, SigParty: sig})
	require.NoError(t, err)

	wt := client.NewWatchtower(srv.URL)
	st := party.NewState(1, 7)
	r := New(wt, pub, st, time.Second, 100*time.Millisecond, nil)

	require.NoError(t, r.SyncOnce(context.Background()))
	require.Equal(t, uint64(1), st.LastLogLen)
	require.Contains(t, st.Roster, uint64(7))
	require.Equal(t, uint64(1), st.Roster[7].Seq)
}

func TestSyncOnceRejectsBadSnapshotSignature(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	log := watchtower.New(watchtower.Config{Epoch: 1}, priv, pub, nil)
	srv := httptest.NewServer(api.NewWatchtowerRouter(log, nil))
	defer srv.Close()

	wrongPub, _, err := signing.GenerateKey()
	require.NoError(t, err)

	wt := client.NewWatchtower(srv.URL)
	st := party.NewState(1, 7)
	r := New(wt, wrongPub, st, time.Second, 100*time.Millisecond, nil)

	err = r.SyncOnce(context.Background())
	require.Error(t, err)
}

func TestProbePeersSkipsSelfAndToleratesUnreachablePeers(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	log := watchtower.New(watchtower.Config{Epoch: 1}, priv, pub, nil)
	srv := httptest.NewServer(api.NewWatchtowerRouter(log, nil))
	defer srv.Close()

	wt := client.NewWatchtower(srv.URL)
	st := party.NewState(1, 7)
	st.Roster[7] = party.RosterEntry{Endpoint: "127.0.0.1:1", Seq: 1}
	st.Roster[8] = party.RosterEntry{Endpoint: "127.0.0.1:1", Seq: 1}

	r := New(wt, pub, st, time.Second, 50*time.Millisecond, nil)
	r.ProbePeers(context.Background())

	require.False(t, r.connected[7], "runner must never probe its own party_id")
	require.False(t, r.connected[8], "an unreachable peer must not be marked connected")
}

func TestTickDoesNotPanicWithNoPeers(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	log := watchtower.New(watchtower.Config{Epoch: 1}, priv, pub, nil)
	srv := httptest.NewServer(api.NewWatchtowerRouter(log, nil))
	defer srv.Close()

	wt := client.NewWatchtower(srv.URL)
	st := party.NewState(1, 7)
	r := New(wt, pub, st, time.Second, 50*time.Millisecond, nil)

	ticked := 0
	r.Tick(context.Background())
	ticked++
	require.Equal(t, 1, ticked)
}
