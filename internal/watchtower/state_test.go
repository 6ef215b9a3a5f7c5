package watchtower

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forestrie/roster-attestation/internal/canon"
	"github.com/forestrie/roster-attestation/internal/merkle"
	"github.com/forestrie/roster-attestation/internal/signing"
	"github.com/forestrie/roster-attestation/internal/wire"
)

type testParty struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestParty(t *testing.T) testParty {
	t.Helper()
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	return testParty{pub: pub, priv: priv}
}

func (p testParty) register(t *testing.T, epoch, partyID, seq uint64, endpoint string) wire.PRR {
	t.Helper()
	msg := wire.RegistrationMessage{
		Epoch:    epoch,
		PartyID:  partyID,
		Endpoint: wire.Endpoint(endpoint),
		PKParty:  p.pub,
		Seq:      seq,
		Nonce:    make([]byte, 16),
	}
	sig, err := signing.SignStruct(p.priv, msg)
	require.NoError(t, err)
	return wire.PRR{Msg: msg, SigParty: sig}
}

func newLog(t *testing.T, epoch uint64) (*Log, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	return New(Config{Epoch: epoch}, priv, pub, nil), pub
}

func TestFreshEpochSingleParty(t *testing.T) {
	l, _ := newLog(t, 1)
	p7 := newTestParty(t)

	srs, err := l.Register(p7.register(t, 1, 7, 1, "10.0.0.7:9000"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), srs.Msg.LogLen)

	entries, err := l.Entries(1, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestThreePartiesInterleavedUpdates(t *testing.T) {
	l, _ := newLog(t, 1)
	p1, p2, p3 := newTestParty(t), newTestParty(t), newTestParty(t)

	_, err := l.Register(p1.register(t, 1, 1, 1, "10.0.0.1:9000"))
	require.NoError(t, err)
	_, err = l.Register(p2.register(t, 1, 2, 1, "10.0.0.2:9000"))
	require.NoError(t, err)
	_, err = l.Register(p3.register(t, 1, 3, 1, "10.0.0.3:9000"))
	require.NoError(t, err)

	srs, err := l.Register(p2.register(t, 1, 2, 2, "10.0.0.2:9001"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), srs.Msg.LogLen)

	stats := l.Stats()
	require.Equal(t, 3, stats.NumParties)
	require.Equal(t, uint64(4), stats.LogLen)
}

func TestReplayRejection(t *testing.T) {
	l, _ := newLog(t, 1)
	p2 := newTestParty(t)

	_, err := l.Register(p2.register(t, 1, 2, 1, "10.0.0.2:9000"))
	require.NoError(t, err)
	_, err = l.Register(p2.register(t, 1, 2, 2, "10.0.0.2:9001"))
	require.NoError(t, err)

	_, err = l.Register(p2.register(t, 1, 2, 2, "10.0.0.2:9001"))
	require.ErrorIs(t, err, ErrNonMonotonicSeq)

	require.Equal(t, uint64(2), l.Stats().LogLen, "rejected replay must not mutate the log")
}

func TestEpochMismatch(t *testing.T) {
	l, _ := newLog(t, 1)
	p := newTestParty(t)
	_, err := l.Register(p.register(t, 2, 1, 1, "x:1"))
	require.ErrorIs(t, err, ErrEpochMismatch)
}

func TestBadSignatureRejected(t *testing.T) {
	l, _ := newLog(t, 1)
	p := newTestParty(t)
	prr := p.register(t, 1, 1, 1, "x:1")
	prr.Msg.Endpoint = "tampered:1"

	_, err := l.Register(prr)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestFirstSeqNeedNotBeOne(t *testing.T) {
	l, _ := newLog(t, 1)
	p := newTestParty(t)

	srs, err := l.Register(p.register(t, 1, 1, 5, "x:1"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), srs.Msg.LogLen)

	_, err = l.Register(p.register(t, 1, 1, 6, "x:1"))
	require.NoError(t, err)
}

func TestEntriesBadRange(t *testing.T) {
	l, _ := newLog(t, 1)
	p := newTestParty(t)
	_, err := l.Register(p.register(t, 1, 1, 1, "x:1"))
	require.NoError(t, err)

	_, err = l.Entries(0, 1)
	require.ErrorIs(t, err, ErrBadRange)
	_, err = l.Entries(1, 0)
	require.ErrorIs(t, err, ErrBadRange)
	_, err = l.Entries(2, 1)
	require.ErrorIs(t, err, ErrBadRange)
	_, err = l.Entries(1, 2)
	require.ErrorIs(t, err, ErrBadRange)
}

func TestEmptySnapshot(t *testing.T) {
	l, _ := newLog(t, 1)
	srs, err := l.Snapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(0), srs.Msg.LogLen)
}

func TestSnapshotConsistency(t *testing.T) {
	l, _ := newLog(t, 1)
	p1, p2 := newTestParty(t), newTestParty(t)

	s1, err := l.Register(p1.register(t, 1, 1, 1, "a:1"))
	require.NoError(t, err)

	s2, err := l.Register(p2.register(t, 1, 2, 1, "b:1"))
	require.NoError(t, err)

	require.LessOrEqual(t, s1.Msg.LogLen, s2.Msg.LogLen)

	entriesAt1, err := l.Entries(1, s1.Msg.LogLen)
	require.NoError(t, err)

	leaves := make([][32]byte, len(entriesAt1))
	for i, e := range entriesAt1 {
		h, err := canon.HashStruct(e)
		require.NoError(t, err)
		leaves[i] = h
	}
	require.Equal(t, s1.Msg.MerkleRoot, merkle.Root(leaves)[:])
}

func TestWatchtowerPubKeyMatchesVerification(t *testing.T) {
	l, pub := newLog(t, 1)
	require.Equal(t, []byte(pub), l.WatchtowerPubKey())
}
