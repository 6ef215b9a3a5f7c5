package gossip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forestrie/roster-attestation/internal/signing"
	"github.com/forestrie/roster-attestation/internal/wire"
)

func signedSRS(t *testing.T, priv []byte, epoch, logLen uint64, root byte) wire.SRS {
	t.Helper()
	msg := wire.SnapshotMessage{
		Epoch:      epoch,
		LogLen:     logLen,
		MerkleRoot: append(make([]byte, 31), root),
	}
	sig, err := signing.SignStruct(priv, msg)
	require.NoError(t, err)
	return wire.SRS{Msg: msg, SigWatchtower: sig}
}

func TestDetectorEquivocationAdjacent(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	d := NewDetector(pub, nil)

	ev, err := d.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 5, 0xAA)})
	require.NoError(t, err)
	require.Nil(t, ev)

	ev, err = d.Receive(wire.GossipSnapshot{FromPartyID: 2, SRS: signedSRS(t, priv, 1, 5, 0xBB)})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, uint64(1), ev.Epoch)
	require.Equal(t, uint64(5), ev.LogLen)
	require.Equal(t, byte(0xAA), ev.Prior.Msg.MerkleRoot[31])
	require.Equal(t, byte(0xBB), ev.New.Msg.MerkleRoot[31])
}

func TestDetectorDoesNotFlagConsistentSnapshots(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	d := NewDetector(pub, nil)

	_, err = d.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 5, 0xAA)})
	require.NoError(t, err)
	ev, err := d.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 6, 0xCC)})
	require.NoError(t, err)
	require.Nil(t, ev, "a longer, consistent snapshot is not an equivocation")
}

func TestDetectorRejectsBadSignature(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	srs := signedSRS(t, priv, 1, 1, 0xAA)
	srs.SigWatchtower[0] ^= 0xFF

	d := NewDetector(pub, nil)
	_, err = d.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: srs})
	require.ErrorIs(t, err, ErrBadWatchtowerSig)
}

func TestDetectorMissesNonAdjacentEquivocation(t *testing.T) {
	// Documents the single-slot limitation the §9 design note calls out:
	// log_len=5(A), then log_len=6, then a conflicting log_len=5(B) is
	// NOT caught because the slot has moved on.
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	d := NewDetector(pub, nil)

	_, err = d.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 5, 0xAA)})
	require.NoError(t, err)
	_, err = d.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 6, 0xCC)})
	require.NoError(t, err)

	ev, err := d.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 5, 0xBB)})
	require.NoError(t, err)
	require.Nil(t, ev)
}

func TestIndexCatchesNonAdjacentEquivocation(t *testing.T) {
	pub, priv, err := signing.GenerateKey()
	require.NoError(t, err)
	x := NewIndex(pub, nil)

	_, err = x.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 5, 0xAA)})
	require.NoError(t, err)
	_, err = x.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 6, 0xCC)})
	require.NoError(t, err)

	ev, err := x.Receive(wire.GossipSnapshot{FromPartyID: 1, SRS: signedSRS(t, priv, 1, 5, 0xBB)})
	require.NoError(t, err)
	require.NotNil(t, ev, "index variant must catch equivocations straddling a non-adjacent receive")
	require.Equal(t, uint64(5), ev.LogLen)
}
