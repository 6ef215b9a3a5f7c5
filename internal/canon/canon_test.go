package canon

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forestrie/roster-attestation/internal/wire"
)

func sampleRegMsg() wire.RegistrationMessage {
	return wire.RegistrationMessage{
		Epoch:    1,
		PartyID:  7,
		Endpoint: "10.0.0.7:9000",
		PKParty:  make([]byte, 32),
		Seq:      1,
		Nonce:    make([]byte, 16),
	}
}

func TestEncodeDeterministic(t *testing.T) {
	m := sampleRegMsg()
	a, err := Encode(m)
	require.NoError(t, err)
	b, err := Encode(m)
	require.NoError(t, err)
	require.Equal(t, a, b, "two encodings of the same value must be byte-identical")
}

func TestEncodeDistinguishesFields(t *testing.T) {
	m1 := sampleRegMsg()
	m2 := sampleRegMsg()
	m2.Seq = 2

	b1, err := Encode(m1)
	require.NoError(t, err)
	b2, err := Encode(m2)
	require.NoError(t, err)

	require.NotEqual(t, b1, b2)
}

func TestEncodeUnsupportedType(t *testing.T) {
	_, err := Encode(struct{ X int }{X: 1})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestHashStructStable(t *testing.T) {
	m := sampleRegMsg()
	h1, err := HashStruct(m)
	require.NoError(t, err)
	h2, err := HashStruct(m)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestHashEmpty(t *testing.T) {
	// SHA256("") is a fixed, well-known constant; pin it so a future change
	// to the hash primitive is caught immediately.
	h := Hash(nil)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hex.EncodeToString(h[:]))
}

// TestEncodeRegistrationMessagePinsReferenceVector pins enc() for
// RegistrationMessage against the literal RFC 8949 core-deterministic CBOR
// bytes it must produce: a 6-element array (toarray, no map keys), each
// field in declaration order, integers in their shortest form. This is the
// wire contract every party signature binds to, so a change to the CBOR
// options (e.g. array-vs-map, or a reordered field) must fail this test
// even though it would still pass the determinism/distinguishing checks
// above.
func TestEncodeRegistrationMessagePinsReferenceVector(t *testing.T) {
	m := sampleRegMsg()

	var want []byte
	want = append(want, 0x86) // array(6)
	want = append(want, 0x01) // epoch: uint(1)
	want = append(want, 0x07) // party_id: uint(7)
	want = append(want, 0x6d) // endpoint: text(13)
	want = append(want, []byte("10.0.0.7:9000")...)
	want = append(want, 0x58, 0x20) // pk_party: bytes(32)
	want = append(want, make([]byte, 32)...)
	want = append(want, 0x01) // seq: uint(1)
	want = append(want, 0x50) // nonce: bytes(16)
	want = append(want, make([]byte, 16)...)

	got, err := Encode(m)
	require.NoError(t, err)
	require.Equal(t, want, got, "RegistrationMessage must encode to the pinned CBOR reference vector")

	wantHash := Hash(want)
	gotHash, err := HashStruct(m)
	require.NoError(t, err)
	require.Equal(t, wantHash, gotHash)
}

// TestEncodeSnapshotMessagePinsReferenceVector is TestEncodeRegistrationMessagePinsReferenceVector's
// counterpart for SnapshotMessage, the other signable message type.
func TestEncodeSnapshotMessagePinsReferenceVector(t *testing.T) {
	m := wire.SnapshotMessage{
		Epoch:      1,
		LogLen:     3,
		MerkleRoot: make([]byte, 32),
	}

	var want []byte
	want = append(want, 0x83)       // array(3)
	want = append(want, 0x01)       // epoch: uint(1)
	want = append(want, 0x03)       // log_len: uint(3)
	want = append(want, 0x58, 0x20) // merkle_root: bytes(32)
	want = append(want, make([]byte, 32)...)

	got, err := Encode(m)
	require.NoError(t, err)
	require.Equal(t, want, got, "SnapshotMessage must encode to the pinned CBOR reference vector")

	wantHash := Hash(want)
	gotHash, err := HashStruct(m)
	require.NoError(t, err)
	require.Equal(t, wantHash, gotHash)
}
