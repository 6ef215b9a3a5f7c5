package signing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forestrie/roster-attestation/internal/wire"
)

func sampleMsg() wire.RegistrationMessage {
	return wire.RegistrationMessage{
		Epoch:    1,
		PartyID:  7,
		Endpoint: "10.0.0.7:9000",
		PKParty:  make([]byte, 32),
		Seq:      1,
		Nonce:    make([]byte, 16),
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)

	msg := sampleMsg()
	sig, err := SignStruct(priv, msg)
	require.NoError(t, err)

	require.NoError(t, VerifyStruct(pub, msg, sig))
}

func TestVerifyRejectsFlippedMessageBit(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)

	msg := sampleMsg()
	sig, err := SignStruct(priv, msg)
	require.NoError(t, err)

	msg.Seq = 2
	require.ErrorIs(t, VerifyStruct(pub, msg, sig), ErrBadSignature)
}

func TestVerifyRejectsFlippedSignatureBit(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)

	msg := sampleMsg()
	sig, err := SignStruct(priv, msg)
	require.NoError(t, err)

	sig[0] ^= 0xFF
	require.ErrorIs(t, VerifyStruct(pub, msg, sig), ErrBadSignature)
}

func TestVerifyRejectsBadSignatureLength(t *testing.T) {
	pub, _, err := GenerateKey()
	require.NoError(t, err)

	require.ErrorIs(t, VerifyStruct(pub, sampleMsg(), []byte{1, 2, 3}), ErrBadSignatureLength)
}

func TestVerifyingKeyFromBytesRejectsBadLength(t *testing.T) {
	_, err := VerifyingKeyFromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadKey)
}

func TestVerifyingKeyFromBytesRejectsNonCanonicalPoint(t *testing.T) {
	// All-0xFF is not a valid Ed25519 point encoding.
	bad := make([]byte, 32)
	for i := range bad {
		bad[i] = 0xFF
	}
	_, err := VerifyingKeyFromBytes(bad)
	require.ErrorIs(t, err, ErrBadKey)
}

func TestSeedRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)

	seed := Seed(priv)
	pub2, priv2, err := FromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, []byte(pub), []byte(pub2))
	require.Equal(t, []byte(priv), []byte(priv2))
}
