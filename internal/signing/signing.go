// Package signing implements the protocol's single signature primitive:
// Ed25519 over SHA256(enc(msg)), for both party and watchtower keys. The
// core algorithm is one capability, "can be canonically encoded", applied
// polymorphically to RegistrationMessage and SnapshotMessage — no runtime
// dispatch beyond canon.Encode's type switch is needed.
package signing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"filippo.io/edwards25519"

	"github.com/forestrie/roster-attestation/internal/canon"
)

var (
	// ErrBadEncoding is returned when the message cannot be canonically
	// encoded prior to signing or verifying.
	ErrBadEncoding = errors.New("signing: could not canonically encode message")
	// ErrBadSignature is returned when a signature fails to verify against
	// the computed hash and the claimed public key.
	ErrBadSignature = errors.New("signing: signature verification failed")
	// ErrBadKey is returned when a claimed public key does not decode to a
	// valid, canonically-encoded point on the curve.
	ErrBadKey = errors.New("signing: public key is not a valid point encoding")
	// ErrBadSignatureLength is returned when a signature is not 64 bytes.
	ErrBadSignatureLength = errors.New("signing: signature must be 64 bytes")
)

// GenerateKey produces a fresh Ed25519 keypair for a watchtower or a party.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// FromSeed reconstructs a keypair from its 32-byte seed, as persisted by
// internal/keyfile.
func FromSeed(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, ErrBadKey
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return pub, priv, nil
}

// Seed extracts the 32-byte seed from a private key, for persistence.
func Seed(priv ed25519.PrivateKey) []byte {
	return priv.Seed()
}

// SignStruct computes Sign(sk, SHA256(enc(msg))).
func SignStruct(priv ed25519.PrivateKey, msg any) ([]byte, error) {
	h, err := canon.HashStruct(msg)
	if err != nil {
		return nil, ErrBadEncoding
	}
	return ed25519.Sign(priv, h[:]), nil
}

// VerifyStruct recomputes SHA256(enc(msg)) and strictly verifies sig
// against pk. It rejects malformed encodings, malformed signatures, and
// signatures that don't verify, each as a distinct error so callers can
// report the right failure kind.
func VerifyStruct(pk ed25519.PublicKey, msg any, sig []byte) error {
	if len(sig) != ed25519.SignatureSize {
		return ErrBadSignatureLength
	}
	if _, err := VerifyingKeyFromBytes(pk); err != nil {
		return err
	}
	h, err := canon.HashStruct(msg)
	if err != nil {
		return ErrBadEncoding
	}
	if !ed25519.Verify(pk, h[:], sig) {
		return ErrBadSignature
	}
	return nil
}

// VerifyingKeyFromBytes validates that raw is a canonical point encoding on
// the Ed25519 curve before it is trusted as a public key. crypto/ed25519's
// own Verify accepts any 32-byte string and only fails once a signature is
// checked against it; here we reject a bad point up front so a BadKey
// failure is distinguishable from a BadSignature failure, per the
// protocol's error taxonomy.
func VerifyingKeyFromBytes(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, ErrBadKey
	}
	p, err := new(edwards25519.Point).SetBytes(raw)
	if err != nil {
		return nil, ErrBadKey
	}
	// SetBytes accepts non-canonical encodings of valid points; re-encoding
	// and comparing rejects them.
	if !bytes.Equal(p.Bytes(), raw) {
		return nil, ErrBadKey
	}
	return ed25519.PublicKey(raw), nil
}
