// Package canon implements the canonical, signature-binding encoding (enc)
// and hashing (sha256) primitives described by the protocol: deterministic,
// length-prefixed, and stable across platforms and Go versions.
//
// The wire form is CBOR in RFC 8949 §4.2.1 "Core Deterministic Encoding"
// mode, with every message struct encoded as a CBOR array in fixed field
// order (the "toarray" mode of fxamacker/cbor) rather than a map. Array
// encoding pins the field order structurally instead of by convention,
// which is the property the protocol's signatures depend on: two encodings
// of equal-valued messages are byte-identical, and the encoding is total
// over RegistrationMessage and SnapshotMessage. Grounded on
// forestrie-go-merklelog/massifs/cborcodec.go, which wraps fxamacker/cbor
// with a fixed EncOptions/DecOptions pair for the same reason: the wire
// form is part of the signature, not an implementation detail.
package canon

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/forestrie/roster-attestation/internal/wire"
)

// ErrUnsupportedType is returned by Encode for any value that is not one of
// the declared message variants.
var ErrUnsupportedType = fmt.Errorf("canon: value is not a supported message type")

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		// EncMode() only fails on an invalid combination of static options;
		// CoreDetEncOptions() is always valid.
		panic(fmt.Sprintf("canon: invalid cbor encoding options: %v", err))
	}
	return mode
}

// regMessageWire is RegistrationMessage encoded as a CBOR array, field
// order fixed by struct declaration order.
type regMessageWire struct {
	_        struct{} `cbor:",toarray"`
	Epoch    uint64
	PartyID  uint64
	Endpoint string
	PKParty  []byte
	Seq      uint64
	Nonce    []byte
}

// snapMessageWire is SnapshotMessage encoded as a CBOR array.
type snapMessageWire struct {
	_          struct{} `cbor:",toarray"`
	Epoch      uint64
	LogLen     uint64
	MerkleRoot []byte
}

// prrWire is a PRR encoded as a CBOR array; used when hashing log entries
// for leaf construction (the leaf hash commits to the whole record,
// including the party's signature, not just the message).
type prrWire struct {
	_        struct{} `cbor:",toarray"`
	Msg      regMessageWire
	SigParty []byte
}

// Encode deterministically serializes a RegistrationMessage, SnapshotMessage,
// or PRR. It fails only if the CBOR encoder itself fails, which for these
// fixed, finite-depth types happens only under memory exhaustion.
func Encode(v any) ([]byte, error) {
	switch m := v.(type) {
	case wire.RegistrationMessage:
		return encMode.Marshal(toRegWire(m))
	case wire.SnapshotMessage:
		return encMode.Marshal(toSnapWire(m))
	case wire.PRR:
		return encMode.Marshal(prrWire{Msg: toRegWire(m.Msg), SigParty: m.SigParty})
	default:
		return nil, ErrUnsupportedType
	}
}

func toRegWire(m wire.RegistrationMessage) regMessageWire {
	return regMessageWire{
		Epoch:    m.Epoch,
		PartyID:  m.PartyID,
		Endpoint: string(m.Endpoint),
		PKParty:  m.PKParty,
		Seq:      m.Seq,
		Nonce:    m.Nonce,
	}
}

func toSnapWire(m wire.SnapshotMessage) snapMessageWire {
	return snapMessageWire{
		Epoch:      m.Epoch,
		LogLen:     m.LogLen,
		MerkleRoot: m.MerkleRoot,
	}
}

// Hash is SHA256 over arbitrary bytes, used both on enc(msg) for signing and
// on enc(PRR) for Merkle leaves.
func Hash(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// HashStruct encodes v canonically and returns its SHA-256 hash. This is the
// quantity every signature in the protocol actually signs.
func HashStruct(v any) ([32]byte, error) {
	b, err := Encode(v)
	if err != nil {
		return [32]byte{}, err
	}
	return Hash(b), nil
}
