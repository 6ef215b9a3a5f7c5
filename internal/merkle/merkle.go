// Package merkle builds the binary Merkle root the watchtower commits to
// in each SnapshotMessage, and that a party recomputes independently to
// verify a snapshot against a log.
//
// Unlike forestrie-go-merklelog's mmr package, this is not an append-only
// Merkle Mountain Range: the party verifier always re-fetches and
// re-hashes the *entire* log on every sync (spec §4.5), so there is no
// need for an accumulator that supports efficient append or logarithmic
// inclusion proofs against a moving frontier. What's kept from the
// teacher is the low-level idiom of reusing one hash.Hash via Reset()
// across pairwise hashes (see mmr/hashpospair.go) instead of allocating a
// fresh hasher per node.
package merkle

import (
	"crypto/sha256"
	"hash"
)

// Root computes the Merkle root over an ordered sequence of 32-byte leaf
// hashes. The empty sequence roots to SHA256(""). At every level with an
// odd node count, the last node is duplicated before pairing, matching
// the tie-break rule every verifier must reproduce bit-for-bit.
func Root(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return sha256.Sum256(nil)
	}

	hasher := sha256.New()
	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hashPair(hasher, level[i], level[i+1])
		}
		level = next
	}
	return level[0]
}

// hashPair computes H(a || b), resetting hasher first so the same hasher
// can be reused across the whole tree without reallocating state.
func hashPair(hasher hash.Hash, a, b [32]byte) [32]byte {
	hasher.Reset()
	hasher.Write(a[:])
	hasher.Write(b[:])
	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// InclusionPath returns the sibling hashes needed to recompute the root
// from a single leaf at the given 0-based index, in bottom-to-top order.
// It is a diagnostic helper only (surfaced by `party show-roster
// --explain`, see original_source's client-side Merkle helper): the
// verifier itself never trusts a single-leaf path, it always recomputes
// the whole root from the full fetched log, per spec §4.5.
//
// See cmd/party's explainInclusion, the --explain handler that calls this.
func InclusionPath(leaves [][32]byte, index int) ([][32]byte, error) {
	if index < 0 || index >= len(leaves) {
		return nil, ErrIndexOutOfRange
	}

	var path [][32]byte
	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	i := index

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		var sib [32]byte
		if i%2 == 0 {
			sib = level[i+1]
		} else {
			sib = level[i-1]
		}
		path = append(path, sib)

		hasher := sha256.New()
		next := make([][32]byte, len(level)/2)
		for j := 0; j < len(level); j += 2 {
			next[j/2] = hashPair(hasher, level[j], level[j+1])
		}
		level = next
		i = i / 2
	}
	return path, nil
}
