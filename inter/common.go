// Package inter defines the kernel's consensus data structures: receipts,
// actions, state digests, decisions and the closed taxonomy of rejection
// codes. Everything in this package that participates in a hash is encoded
// through the canonical serializer under a versioned domain tag.
package inter

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"
)

// Domain separation tags. Every consensus hash in the kernel is prefixed by
// exactly one of these, so hashes computed for different purposes can never
// collide across purposes. Bumping a tag's version retires every hash minted
// under the old one.
const (
	TagStateDigest  = "ats/state-digest_V1\n"
	TagActionDigest = "ats/action-digest_V1\n"
	TagReceiptID    = "ats/receipt-id_V1\n"
	TagChainLink    = "ats/chain-link_V1\n"
	TagSlabLeaf     = "ats/slab-leaf_V1\n"
	TagSlabNode     = "ats/slab-node_V1\n"
	TagSlabID       = "ats/slab-id_V1\n"
	TagRiskWitness  = "ats/risk-witness_V1\n"
)

// GenesisChainValue is the fixed, published chain value preceding the first
// receipt of every trajectory: 32 zero bytes. It is a real constant, never
// an absent value; the first receipt must declare exactly this as its
// previous chain value.
var GenesisChainValue = hash.Hash{}

// StepIndex numbers the accepted steps of one trajectory, starting at 0.
type StepIndex uint64

// Bytes returns the big-endian fixed-width encoding used in hashing.
func (s StepIndex) Bytes() []byte {
	return bigendian.Uint64ToBytes(uint64(s))
}

// Timestamp is a UNIX nanosecond timestamp. Timestamps live in receipt
// metadata only and never feed a consensus hash.
type Timestamp uint64

// Time converts to the standard library representation.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

// FromTime converts from the standard library representation.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}
