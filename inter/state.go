package inter

import (
	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/utils/canon"
)

// StateComponents is the runtime's state tuple as presented for digesting.
// The kernel never stores or inspects these components: it consumes only
// the digest. Identical content always yields an identical digest, which is
// the whole contract between the runtime and the verifier.
type StateComponents struct {
	Belief []byte
	Memory []byte
	Plan   []byte
	Policy []byte
	IO     []byte
}

// StateDigestOf computes the content-addressed digest of a state tuple
// under the state-digest domain tag.
func StateDigestOf(sc StateComponents) hash.Hash {
	return canon.MustHashTagged(TagStateDigest, canon.Map{
		"belief": canon.Bytes(sc.Belief),
		"memory": canon.Bytes(sc.Memory),
		"plan":   canon.Bytes(sc.Plan),
		"policy": canon.Bytes(sc.Policy),
		"io":     canon.Bytes(sc.IO),
	})
}
