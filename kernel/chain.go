package kernel

import (
	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/canon"
)

// ChainNext links one receipt into the rolling chain:
//
//	chain[n] = Hash(chainTag || chain[n-1] || canonicalBytes(core[n]))
//
// The genesis predecessor is the fixed all-zero constant. Because each link
// hashes the previous link, changing any core field of receipt k changes
// chain[k] and every chain value after it; that avalanche is what makes the
// receipt ledger tamper-evident.
func ChainNext(prev hash.Hash, core inter.ReceiptCore) hash.Hash {
	return canon.HashBytes(inter.TagChainLink, prev.Bytes(), core.CanonicalBytes())
}

// ChainOver folds a receipt sequence into its final chain value, starting
// from the genesis constant. Auditors use it to compare a stored receipt
// run against a published chain head.
func ChainOver(receipts []inter.Receipt) hash.Hash {
	chain := inter.GenesisChainValue
	for i := range receipts {
		chain = ChainNext(chain, receipts[i].Core)
	}
	return chain
}
