package inter

import (
	"io"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/atsproto/go-ats/utils/qfixed"
)

// Receipts are persisted and transmitted as RLP. RLP is a storage codec
// only: consensus hashing always goes through the canonical serializer, so
// the RLP layout can evolve without forking the chain. Fixed-point fields
// travel as their exact decimal strings to keep the persisted form
// readable and platform-independent.

type receiptRLP struct {
	StepIndex       uint64
	StateHashBefore hash.Hash
	StateHashAfter  hash.Hash
	ActionHash      hash.Hash
	RiskBefore      string
	RiskAfter       string
	BudgetBefore    string
	BudgetAfter     string
	Kappa           string
	Decision        uint8
	Time            uint64
	Provenance      string
	Sig             []byte
	Note            string
}

// EncodeRLP implements rlp.Encoder.
func (r *Receipt) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &receiptRLP{
		StepIndex:       uint64(r.Core.StepIndex),
		StateHashBefore: r.Core.StateHashBefore,
		StateHashAfter:  r.Core.StateHashAfter,
		ActionHash:      r.Core.ActionHash,
		RiskBefore:      r.Core.RiskBefore.String(),
		RiskAfter:       r.Core.RiskAfter.String(),
		BudgetBefore:    r.Core.BudgetBefore.String(),
		BudgetAfter:     r.Core.BudgetAfter.String(),
		Kappa:           r.Core.Kappa.String(),
		Decision:        uint8(r.Core.Decision),
		Time:            uint64(r.Meta.Time),
		Provenance:      r.Meta.Provenance,
		Sig:             r.Meta.Sig,
		Note:            r.Meta.Note,
	})
}

// DecodeRLP implements rlp.Decoder. Malformed decimal strings are decode
// errors: a persisted receipt either round-trips exactly or not at all.
func (r *Receipt) DecodeRLP(s *rlp.Stream) error {
	var enc receiptRLP
	if err := s.Decode(&enc); err != nil {
		return err
	}
	riskBefore, err := qfixed.FromDecimal(enc.RiskBefore)
	if err != nil {
		return err
	}
	riskAfter, err := qfixed.FromDecimal(enc.RiskAfter)
	if err != nil {
		return err
	}
	budgetBefore, err := qfixed.FromDecimal(enc.BudgetBefore)
	if err != nil {
		return err
	}
	budgetAfter, err := qfixed.FromDecimal(enc.BudgetAfter)
	if err != nil {
		return err
	}
	kappa, err := qfixed.FromDecimal(enc.Kappa)
	if err != nil {
		return err
	}
	*r = Receipt{
		Core: ReceiptCore{
			StepIndex:       StepIndex(enc.StepIndex),
			StateHashBefore: enc.StateHashBefore,
			StateHashAfter:  enc.StateHashAfter,
			ActionHash:      enc.ActionHash,
			RiskBefore:      riskBefore,
			RiskAfter:       riskAfter,
			BudgetBefore:    budgetBefore,
			BudgetAfter:     budgetAfter,
			Kappa:           kappa,
			Decision:        Decision(enc.Decision),
		},
		Meta: ReceiptMeta{
			Time:       Timestamp(enc.Time),
			Provenance: enc.Provenance,
			Sig:        enc.Sig,
			Note:       enc.Note,
		},
	}
	return nil
}
