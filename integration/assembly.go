// Package integration assembles the verification kernel, the receipt
// journal and the slab pipeline into a single engine with durable state
// under one data directory. The engine recovers after restart by replaying
// the journal from the last finalization checkpoint.
package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/sirupsen/logrus"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/journal"
	"github.com/atsproto/go-ats/kernel"
	"github.com/atsproto/go-ats/slab"
	"github.com/atsproto/go-ats/utils/qfixed"
)

var ErrSlabNotReady = errors.New("integration: not enough receipts to seal a slab")

var log = logrus.WithField("module", "integration")

// Config names the durable locations and the rule set of one engine.
type Config struct {
	Rules       ats.Rules
	DataDir     string
	JournalFile string // relative to DataDir; defaults to "receipts.rlp"
}

// DefaultConfig returns an engine config on the test rules under dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		Rules:       ats.TestRules(),
		DataDir:     dataDir,
		JournalFile: "receipts.rlp",
	}
}

// checkpoint is the persisted trusted base the journal replays from. It is
// advanced only when a finalized slab's receipts are pruned.
type checkpoint struct {
	Step       uint64 `json:"step"`
	StateHash  string `json:"stateHash"`
	Budget     string `json:"budget"`
	ChainValue string `json:"chainValue"`
}

func checkpointOf(s kernel.Snapshot) checkpoint {
	return checkpoint{
		Step:       uint64(s.Step),
		StateHash:  s.StateHash.Hex(),
		Budget:     s.Budget.String(),
		ChainValue: s.ChainValue.Hex(),
	}
}

func (c checkpoint) snapshot() (kernel.Snapshot, error) {
	budget, err := qfixed.FromDecimal(c.Budget)
	if err != nil {
		return kernel.Snapshot{}, fmt.Errorf("integration: bad checkpoint budget: %w", err)
	}
	return kernel.Snapshot{
		Step:       inter.StepIndex(c.Step),
		StateHash:  hash.HexToHash(c.StateHash),
		Budget:     budget,
		ChainValue: hash.HexToHash(c.ChainValue),
	}, nil
}

// Engine owns one trajectory end to end: admission, journaling, slabbing
// and pruning. It is not safe for concurrent use; the ledger underneath is
// a single-writer state machine.
type Engine struct {
	cfg    Config
	ledger *kernel.Ledger
	jrnl   *journal.Journal
	base   kernel.Snapshot
}

// MakeEngine opens (or creates) the engine state under cfg.DataDir and
// recovers the ledger by replaying the journal from the checkpoint.
func MakeEngine(cfg Config, initialStateHash hash.Hash) (*Engine, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.JournalFile == "" {
		cfg.JournalFile = "receipts.rlp"
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	base := kernel.Snapshot{
		StateHash:  initialStateHash,
		Budget:     cfg.Rules.InitialBudget,
		ChainValue: inter.GenesisChainValue,
	}
	if loaded, ok, err := loadCheckpoint(checkpointPath(cfg)); err != nil {
		return nil, err
	} else if ok {
		base = loaded
	}

	jrnl, err := journal.Open(filepath.Join(cfg.DataDir, cfg.JournalFile))
	if err != nil {
		return nil, err
	}
	receipts, err := jrnl.Receipts()
	if err != nil {
		_ = jrnl.Close()
		return nil, err
	}
	// A crash between checkpoint save and prune leaves already-finalized
	// receipts at the journal head. The checkpoint vouches for them; drop
	// them before replaying the rest.
	if len(receipts) > 0 && receipts[0].Core.StepIndex < base.Step {
		removed, err := jrnl.CompactBelow(base.Step)
		if err != nil {
			_ = jrnl.Close()
			return nil, err
		}
		log.WithField("removed", removed).Warn("journal head was behind the checkpoint")
		if receipts, err = jrnl.Receipts(); err != nil {
			_ = jrnl.Close()
			return nil, err
		}
	}
	ledger, rej := kernel.ResumeLedgerAt(cfg.Rules, base, receipts)
	if rej != nil {
		_ = jrnl.Close()
		return nil, fmt.Errorf("integration: journal replay failed: %s", rej.String())
	}

	log.WithFields(logrus.Fields{
		"rules":    cfg.Rules.Name,
		"step":     ledger.Step(),
		"budget":   ledger.Budget().String(),
		"receipts": jrnl.Len(),
	}).Info("engine recovered")

	return &Engine{cfg: cfg, ledger: ledger, jrnl: jrnl, base: base}, nil
}

// Ledger exposes the underlying verifier context.
func (e *Engine) Ledger() *kernel.Ledger { return e.ledger }

// Rules returns the engine's rule set.
func (e *Engine) Rules() ats.Rules { return e.cfg.Rules.Copy() }

// Submit verifies one claim and, if accepted, journals the receipt before
// returning it. A rejection is a normal outcome; an error means the
// durable write failed and the engine should be considered broken.
func (e *Engine) Submit(c kernel.Claim) (*inter.Receipt, *inter.Rejection, error) {
	r, rej := e.ledger.Verify(c)
	if rej != nil {
		log.WithFields(logrus.Fields{
			"step": e.ledger.Step(),
			"code": string(rej.Code),
		}).Warn("claim rejected")
		return nil, rej, nil
	}
	if err := e.jrnl.Append(r); err != nil {
		return nil, nil, err
	}
	return r, nil, nil
}

// Receipts returns the journaled receipts, oldest first, for audits and
// slab proof generation.
func (e *Engine) Receipts() ([]inter.Receipt, error) {
	return e.jrnl.Receipts()
}

// Checkpoint returns the trusted base the journal currently replays from.
func (e *Engine) Checkpoint() kernel.Snapshot { return e.base }

// SealSlab builds and commits a slab over every journaled receipt, starting
// its dispute window at now.
func (e *Engine) SealSlab(now inter.Timestamp) (*slab.Slab, error) {
	receipts, err := e.jrnl.Receipts()
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, ErrSlabNotReady
	}
	s, err := slab.Build(e.cfg.Rules, receipts)
	if err != nil {
		return nil, err
	}
	if err := s.Commit(now); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"slab":     s.ID.String(),
		"receipts": s.Summary.ReceiptCount,
	}).Info("slab committed")
	return s, nil
}

// FinalizeAndPrune finalizes a committed slab once its window has elapsed,
// advances the checkpoint to the slab boundary and prunes the covered
// receipts from the journal.
func (e *Engine) FinalizeAndPrune(s *slab.Slab, now inter.Timestamp) (*slab.FinalizationRecord, error) {
	rec, err := s.TryFinalize(now)
	if err != nil {
		if rej := s.Rejection(); rej != nil {
			log.WithFields(logrus.Fields{
				"slab": s.ID.String(),
				"code": string(rej.Code),
			}).Warn("disputed slab cannot finalize")
		}
		return nil, err
	}

	receipts, err := e.jrnl.Receipts()
	if err != nil {
		return nil, err
	}
	covered := make([]inter.Receipt, 0, len(receipts))
	for i := range receipts {
		step := receipts[i].Core.StepIndex
		if step >= rec.FirstStep && step <= rec.LastStep {
			covered = append(covered, receipts[i])
		}
	}
	res := kernel.ReplayFrom(e.cfg.Rules, e.base, covered)
	if !res.Accepted {
		return nil, fmt.Errorf("integration: finalized slab does not replay: %s", res.Rejection.String())
	}
	next := kernel.Snapshot{
		Step:       rec.LastStep + 1,
		StateHash:  res.FinalStateHash,
		Budget:     res.FinalBudget,
		ChainValue: res.FinalChainValue,
	}

	// The checkpoint must land before the journal is touched: a prune is an
	// irreversible rewrite, so if the pair is torn by a crash the surviving
	// state has to be checkpoint-ahead (recoverable by compacting the
	// journal head), never journal-ahead.
	if err := saveCheckpoint(checkpointPath(e.cfg), next); err != nil {
		return nil, err
	}
	e.base = next
	if _, err := e.jrnl.Prune(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Close releases the journal.
func (e *Engine) Close() error {
	return e.jrnl.Close()
}

func checkpointPath(cfg Config) string {
	return filepath.Join(cfg.DataDir, "checkpoint.json")
}

func loadCheckpoint(path string) (kernel.Snapshot, bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return kernel.Snapshot{}, false, nil
	}
	if err != nil {
		return kernel.Snapshot{}, false, err
	}
	var c checkpoint
	if err := json.Unmarshal(raw, &c); err != nil {
		return kernel.Snapshot{}, false, fmt.Errorf("integration: bad checkpoint file: %w", err)
	}
	s, err := c.snapshot()
	if err != nil {
		return kernel.Snapshot{}, false, err
	}
	return s, true, nil
}

func saveCheckpoint(path string, s kernel.Snapshot) error {
	raw, err := json.MarshalIndent(checkpointOf(s), "", "\t")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
