package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// KernelFlags holds knobs for the verification kernel itself: which rule
// preset to run under and the per-run overrides on top of it.

func KernelFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "rules",
			Usage: "Rule preset to run under (main|test|fake)",
			Value: "test",
		},
		cli.StringFlag{
			Name:  "kappa",
			Usage: "Override the risk-to-budget exchange rate (exact decimal)",
		},
		cli.StringFlag{
			Name:  "budget",
			Usage: "Override the initial budget (exact decimal)",
		},
		cli.StringFlag{
			Name:  "genesis.seed",
			Usage: "Seed string the initial state digest is derived from",
			Value: "genesis",
		},
	}
}

// SlabFlags isolates slab construction and finalization tuning.
func SlabFlags() []cli.Flag {
	return []cli.Flag{
		cli.UintFlag{
			Name:  "slab.max",
			Usage: "Maximum number of receipts per slab (0 keeps the preset value)",
		},
		cli.DurationFlag{
			Name:  "slab.window",
			Usage: "Dispute window duration (0 keeps the preset value)",
			Value: 0 * time.Second,
		},
		cli.StringFlag{
			Name:  "journal.file",
			Usage: "Receipt journal file name inside the data directory",
			Value: "receipts.rlp",
		},
	}
}
