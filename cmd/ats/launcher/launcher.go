package launcher

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/atsproto/go-ats/flags"
	"github.com/atsproto/go-ats/integration"
	"github.com/atsproto/go-ats/inter"
)

var app = flags.NewApp("admissible trajectory verification kernel")

func init() {
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.KernelFlags()...)
	app.Flags = append(app.Flags, flags.SlabFlags()...)

	app.Commands = []cli.Command{
		{
			Name:   "demo",
			Usage:  "Run a deterministic synthetic trajectory through the full pipeline",
			Action: demoCmd,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "steps",
					Usage: "Number of synthetic steps to verify",
					Value: 16,
				},
				cli.BoolFlag{
					Name:  "seal",
					Usage: "Seal, finalize and prune a slab over the verified receipts",
				},
			},
		},
		{
			Name:   "replay",
			Usage:  "Re-derive the trajectory head from the journaled receipts",
			Action: replayCmd,
		},
		{
			Name:   "rules",
			Usage:  "Print the effective rule set after overrides",
			Action: rulesCmd,
		},
	}
}

// Launch parses flags and dispatches to the selected command.
func Launch(args []string) error {
	// Ambient settings (sentry DSN and the like) may come from the
	// environment; a missing .env file is fine.
	_ = godotenv.Load()
	return app.Run(args)
}

func setup(ctx *cli.Context) (Config, error) {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return cfg, err
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return cfg, err
	}
	logrus.WithFields(overrideParams(cfg)).Debug("effective kernel parameters")
	return cfg, nil
}

func demoCmd(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	rules, err := MakeRules(cfg)
	if err != nil {
		return err
	}

	engine, err := integration.MakeEngine(integration.Config{
		Rules:       rules,
		DataDir:     cfg.Node.DataDir,
		JournalFile: cfg.Node.JournalFile,
	}, integration.FakeStateDigest(cfg.Kernel.GenesisSeed, 0, 0))
	if err != nil {
		return err
	}
	defer engine.Close()

	steps := ctx.Int("steps")
	start := int(engine.Ledger().Step())
	for i := start; i < start+steps; i++ {
		claim, err := integration.FakeClaim(engine.Ledger(), cfg.Kernel.GenesisSeed, i)
		if err != nil {
			return err
		}
		r, rej, err := engine.Submit(claim)
		if err != nil {
			return err
		}
		if rej != nil {
			return fmt.Errorf("synthetic claim rejected: %s", rej.String())
		}
		logrus.WithFields(logrus.Fields{
			"step":    r.Core.StepIndex,
			"risk":    r.Core.RiskAfter.String(),
			"budget":  r.Core.BudgetAfter.String(),
			"receipt": r.ID().String(),
		}).Info("step admitted")
	}

	if ctx.Bool("seal") {
		now := inter.FromTime(time.Now())
		s, err := engine.SealSlab(now)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"slab":     s.ID.String(),
			"receipts": s.Summary.ReceiptCount,
			"root":     s.MerkleRoot.String(),
		}).Info("slab sealed, waiting out the dispute window")

		time.Sleep(time.Duration(rules.Slabs.DisputeWindow))
		rec, err := engine.FinalizeAndPrune(s, inter.FromTime(time.Now()))
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"slab":  rec.SlabID.String(),
			"steps": fmt.Sprintf("[%d, %d]", rec.FirstStep, rec.LastStep),
		}).Info("slab finalized, receipts pruned")
	}

	head := engine.Ledger().Snapshot()
	fmt.Fprintf(ctx.App.Writer, "head: step=%d budget=%s chain=%s\n",
		head.Step, head.Budget.String(), head.ChainValue.String())
	return nil
}

func replayCmd(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	rules, err := MakeRules(cfg)
	if err != nil {
		return err
	}

	engine, err := integration.MakeEngine(integration.Config{
		Rules:       rules,
		DataDir:     cfg.Node.DataDir,
		JournalFile: cfg.Node.JournalFile,
	}, integration.FakeStateDigest(cfg.Kernel.GenesisSeed, 0, 0))
	if err != nil {
		// MakeEngine already replays the journal; a corrupt or
		// non-replaying journal surfaces here.
		return err
	}
	defer engine.Close()

	head := engine.Ledger().Snapshot()
	fmt.Fprintf(ctx.App.Writer, "replayed: step=%d state=%s budget=%s chain=%s\n",
		head.Step, head.StateHash.String(), head.Budget.String(), head.ChainValue.String())
	return nil
}

func rulesCmd(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	rules, err := MakeRules(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, rules.String())
	return nil
}

// overrideParams logs the effective non-default kernel parameters once at
// startup, so operator logs record what the run was actually using.
func overrideParams(cfg Config) logrus.Fields {
	fields := logrus.Fields{"rules": cfg.Kernel.RulesPreset}
	if cfg.Kernel.Kappa != "" {
		fields["kappa"] = cfg.Kernel.Kappa
	}
	if cfg.Kernel.Budget != "" {
		fields["budget"] = cfg.Kernel.Budget
	}
	return fields
}
