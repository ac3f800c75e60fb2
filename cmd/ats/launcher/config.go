package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// Config aggregates everything the launcher needs to assemble an engine.
type Config struct {
	Node    NodeDefaults
	Kernel  KernelDefaults
	Slab    SlabDefaults
	Logging LoggingDefaults
}

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node:    d.Node,
		Kernel:  d.Kernel,
		Slab:    d.Slab,
		Logging: d.Logging,
	}
}

// MakeAllConfigs merges defaults, the optional config file, then CLI flag
// overrides into a single config struct.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.GlobalString("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", file, err)
		}
	}
	applyCLIOverrides(ctx, &cfg)

	cfg.Node.DataDir = resolvePath(cfg.Node.DataDir)
	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MakeRules resolves the preset named by the config and applies the kernel
// and slab overrides on top. The result is validated before use.
func MakeRules(cfg Config) (ats.Rules, error) {
	rules, err := ats.RulesByName(cfg.Kernel.RulesPreset)
	if err != nil {
		return ats.Rules{}, err
	}
	if cfg.Kernel.Kappa != "" {
		kappa, err := qfixed.FromDecimal(cfg.Kernel.Kappa)
		if err != nil {
			return ats.Rules{}, fmt.Errorf("bad kappa override: %w", err)
		}
		rules.Kappa = kappa
	}
	if cfg.Kernel.Budget != "" {
		budget, err := qfixed.FromDecimal(cfg.Kernel.Budget)
		if err != nil {
			return ats.Rules{}, fmt.Errorf("bad budget override: %w", err)
		}
		rules.InitialBudget = budget
	}
	if cfg.Slab.MaxReceipts > 0 {
		rules.Slabs.MaxReceipts = cfg.Slab.MaxReceipts
	}
	if cfg.Slab.DisputeWindow != "" {
		window, err := time.ParseDuration(cfg.Slab.DisputeWindow)
		if err != nil {
			return ats.Rules{}, fmt.Errorf("bad dispute window override: %w", err)
		}
		rules.Slabs.DisputeWindow = inter.Timestamp(window.Nanoseconds())
	}
	if err := rules.Validate(); err != nil {
		return ats.Rules{}, err
	}
	return rules, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(resolvePath(path))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, cfg)
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if ctx.GlobalIsSet("datadir") {
		cfg.Node.DataDir = ctx.GlobalString("datadir")
	}
	if ctx.GlobalIsSet("journal.file") {
		cfg.Node.JournalFile = ctx.GlobalString("journal.file")
	}

	if ctx.GlobalIsSet("rules") {
		cfg.Kernel.RulesPreset = ctx.GlobalString("rules")
	}
	if ctx.GlobalIsSet("kappa") {
		cfg.Kernel.Kappa = ctx.GlobalString("kappa")
	}
	if ctx.GlobalIsSet("budget") {
		cfg.Kernel.Budget = ctx.GlobalString("budget")
	}
	if ctx.GlobalIsSet("genesis.seed") {
		cfg.Kernel.GenesisSeed = ctx.GlobalString("genesis.seed")
	}

	if ctx.GlobalIsSet("slab.max") {
		cfg.Slab.MaxReceipts = uint32(ctx.GlobalUint("slab.max"))
	}
	if ctx.GlobalIsSet("slab.window") {
		cfg.Slab.DisputeWindow = ctx.GlobalDuration("slab.window").String()
	}

	if ctx.GlobalIsSet("log.format") {
		cfg.Logging.Format = ctx.GlobalString("log.format")
	}
	if ctx.GlobalIsSet("log.verbosity") {
		cfg.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	}
	if ctx.GlobalIsSet("log.color") {
		cfg.Logging.Color = ctx.GlobalBool("log.color")
	}
	if ctx.GlobalIsSet("sentry.dsn") {
		cfg.Logging.SentryDSN = ctx.GlobalString("sentry.dsn")
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(guessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(guessWorkDir(), p)
}

func guessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func guessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
