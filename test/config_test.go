package test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/urfave/cli.v1"

	"github.com/atsproto/go-ats/ats"
	"github.com/atsproto/go-ats/cmd/ats/launcher"
	"github.com/atsproto/go-ats/flags"
)

// runConfigFromArgs runs MakeAllConfigs against a synthetic CLI context.

func runConfigFromArgs(t *testing.T, args []string) (launcher.Config, error) {
	t.Helper()

	app := cli.NewApp()
	app.HideHelp = true
	app.HideVersion = true
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.KernelFlags()...)
	app.Flags = append(app.Flags, flags.SlabFlags()...)

	var cfg launcher.Config
	var cfgErr error
	app.Action = func(ctx *cli.Context) error {
		cfg, cfgErr = launcher.MakeAllConfigs(ctx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"ats"}, args...)))
	return cfg, cfgErr
}

func TestConfig_defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := runConfigFromArgs(t, []string{"--datadir", dir})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Node.DataDir)
	assert.Equal(t, "receipts.rlp", cfg.Node.JournalFile)
	assert.Equal(t, "test", cfg.Kernel.RulesPreset)
	assert.Equal(t, "genesis", cfg.Kernel.GenesisSeed)
	assert.Equal(t, 3, cfg.Logging.Verbosity)
	assert.Equal(t, "text", cfg.Logging.Format)

	rules, err := launcher.MakeRules(cfg)
	require.NoError(t, err)
	assert.Equal(t, ats.TestRules().Name, rules.Name)
}

func TestConfig_flagOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := runConfigFromArgs(t, []string{
		"--datadir", dir,
		"--rules", "fake",
		"--kappa", "2.5",
		"--budget", "100",
		"--genesis.seed", "boot",
		"--slab.max", "8",
		"--slab.window", "1h",
		"--journal.file", "log.rlp",
		"--log.format", "json",
		"--log.verbosity", "5",
	})
	require.NoError(t, err)

	assert.Equal(t, "log.rlp", cfg.Node.JournalFile)
	assert.Equal(t, "boot", cfg.Kernel.GenesisSeed)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Logging.Verbosity)

	rules, err := launcher.MakeRules(cfg)
	require.NoError(t, err)
	assert.Equal(t, ats.FakeRules().Name, rules.Name)
	assert.Equal(t, "2.5", rules.Kappa.String())
	assert.Equal(t, "100", rules.InitialBudget.String())
	assert.Equal(t, uint32(8), rules.Slabs.MaxReceipts)
	assert.Equal(t, uint64(3600_000_000_000), uint64(rules.Slabs.DisputeWindow))
}

func TestConfig_configFilePlusFlags(t *testing.T) {
	dir := t.TempDir()

	fileCfg := map[string]interface{}{
		"Kernel": map[string]interface{}{
			"RulesPreset": "main",
			"Budget":      "42",
		},
		"Logging": map[string]interface{}{
			"Verbosity": 1,
		},
	}
	raw, err := json.Marshal(fileCfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	// Flags win over the config file; unset values keep the file's.
	cfg, err := runConfigFromArgs(t, []string{
		"--datadir", dir,
		"--config", path,
		"--budget", "7",
	})
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Kernel.RulesPreset)
	assert.Equal(t, 1, cfg.Logging.Verbosity)

	rules, err := launcher.MakeRules(cfg)
	require.NoError(t, err)
	assert.Equal(t, ats.MainRules().Name, rules.Name)
	assert.Equal(t, "7", rules.InitialBudget.String())
}

func TestConfig_badOverrides(t *testing.T) {
	dir := t.TempDir()

	cfg, err := runConfigFromArgs(t, []string{"--datadir", dir, "--rules", "nosuch"})
	require.NoError(t, err)
	_, err = launcher.MakeRules(cfg)
	assert.Error(t, err)

	cfg, err = runConfigFromArgs(t, []string{"--datadir", dir, "--kappa", "not-a-number"})
	require.NoError(t, err)
	_, err = launcher.MakeRules(cfg)
	assert.Error(t, err)

	// A negative budget is not representable in the decimal format.
	cfg, err = runConfigFromArgs(t, []string{"--datadir", dir, "--budget", "-5"})
	require.NoError(t, err)
	_, err = launcher.MakeRules(cfg)
	assert.Error(t, err)
}
