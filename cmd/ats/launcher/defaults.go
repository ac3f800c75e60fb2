package launcher

// Defaults bundles the baseline configuration values the launcher uses
// before the config file and CLI flags override them.

type Defaults struct {
	Node    NodeDefaults
	Kernel  KernelDefaults
	Slab    SlabDefaults
	Logging LoggingDefaults
}

// NodeDefaults captures top-level settings of the local instance.
type NodeDefaults struct {
	DataDir     string // filesystem root for the receipt journal and checkpoints
	JournalFile string // receipt journal file name inside DataDir
}

// KernelDefaults selects the rule preset and the per-run overrides.
type KernelDefaults struct {
	RulesPreset string // main, test or fake
	Kappa       string // exact decimal override; empty keeps the preset value
	Budget      string // exact decimal override; empty keeps the preset value
	GenesisSeed string // seed string the initial state digest derives from
}

// SlabDefaults tunes slab construction and finalization.
type SlabDefaults struct {
	MaxReceipts   uint32 // 0 keeps the preset capacity
	DisputeWindow string // duration string; empty keeps the preset window
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    // 0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace
	Format    string // text or json
	Color     bool   // ANSI colors; best disabled when piping to files
	SentryDSN string // error reporting endpoint, disabled when empty
}

// DefaultConfig returns a fully populated Defaults instance.

func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir:     "~/.ats",
			JournalFile: "receipts.rlp",
		},
		Kernel: KernelDefaults{
			RulesPreset: "test",
			GenesisSeed: "genesis",
		},
		Slab: SlabDefaults{},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     true,
		},
	}
}
