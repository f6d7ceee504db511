// Garnet CLI - runs and inspects compiled Garnet units
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/garnet/manifest"
	"github.com/chazu/garnet/vm"
)

// config is the manifest with command-line overrides applied.
type config struct {
	project string
	entry   string
	statsDB string
	opts    vm.Options
}

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = errors only, 1 = info, 2 = debug)")
	dir := flag.String("C", ".", "Directory to search for garnet.toml")
	stackSize := flag.Int("stack", 0, "Value stack slots per VM")
	debug := flag.Bool("debug", false, "Enable allocator consistency checks")
	gcEnabled := flag.Bool("gc", true, "Enable automatic garbage collection")
	gcThreshold := flag.Int("gc-threshold", 0, "Allocations between automatic collections")
	fiberPool := flag.Int("fiber-pool", 0, "Fiber stacks kept for reuse")
	statsDB := flag.String("stats", "", "Record run statistics in this SQLite database")
	printStats := flag.Bool("print-stats", false, "Print run statistics after the program finishes")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: garnet [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [unit.gbc]        Run a compiled unit (default: [project].entry)\n")
		fmt.Fprintf(os.Stderr, "  disasm [unit.gbc]     Disassemble a compiled unit\n")
		fmt.Fprintf(os.Stderr, "  stats [n]             List the n most recent recorded runs\n")
		fmt.Fprintf(os.Stderr, "  stats show <run-id>   Show one recorded run with its collections\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommand-line options override garnet.toml.\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)
	log := commonlog.GetLogger("garnet.cli")

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fatalf("%v", err)
	}
	if m == nil {
		m = manifest.Default()
	} else {
		log.Info("using manifest", "dir", m.Dir)
	}

	cfg := config{
		project: m.Project.Name,
		entry:   m.EntryPath(),
		statsDB: m.StatsPath(),
		opts:    m.Options(),
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "stack":
			cfg.opts.StackSize = *stackSize
		case "debug":
			cfg.opts.Debug = *debug
		case "gc":
			cfg.opts.GCEnabled = *gcEnabled
		case "gc-threshold":
			cfg.opts.GCThreshold = *gcThreshold
		case "fiber-pool":
			cfg.opts.FiberPoolSize = *fiberPool
		case "stats":
			cfg.statsDB = *statsDB
		}
	})

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "run":
		os.Exit(handleRunCommand(args[1:], cfg, *printStats))
	case "disasm":
		handleDisasmCommand(args[1:], cfg)
	case "stats":
		handleStatsCommand(args[1:], cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

// unitPath picks the unit named on the command line, falling back to the
// manifest entry.
func unitPath(args []string, cfg config) string {
	if len(args) > 0 {
		return args[0]
	}
	if cfg.entry == "" {
		fatalf("no unit given and no [project].entry in garnet.toml")
	}
	return cfg.entry
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
