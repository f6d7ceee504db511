package main

import (
	"fmt"
	"os"

	"github.com/chazu/garnet/stats"
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

// handleRunCommand processes `garnet run`. It returns the process exit
// code: the program's result when that is a small Integer, 1 on an
// uncaught error, 0 otherwise.
func handleRunCommand(args []string, cfg config, printStats bool) int {
	path := unitPath(args, cfg)
	unit, err := wire.ReadFile(path)
	if err != nil {
		fatalf("%v", err)
	}
	digest, err := wire.Digest(unit)
	if err != nil {
		fatalf("%v", err)
	}

	g := vm.NewGlobals(cfg.opts)
	rec := stats.NewRecorder(g, cfg.project)
	rec.SetUnit(path, digest)

	entry, err := wire.Load(g, unit)
	if err != nil {
		fatalf("%v", err)
	}

	result, runErr := g.Main.RunTop(entry)
	run := rec.Finish(runErr)

	if printStats {
		run.Print(os.Stderr)
	}
	if cfg.statsDB != "" {
		if err := saveRun(cfg.statsDB, run); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, runErr)
		return 1
	}
	if result.IsFixnum() && result.Fixnum() >= 0 && result.Fixnum() < 256 {
		return int(result.Fixnum())
	}
	return 0
}

func saveRun(dbPath string, run *stats.Run) error {
	store, err := stats.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(run)
}
