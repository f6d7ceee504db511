package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/garnet/stats"
)

// handleStatsCommand processes the `garnet stats` subcommand.
// Usage:
//
//	garnet stats [n]             List the n most recent runs (default 10)
//	garnet stats show <run-id>   Show one run with its collections
func handleStatsCommand(args []string, cfg config) {
	if cfg.statsDB == "" {
		fatalf("no statistics database: set [stats].db in garnet.toml or pass -stats")
	}
	store, err := stats.Open(cfg.statsDB)
	if err != nil {
		fatalf("%v", err)
	}
	defer store.Close()

	if len(args) > 0 && args[0] == "show" {
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: garnet stats show <run-id>")
			os.Exit(1)
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			fatalf("invalid run id %q: %v", args[1], err)
		}
		run, err := store.Get(id)
		if err != nil {
			fatalf("%v", err)
		}
		run.Print(os.Stdout)
		for i, c := range run.Cycles {
			fmt.Printf("  gc #%d: marked %d, swept %d, live %d in %s\n", i+1, c.Marked, c.Swept, c.Live, c.Duration)
		}
		return
	}

	limit := 10
	if len(args) > 0 {
		if limit, err = strconv.Atoi(args[0]); err != nil || limit <= 0 {
			fatalf("invalid count %q", args[0])
		}
	}
	runs, err := store.Recent(limit)
	if err != nil {
		fatalf("%v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return
	}
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "error"
		}
		fmt.Printf("%s  %s  %-5s  %8s  gc=%d  ic=%.1f%%  %s\n",
			r.ID, r.Started.Format("2006-01-02 15:04:05"), status, r.Duration().Round(time.Millisecond),
			r.GCCount, r.IC.HitRate, r.Unit)
	}
}
