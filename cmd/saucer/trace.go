package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/saucer/internal/tui/traceview"
	"github.com/mattjoyce/saucer/trace"
)

const defaultTraceDB = "saucer-trace.db"

func runTraceNoun(args []string) int {
	if len(args) < 1 {
		printTraceNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printTraceNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "ls":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: saucer trace ls [--db PATH] [--json]")
			return 0
		}
		return runTraceList(actionArgs)
	case "view":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: saucer trace view [--db PATH] [run-id]")
			fmt.Println("Without run-id the TUI opens on the list of runs.")
			return 0
		}
		return runTraceView(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown trace action: %s\n", action)
		return 1
	}
}

func printTraceNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: saucer trace <action> [flags]")
	fmt.Fprintln(w, "Actions: ls, view")
}

func openTrace(ctx context.Context, path string) (*trace.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("trace database %s: %w", path, err)
		}
	}
	return trace.Open(ctx, path)
}

func runTraceList(args []string) int {
	fs := newFlagSet("trace ls")
	dbPath := fs.String("db", defaultTraceDB, "Path to the trace database")
	jsonOut := fs.Bool("json", false, "Output runs as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, err := openTrace(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open trace: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Runs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render runs JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPROGRAM\tSTARTED\tDURATION\tOBSERVATIONS\tDROPPED")
	for _, r := range runs {
		duration := "running"
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", r.ID, r.Program, r.StartedAt.Local().Format(time.DateTime), duration, r.Observations, r.Dropped)
	}
	_ = w.Flush()
	return 0
}

func runTraceView(args []string) int {
	fs := newFlagSet("trace view")
	dbPath := fs.String("db", defaultTraceDB, "Path to the trace database")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: saucer trace view [--db PATH] [run-id]")
		return 1
	}

	ctx := context.Background()
	store, err := openTrace(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open trace: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	runID := fs.Arg(0)
	if runID != "" {
		if _, err := store.Run(ctx, runID); err != nil {
			if errors.Is(err, trace.ErrRunNotFound) {
				fmt.Fprintf(os.Stderr, "No run %s in %s\n", runID, *dbPath)
			} else {
				fmt.Fprintf(os.Stderr, "Failed to load run: %v\n", err)
			}
			return 1
		}
	}

	p := tea.NewProgram(traceview.New(store, runID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
