package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pevans/paperboy/config"
	"github.com/pevans/paperboy/ledger"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	ledgerPath := flag.String("ledger", getEnv(config.EnvLedger, config.DefaultLedger), "Path to the download ledger (PAPERBOY_LEDGER_DSN)")
	format := flag.String("format", "table", "Output format: table, json, compact")
	newspaper := flag.String("newspaper", "", "Only show downloads of this newspaper (FAZ, WOCHE, FAS)")
	limit := flag.Int("limit", 0, "Show at most this many downloads (0 for all)")

	flag.Parse()

	path, err := config.ExpandHome(*ledgerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No downloads recorded yet.")
		return
	}

	l, err := ledger.NewLedger(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open ledger: %v\n", err)
		os.Exit(1)
	}
	defer l.Close()

	entries, err := l.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	entries = filterEntries(entries, strings.ToUpper(strings.TrimSpace(*newspaper)), *limit)

	switch *format {
	case "table":
		printHistoryTable(os.Stdout, entries)
	case "json":
		if err := printHistoryJSON(os.Stdout, entries); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "compact":
		printHistoryCompact(os.Stdout, entries)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format: %s\n", *format)
		os.Exit(1)
	}
}

// filterEntries keeps the entries of one newspaper (all if empty) and
// truncates the result to limit entries (no limit if <= 0).
func filterEntries(entries []ledger.Entry, newspaper string, limit int) []ledger.Entry {
	var filtered []ledger.Entry
	for _, entry := range entries {
		if newspaper != "" && entry.Newspaper != newspaper {
			continue
		}
		filtered = append(filtered, entry)
		if limit > 0 && len(filtered) == limit {
			break
		}
	}
	return filtered
}
