package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pevans/paperboy/ledger"
)

// printHistoryTable prints entries in human-readable table format
func printHistoryTable(w io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No downloads to display.")
		return
	}

	fmt.Fprintf(w, "%-16s  %-6s  %-10s  %10s  %s\n", "DOWNLOADED", "PAPER", "ISSUE", "SIZE", "FILE")
	for _, entry := range entries {
		fmt.Fprintf(w, "%-16s  %-6s  %-10s  %10s  %s\n",
			entry.DownloadedAt.Local().Format("2006-01-02 15:04"),
			entry.Newspaper,
			entry.ReleaseDate,
			humanize.IBytes(uint64(entry.Bytes)),
			entry.Filename,
		)
	}
}

// printHistoryJSON prints entries in JSON format
func printHistoryJSON(w io.Writer, entries []ledger.Entry) error {
	if entries == nil {
		entries = []ledger.Entry{}
	}

	output := map[string]any{
		"downloads": entries,
		"total":     len(entries),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	fmt.Fprintln(w, string(data))
	return nil
}

// printHistoryCompact prints one filename per line
func printHistoryCompact(w io.Writer, entries []ledger.Entry) {
	for _, entry := range entries {
		fmt.Fprintln(w, entry.Filename)
	}
}
