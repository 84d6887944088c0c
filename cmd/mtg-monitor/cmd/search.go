package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

var (
	searchLimit  int
	searchFormat string
	searchSource int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search archived meetings",
	Long: `Search the meeting archive by keyword. Without a query the newest
archived meetings are listed.

Examples:
  # Basic search
  mtg-monitor search "容量市場"

  # Newest meetings of one committee
  mtg-monitor search --source 3 --limit 5

  # JSON output for scripting
  mtg-monitor search "ベンチマーク" --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
	searchCmd.Flags().IntVar(&searchSource, "source", 0, "List the newest meetings of this committee ID")
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	esClient, err := newArchive(cfg)
	if err != nil {
		return err
	}

	var entries []models.ArchiveEntry
	if len(args) == 1 {
		entries, err = esClient.Search(ctx, args[0], searchLimit)
	} else {
		entries, err = esClient.Recent(ctx, searchSource, searchLimit)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	// Output results
	if searchFormat == "json" {
		output, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
	} else {
		fmt.Printf("Found %d results:\n\n", len(entries))
		for i, e := range entries {
			fmt.Printf("─── Result %d ───\n", i+1)
			fmt.Printf("Title:   %s\n", e.Title)
			fmt.Printf("Source:  [%d] %s\n", e.SourceID, e.SourceName)
			fmt.Printf("Date:    %s\n", e.Date)
			fmt.Printf("URL:     %s\n", e.URL)
			fmt.Printf("ID:      %s\n", e.ID)

			// Truncate summary for display
			summary := []rune(e.Summary)
			if len(summary) > 300 {
				summary = append(summary[:300], []rune("...")...)
			}
			if len(summary) == 0 {
				summary = []rune("(no summary: " + string(e.TranscriptSource) + ")")
			}
			fmt.Printf("Summary:\n%s\n\n", string(summary))
		}
	}

	return nil
}
