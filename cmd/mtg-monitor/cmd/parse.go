package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kl-higa/public-mtg-monitor2/internal/markup"
	"github.com/kl-higa/public-mtg-monitor2/internal/parser"
)

var (
	parseAgency string
	parseDetail bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [url]",
	Short: "Parse a committee page",
	Long: `Fetch one page and print what the agency parser extracts from it,
as JSON. Index pages yield the meeting listing; with --detail the page is
parsed as a meeting page.

Examples:
  # Listing of a METI committee
  mtg-monitor parse https://www.meti.go.jp/shingikai/energy_environment/doji_shijo_kento/index.html

  # A single FSA meeting page
  mtg-monitor parse --agency 金融庁 --detail https://www.fsa.go.jp/singi/singi_kinyu/siryou/20250620.html`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseAgency, "agency", parser.AgencyMETI, "Agency whose page format to use")
	parseCmd.Flags().BoolVar(&parseDetail, "detail", false, "Parse as a meeting page instead of an index page")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pageURL := args[0]
	cfg := GetConfig()

	pp, err := parser.NewRegistry().For(parseAgency)
	if err != nil {
		return err
	}

	html := newFetcher(cfg).FetchPage(ctx, pageURL)
	if html == "" {
		return fmt.Errorf("failed to fetch %s", pageURL)
	}

	var result any
	if parseDetail {
		rec := pp.ParseDetail(html, pageURL)
		result = struct {
			Record      any  `json:"record"`
			LikelyValid bool `json:"likely_valid"`
			ReportOnly  bool `json:"report_only"`
		}{rec, rec.LikelyValid(), rec.IsReportOnly()}
	} else {
		baseDir := markup.ToDir(pageURL)
		result = struct {
			Meetings any `json:"meetings"`
			Related  any `json:"related,omitempty"`
		}{pp.ParseListing(html, baseDir), parser.RelatedCommittees(html, baseDir, pageURL)}
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}
