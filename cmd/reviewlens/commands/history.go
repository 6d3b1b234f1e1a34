package commands

import (
	"fmt"
	"os"

	"reviewlens-client/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [product-id]",
	Short: "Lists locally cached analysis results, or shows one in full.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		if len(args) == 1 {
			analysis, err := client.Results.Load(cmd.Context(), args[0])
			if err != nil {
				serviceutil.Fatal("no cached analysis for product", err)
			}
			renderAnalysis(analysis)
			return
		}

		results, err := client.Results.List(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list cached results", err)
		}
		if len(results) == 0 {
			fmt.Println("No cached analyses yet.")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Product", "Title", "Reviews", "Positive", "Negative", "Neutral", "Analyzed at"})
		for _, r := range results {
			t.AppendRow(table.Row{
				r.ProductID,
				r.Product.Title,
				r.Stats.TotalReviews,
				fmt.Sprintf("%d%%", r.Stats.Summary.Positive),
				fmt.Sprintf("%d%%", r.Stats.Summary.Negative),
				fmt.Sprintf("%d%%", r.Stats.Summary.Neutral),
				r.Product.AnalyzedAt,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
