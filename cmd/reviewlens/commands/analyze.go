package commands

import (
	"context"
	"fmt"
	"os"

	"reviewlens-client/lib/orchestrator"
	"reviewlens-client/lib/reviewlens"
	"reviewlens-client/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var analyzeCategory *string
var scrapeCategory *string

func init() {
	analyzeCategory = analyzeCmd.Flags().String("category", "", "Category to look the product up in.")
	scrapeCategory = scrapeCmd.Flags().String("category", "", "Restricts scraping to one category.")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scrapeCmd)
}

// lookupProducts resolves positional product ids against the saved
// catalog. With no ids, every saved product is returned.
func lookupProducts(ctx context.Context, client *reviewlens.Client, category string, ids []string) []orchestrator.Product {
	products, err := client.Catalog.Products(ctx, category)
	if err != nil {
		serviceutil.Fatal("failed to list products", err)
	}
	if len(ids) == 0 {
		return products
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	matched := make([]orchestrator.Product, 0, len(ids))
	for _, p := range products {
		if wanted[p.ID] {
			matched = append(matched, p)
		}
	}
	return matched
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <product-id> [--category <category>]",
	Short: "Runs the scrape-then-analyze pipeline for one product and caches the result.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		products := lookupProducts(cmd.Context(), client, *analyzeCategory, args)
		if len(products) == 0 {
			serviceutil.Fatal("product not found", fmt.Errorf("no saved product with id %q", args[0]))
		}

		analysis, err := client.Workflows.CompleteAnalysis(cmd.Context(), products[0])
		if err != nil {
			serviceutil.Fatal("analysis failed", err)
		}
		renderAnalysis(*analysis)
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [product-ids...] [--category <category>]",
	Short: "Scrapes reviews for the given products, or every saved product.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		products := lookupProducts(cmd.Context(), client, *scrapeCategory, args)
		if len(products) == 0 {
			serviceutil.Fatal("nothing to scrape", fmt.Errorf("no matching saved products"))
		}

		outcomes := client.Workflows.ProcessProducts(cmd.Context(), products, orchestrator.ActionScrape)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Product", "Stage", "Reviews", "Error"})
		for _, outcome := range outcomes {
			reviews := 0
			if outcome.Scraped != nil {
				reviews = len(outcome.Scraped.Reviews)
			}
			errMsg := ""
			if outcome.Err != nil {
				errMsg = outcome.Err.Error()
			}
			t.AppendRow(table.Row{outcome.ProductID, outcome.Stage, reviews, errMsg})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

func renderAnalysis(analysis orchestrator.AnalysisResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRows([]table.Row{
		{"Product", analysis.Product.Title},
		{"Reviews", analysis.Stats.TotalReviews},
		{"Positive", fmt.Sprintf("%d%%", analysis.Stats.Summary.Positive)},
		{"Negative", fmt.Sprintf("%d%%", analysis.Stats.Summary.Negative)},
		{"Neutral", fmt.Sprintf("%d%%", analysis.Stats.Summary.Neutral)},
		{"Analyzed at", analysis.Product.AnalyzedAt},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
