package commands

import (
	"fmt"
	"os"

	"reviewlens-client/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var discoverMax *int
var discoverSave *bool
var productsCategory *string

func init() {
	discoverMax = discoverCmd.Flags().Int("max", 10, "Maximum number of products to discover.")
	discoverSave = discoverCmd.Flags().Bool("save", false, "Persist the discovered products server-side.")
	productsCategory = productsCmd.Flags().String("category", "", "Restricts the listing to one category.")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(categoriesCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover <category> [--max <n>] [--save]",
	Short: "Discovers products in a category through the backend scraper.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		products, err := client.Catalog.ScrapeProducts(cmd.Context(), args[0], *discoverMax)
		if err != nil {
			serviceutil.Fatal("product discovery failed", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Title", "Link"})
		for _, p := range products {
			t.AppendRow(table.Row{p.ID, p.Title, p.Link})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		if *discoverSave {
			err = client.Catalog.SaveProducts(cmd.Context(), products)
			if err != nil {
				serviceutil.Fatal("failed to save products", err)
			}
			fmt.Printf("Saved %d products.\n", len(products))
		}
	},
}

var productsCmd = &cobra.Command{
	Use:   "products [--category <category>]",
	Short: "Lists saved products.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		products, err := client.Catalog.Products(cmd.Context(), *productsCategory)
		if err != nil {
			serviceutil.Fatal("failed to list products", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Title", "Link", "Reviews"})
		for _, p := range products {
			t.AppendRow(table.Row{p.ID, p.Title, p.Link, len(p.Reviews)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Lists the categories the backend knows about.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		categories, err := client.Catalog.Categories(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list categories", err)
		}
		for _, category := range categories {
			fmt.Println(category)
		}
	},
}
