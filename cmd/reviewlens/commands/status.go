package commands

import (
	"fmt"

	"reviewlens-client/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Polls a long-running backend job once.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		status, err := client.Catalog.JobStatus(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to poll job status", err)
		}
		fmt.Printf("%s: %s (%d%%)\n", status.JobID, status.Status, status.Progress)
		if status.Message != "" {
			fmt.Println(status.Message)
		}
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probes backend liveness.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		err := client.Catalog.Health(cmd.Context())
		if err != nil {
			serviceutil.Fatal("backend is unhealthy", err)
		}
		fmt.Println("Backend is healthy.")
	},
}
