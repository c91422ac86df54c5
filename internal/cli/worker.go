package cli

import (
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the ingestion poller until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if worker == nil {
		return errNotConfigured
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		worker.Stop()
	}()
	return worker.Start(ctx)
}
