// Package cli holds the ingester command tree: worker, process, requeue, search and status.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-ingest/internal/app"
	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type documentService interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	Requeue(ctx context.Context, id string) (*models.Document, error)
}

type searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

type documentRunner interface {
	RunDocument(ctx context.Context, docID string) error
}

type pollWorker interface {
	Start(ctx context.Context) error
	Stop()
}

// Services used by the commands. They are built from the environment on first use
// unless something already set them.
var (
	documents  documentService
	search     searcher
	runner     documentRunner
	worker     pollWorker
	closeAppFn func()
)

var errNotConfigured = errors.New("services not configured")

var rootCmd = &cobra.Command{
	Use:   "ingester",
	Short: "Operate the document ingestion pipeline",
	Long: `ingester runs the ingestion worker and offers one-off operations on
documents: processing a single document, requeueing failed ones, checking
their status and searching the indexed chunks.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	defer func() {
		if closeAppFn != nil {
			closeAppFn()
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	if documents != nil || search != nil || runner != nil || worker != nil {
		return nil
	}

	cfg := config.LoadConfig()
	logger.SetDefault(logger.New(cfg.Environment))
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	documents = a.Documents
	search = a.Search
	runner = a.Ingestor
	worker = a.Poller
	closeAppFn = a.Close
	return nil
}
