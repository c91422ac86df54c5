package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var statusJSON bool

var processCmd = &cobra.Command{
	Use:   "process [document-id]",
	Short: "Claim and ingest one pending document",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var requeueCmd = &cobra.Command{
	Use:   "requeue [document-id]",
	Short: "Move a failed document back to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequeue,
}

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show the ingestion state of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output the document as JSON")
	rootCmd.AddCommand(processCmd, requeueCmd, statusCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if runner == nil {
		return errNotConfigured
	}

	id := args[0]
	err := runner.RunDocument(cmd.Context(), id)
	switch {
	case errors.Is(err, core.ErrClaimConflict):
		return fmt.Errorf("document %s is not pending", id)
	case err != nil:
		return fmt.Errorf("ingestion failed (%s): %w", core.ClassifyFailure(err), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Document %s ingested.\n", id)
	return nil
}

func runRequeue(cmd *cobra.Command, args []string) error {
	if documents == nil {
		return errNotConfigured
	}

	doc, err := documents.Requeue(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("requeue failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Document %s is %s again.\n", doc.ID, doc.Status)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if documents == nil {
		return errNotConfigured
	}

	doc, err := documents.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	printDocument(out, doc)
	return nil
}

func printDocument(w io.Writer, doc *models.Document) {
	fmt.Fprintf(w, "ID:       %s\n", doc.ID)
	fmt.Fprintf(w, "File:     %s\n", doc.FileName)
	fmt.Fprintf(w, "Status:   %s (%d%%)\n", doc.Status, doc.Progress)
	if doc.LastStep != nil {
		fmt.Fprintf(w, "Step:     %s\n", *doc.LastStep)
	}
	fmt.Fprintf(w, "Chunks:   %d\n", doc.ChunkCount)
	if doc.ExtractionConfidence != nil {
		fmt.Fprintf(w, "Source:   %s\n", *doc.ExtractionConfidence)
	}
	if doc.LastFailureReason != nil {
		fmt.Fprintf(w, "Failure:  %s\n", *doc.LastFailureReason)
	}
	if doc.LastError != nil {
		fmt.Fprintf(w, "Error:    %s\n", *doc.LastError)
	}
}
