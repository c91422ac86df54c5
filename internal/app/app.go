package app

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/config"
	db "github.com/markdave123-py/contexta-ingest/internal/core/database"
	"github.com/markdave123-py/contexta-ingest/internal/core/extraction"
	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/core/llm"
	objectclient "github.com/markdave123-py/contexta-ingest/internal/core/object-client"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/services"
)

type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Ingestor     *ingestion_engine.DocumentIngestor
	Poller       *ingestion_engine.Poller
	Documents    *services.DocumentService
	Search       *services.SearchService
	Server       *Server

	transcriber *llm.GeminiTranscriber
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.ObjectClient = objClient

	embedder := llm.NewOpenAIEmbedder(llm.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.EmbedModel,
		Dimension:  cfg.EmbedDim,
		BatchSize:  cfg.EmbedBatchSize,
		RPS:        cfg.EmbedRPS,
		MaxRetries: cfg.EmbedMaxRetries,
	})

	router, err := a.buildExtractionRouter(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	ingCfg := ingestion_engine.ConfigFrom(cfg)
	a.Ingestor = ingestion_engine.NewDocumentIngestor(dbClient, objClient, embedder, router, ingCfg)
	a.Poller = ingestion_engine.NewPoller(dbClient, a.Ingestor, ingCfg)

	a.Documents = services.NewDocumentService(dbClient, objClient, a.Ingestor)
	a.Search = services.NewSearchService(embedder, dbClient)
	a.Server = NewServer(cfg, NewRouter(cfg, a.Documents, a.Search, dbClient))

	ok = true
	return a, nil
}

func (a *App) buildExtractionRouter(ctx context.Context, cfg *config.Config) (*extraction.Router, error) {
	ocr, err := extraction.NewVisionOCR(ctx, cfg.VisionAPIKey, cfg.VisionEndpoint, cfg.OCRTimeout)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize OCR: %w", err)
	}

	chains := extraction.ChainConfig{
		PDF:               extraction.NewPDFExtractor(),
		Docx:              extraction.NewDocxExtractor(),
		Spreadsheet:       extraction.NewSpreadsheetExtractor(),
		OCR:               ocr,
		Text:              extraction.NewTextExtractor(),
		MinNativePDFChars: cfg.MinNativePDFChars,
	}

	if cfg.GeminiFallbackEnabled() {
		t, err := llm.NewGeminiTranscriber(ctx, cfg.GeminiAPIKey, cfg.GenModel, cfg.OCRTimeout)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the transcriber: %w", err)
		}
		a.transcriber = t
		chains.Transcriber = t
		logger.Info("LLM transcription fallback enabled", "model", cfg.GenModel)
	}

	return extraction.NewRouter(extraction.DefaultChains(chains)), nil
}

func (a *App) Close() {
	if a.transcriber != nil {
		_ = a.transcriber.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
