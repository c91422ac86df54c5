package extraction

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// SpreadsheetExtractor renders every sheet as a titled block of CSV rows.
type SpreadsheetExtractor struct{}

func NewSpreadsheetExtractor() *SpreadsheetExtractor { return &SpreadsheetExtractor{} }

var _ core.Extractor = (*SpreadsheetExtractor)(nil)

func (s *SpreadsheetExtractor) Extract(ctx context.Context, data []byte, fileName, _ string) (*core.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		blocks []string
		names  []string
	)
	if strings.EqualFold(path.Ext(fileName), ".csv") {
		name := strings.TrimSuffix(path.Base(fileName), path.Ext(fileName))
		block, err := csvBlock(data, name)
		if err != nil {
			return nil, err
		}
		if block != "" {
			blocks = append(blocks, block)
		}
		names = []string{name}
	} else {
		wb, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("spreadsheet open: %w", err)
		}
		defer wb.Close()

		names = wb.GetSheetList()
		for _, name := range names {
			rows, err := wb.GetRows(name)
			if err != nil {
				return nil, fmt.Errorf("spreadsheet sheet %q: %w", name, err)
			}
			block, err := renderSheet(name, rows)
			if err != nil {
				return nil, err
			}
			if block != "" {
				blocks = append(blocks, block)
			}
		}
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("spreadsheet: %w", core.ErrEmptyExtraction)
	}

	return &core.Extraction{
		Text:       strings.Join(blocks, "\n\n"),
		Confidence: models.ConfidenceNative,
		Metadata: map[string]string{
			"sheet_count": strconv.Itoa(len(names)),
			"sheet_names": strings.Join(names, ","),
		},
	}, nil
}

func csvBlock(data []byte, name string) (string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("csv parse: %w", err)
	}
	return renderSheet(name, rows)
}

// renderSheet returns "" for a sheet without any non-blank cell.
func renderSheet(name string, rows [][]string) (string, error) {
	var kept [][]string
	for _, row := range rows {
		if hasContent(row) {
			kept = append(kept, row)
		}
	}
	if len(kept) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== Sheet: %s ===\n", name)
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(kept); err != nil {
		return "", fmt.Errorf("render sheet %q: %w", name, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func hasContent(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}
