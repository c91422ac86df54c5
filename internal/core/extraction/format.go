package extraction

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

// Format is a detected file family.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatDocx        Format = "docx"
	FormatSpreadsheet Format = "spreadsheet"
	FormatImage       Format = "image"
	FormatText        Format = "text"
)

var extensionFormats = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDocx,
	".xlsx":     FormatSpreadsheet,
	".xlsm":     FormatSpreadsheet,
	".xls":      FormatSpreadsheet,
	".csv":      FormatSpreadsheet,
	".jpg":      FormatImage,
	".jpeg":     FormatImage,
	".png":      FormatImage,
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatText,
	".markdown": FormatText,
}

var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDocx,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       FormatSpreadsheet,
	"application/vnd.ms-excel.sheet.macroenabled.12":                          FormatSpreadsheet,
	"application/vnd.ms-excel":                                                FormatSpreadsheet,
	"text/csv":                                                                FormatSpreadsheet,
	"image/jpeg":                                                              FormatImage,
	"image/jpg":                                                               FormatImage,
	"image/png":                                                               FormatImage,
	"text/plain":                                                              FormatText,
	"text/markdown":                                                           FormatText,
}

// DetectFormat looks at the file extension first and the declared MIME type second.
func DetectFormat(fileName, mimeType string) (Format, error) {
	ext := strings.ToLower(path.Ext(fileName))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}

	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		if f, ok := mimeFormats[strings.ToLower(mt)]; ok {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: name=%q mime=%q", core.ErrUnsupportedFormat, fileName, mimeType)
}

// SourceType is the tag stored on chunks for a format, the bare extension when known.
func SourceType(format Format, fileName string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if _, ok := extensionFormats["."+ext]; ok {
		return ext
	}
	return string(format)
}
