package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var ocrFeatures = []*vision.Feature{
	{Type: "TEXT_DETECTION"},
	{Type: "DOCUMENT_TEXT_DETECTION"},
}

// VisionOCR sends images and PDFs to Cloud Vision for text detection.
// PDFs go through files:annotate, which covers the first five pages synchronously.
type VisionOCR struct {
	svc     *vision.Service
	timeout time.Duration
}

var _ core.Extractor = (*VisionOCR)(nil)

// NewVisionOCR builds the client. An empty apiKey falls back to application default
// credentials; an empty endpoint uses the public API.
func NewVisionOCR(ctx context.Context, apiKey, endpoint string, timeout time.Duration, opts ...option.ClientOption) (*VisionOCR, error) {
	var clientOpts []option.ClientOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := vision.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionOCR{svc: svc, timeout: timeout}, nil
}

func (o *VisionOCR) Extract(ctx context.Context, data []byte, fileName, mimeType string) (*core.Extraction, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	content := base64.StdEncoding.EncodeToString(data)

	format, _ := DetectFormat(fileName, mimeType)
	var (
		res ocrResult
		err error
	)
	if format == FormatPDF {
		res, err = o.annotatePDF(ctx, content)
	} else {
		res, err = o.annotateImage(ctx, content)
	}
	if err != nil {
		return nil, err
	}

	text, err := requireText(res.text, "ocr")
	if err != nil {
		return nil, err
	}

	meta := map[string]string{"annotation_count": strconv.Itoa(res.annotations)}
	if format == FormatPDF {
		meta["page_count"] = strconv.Itoa(res.pages)
	}
	return &core.Extraction{
		Text:       text,
		Confidence: models.ConfidenceOCR,
		Metadata:   meta,
	}, nil
}

// ocrResult is the text of one annotate call.
// annotations counts the text annotations across all responses.
type ocrResult struct {
	text        string
	annotations int
	pages       int
}

func (o *VisionOCR) annotateImage(ctx context.Context, content string) (ocrResult, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: content},
			Features: ocrFeatures,
		}},
	}

	resp, err := o.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return ocrResult{}, fmt.Errorf("vision images:annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return ocrResult{}, fmt.Errorf("vision images:annotate: %w: no responses", core.ErrMalformedResponse)
	}

	r := resp.Responses[0]
	text, err := imageText(r)
	if err != nil {
		return ocrResult{}, err
	}
	return ocrResult{text: text, annotations: len(r.TextAnnotations), pages: 1}, nil
}

func (o *VisionOCR) annotatePDF(ctx context.Context, content string) (ocrResult, error) {
	req := &vision.BatchAnnotateFilesRequest{
		Requests: []*vision.AnnotateFileRequest{{
			InputConfig: &vision.InputConfig{Content: content, MimeType: "application/pdf"},
			Features:    ocrFeatures,
		}},
	}

	resp, err := o.svc.Files.Annotate(req).Context(ctx).Do()
	if err != nil {
		return ocrResult{}, fmt.Errorf("vision files:annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return ocrResult{}, fmt.Errorf("vision files:annotate: %w: no responses", core.ErrMalformedResponse)
	}

	file := resp.Responses[0]
	if file.Error != nil && file.Error.Message != "" {
		return ocrResult{}, fmt.Errorf("vision files:annotate: code %d: %s", file.Error.Code, file.Error.Message)
	}

	var res ocrResult
	pages := make([]string, 0, len(file.Responses))
	for i, page := range file.Responses {
		text, err := imageText(page)
		if err != nil {
			return ocrResult{}, fmt.Errorf("page %d: %w", i+1, err)
		}
		if page != nil {
			res.annotations += len(page.TextAnnotations)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	res.text = strings.Join(pages, "\n\n")
	res.pages = int(file.TotalPages)
	if res.pages == 0 {
		res.pages = len(file.Responses)
	}
	return res, nil
}

// imageText returns the dense document annotation. A response without one yields
// no text; the plain text annotations are only counted, never used as a fallback.
func imageText(r *vision.AnnotateImageResponse) (string, error) {
	if r == nil {
		return "", nil
	}
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("vision: code %d: %s", r.Error.Code, r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return r.FullTextAnnotation.Text, nil
}
