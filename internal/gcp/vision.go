package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rmreedy/docpipe/internal/pipeline"
)

// PageExtractor reads per-page text from raw PDF bytes via the Vision API,
// in fixed-size page batches. annotate is the raw RPC; tests swap it out.
type PageExtractor struct {
	client    *vision.ImageAnnotatorClient
	batchSize int
	annotate  func(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error)
}

func NewPageExtractor(ctx context.Context, batchSize int) (*PageExtractor, error) {
	if batchSize < 1 {
		batchSize = 5
	}
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision.NewImageAnnotatorClient: %w", err)
	}
	e := &PageExtractor{client: client, batchSize: batchSize}
	e.annotate = func(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		return client.BatchAnnotateFiles(ctx, req)
	}
	return e, nil
}

func (e *PageExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ExtractPages walks the document batch by batch until the end-of-document
// signal. A pass that yields no text at all is retried once with the
// simpler detection feature before giving up.
func (e *PageExtractor) ExtractPages(ctx context.Context, content []byte) ([]string, error) {
	pages, err := e.extractAll(ctx, content, visionpb.Feature_DOCUMENT_TEXT_DETECTION)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		slog.Warn("No text from document detection, retrying with degraded feature.")
		pages, err = e.extractAll(ctx, content, visionpb.Feature_TEXT_DETECTION)
		if err != nil {
			return nil, err
		}
	}
	return pages, nil
}

func (e *PageExtractor) extractAll(ctx context.Context, content []byte, feature visionpb.Feature_Type) ([]string, error) {
	var pages []string
	pageNum := 1
	for {
		batch, err := e.annotateBatch(ctx, content, pageNum, feature)
		if errors.Is(err, pipeline.ErrEndOfDocument) {
			return pages, nil
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, batch...)
		pageNum += e.batchSize
	}
}

// annotateBatch fetches one batch of pages. The API reports a page range
// past the end of the document as InvalidArgument; that is mapped to the
// typed end-of-document signal, never surfaced as a failure.
func (e *PageExtractor) annotateBatch(ctx context.Context, content []byte, firstPage int, feature visionpb.Feature_Type) ([]string, error) {
	pageRange := make([]int32, e.batchSize)
	for i := range pageRange {
		pageRange[i] = int32(firstPage + i)
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  content,
				MimeType: "application/pdf",
			},
			Features: []*visionpb.Feature{{
				Type:  feature,
				Model: "builtin/latest",
			}},
			Pages: pageRange,
			ImageContext: &visionpb.ImageContext{
				LanguageHints: []string{"en"},
			},
		}},
	}

	resp, err := e.annotate(ctx, req)
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return nil, pipeline.ErrEndOfDocument
		}
		return nil, &pipeline.RemoteError{Service: "vision", Retryable: true, Err: err}
	}

	var pages []string
	for _, fileResp := range resp.GetResponses() {
		for _, pageResp := range fileResp.GetResponses() {
			if text := pageResp.GetFullTextAnnotation().GetText(); text != "" {
				pages = append(pages, text)
			}
		}
	}
	if len(pages) == 0 {
		return nil, pipeline.ErrEndOfDocument
	}
	return pages, nil
}
