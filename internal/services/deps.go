package services

import "context"

// The stages call their external collaborators through these narrow
// interfaces; tests inject fakes, main wires the real clients. Stages that
// need a cloud client take a dial function so a client that cannot be
// created surfaces as a stage-level error, not a process abort.

// PDFTool is the local PDF toolkit.
type PDFTool interface {
	Sanitize(in, out string) error
	Compress(in, out string) error
	PageCount(path string) (int, error)
}

// TextReader extracts embedded page text locally.
type TextReader interface {
	ExtractText(path string) ([]string, error)
	FirstPageExcerpt(path string, limit int) (string, error)
}

// OCREngine is the external recognition toolchain.
type OCREngine interface {
	Recognize(ctx context.Context, in, out string) error
	Rasterize(ctx context.Context, in, out string) error
}

// PageReader extracts per-page text from raw PDF bytes remotely.
type PageReader interface {
	ExtractPages(ctx context.Context, content []byte) ([]string, error)
	Close() error
}

// Corrector is the AI text-correction collaborator. It must preserve the
// literal [BEGIN PDF Page N] markers verbatim.
type Corrector interface {
	CorrectBody(ctx context.Context, body string) (string, error)
	Close() error
}

// MetadataAnalyzer derives a document date from first-page text.
type MetadataAnalyzer interface {
	DocumentDate(ctx context.Context, excerpt string) (string, error)
	Close() error
}

// ObjectStore is the remote bucket holding published PDFs.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
	Close() error
}
