package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rmreedy/docpipe/internal/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		RootDir:            t.TempDir(),
		GateStages:         false,
		PromptTimeout:      time.Second,
		IOWorkers:          2,
		CPUWorkers:         2,
		LargeFileBytes:     5 * config.MiB,
		PagesPerChunk:      80,
		ExtractBatchSize:   5,
		InlineExtractLimit: 35 * config.MiB,
		CompressionMinGain: 10.0,
		Bucket:             "test-bucket",
		ProjectID:          "test-project",
	}
}

// fakePDFTool copies files for Sanitize/Compress and returns canned page
// counts keyed by base name (default pages when the map is nil).
type fakePDFTool struct {
	pages        int
	sanitizeErr  error
	compressErr  error
	compressGain float64 // fraction of input size removed by Compress
	firstPage    string
	pageTexts    []string
}

func (f *fakePDFTool) Sanitize(in, out string) error {
	if f.sanitizeErr != nil {
		return f.sanitizeErr
	}
	return copyFile(in, out)
}

func (f *fakePDFTool) Compress(in, out string) error {
	if f.compressErr != nil {
		return f.compressErr
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	keep := len(data) - int(float64(len(data))*f.compressGain)
	if keep < 0 {
		keep = 0
	}
	return os.WriteFile(out, data[:keep], 0o644)
}

func (f *fakePDFTool) PageCount(string) (int, error) {
	return f.pages, nil
}

func (f *fakePDFTool) ExtractText(string) ([]string, error) {
	return f.pageTexts, nil
}

func (f *fakePDFTool) FirstPageExcerpt(string, int) (string, error) {
	return f.firstPage, nil
}

// fakeOCR records invocations and can fail the primary path to exercise
// the fallback chain.
type fakeOCR struct {
	mu            sync.Mutex
	recognizeErr  error
	rasterizeErr  error
	recognizeLog  []string
	rasterizeLog  []string
	failFirstOnly bool
}

func (f *fakeOCR) Recognize(_ context.Context, in, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recognizeLog = append(f.recognizeLog, in)
	if f.recognizeErr != nil {
		if f.failFirstOnly && len(f.recognizeLog) > 1 {
			return copyFileLocked(in, out)
		}
		return f.recognizeErr
	}
	return copyFileLocked(in, out)
}

func (f *fakeOCR) Rasterize(_ context.Context, in, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rasterizeLog = append(f.rasterizeLog, in)
	if f.rasterizeErr != nil {
		return f.rasterizeErr
	}
	return copyFileLocked(in, out)
}

func copyFileLocked(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// fakePageReader returns fixed page texts regardless of content.
type fakePageReader struct {
	pages []string
	err   error
	calls int
}

func (f *fakePageReader) ExtractPages(context.Context, []byte) ([]string, error) {
	f.calls++
	return f.pages, f.err
}

func (f *fakePageReader) Close() error { return nil }

// identityCorrector returns bodies unchanged, optionally transforming them.
type identityCorrector struct {
	mu        sync.Mutex
	transform func(string) string
	err       error
	bodies    []string
}

func (f *identityCorrector) CorrectBody(_ context.Context, body string) (string, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.transform != nil {
		return f.transform(body), nil
	}
	return body, nil
}

func (f *identityCorrector) Close() error { return nil }

// fakeAnalyzer returns a fixed date.
type fakeAnalyzer struct {
	date  string
	err   error
	calls int
}

func (f *fakeAnalyzer) DocumentDate(context.Context, string) (string, error) {
	f.calls++
	return f.date, f.err
}

func (f *fakeAnalyzer) Close() error { return nil }

// fakeStore is an in-memory object store recording the operation order.
type fakeStore struct {
	bucket  string
	objects map[string][]byte
	ops     []string
}

func newFakeStore(bucket string) *fakeStore {
	return &fakeStore{bucket: bucket, objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(_ context.Context, localPath, key string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	f.ops = append(f.ops, "upload "+key)
	return f.PublicURL(key), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.ops = append(f.ops, "delete "+key)
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.cloud.google.com/%s/%s", f.bucket, key)
}

func (f *fakeStore) Close() error { return nil }
