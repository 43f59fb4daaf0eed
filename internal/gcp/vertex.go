package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/rmreedy/docpipe/internal/pipeline"
)

// --- Corrector Model Prompts ---
const CorrectorSystemPrompt = `You are correcting OCR output for a legal document. Your task is to:
1. Fix OCR errors and preserve legal terminology
2. CRITICAL: Preserve ALL page markers EXACTLY as they appear: '[BEGIN PDF Page N]' with blank lines before and after
3. NEVER remove or modify page markers, especially [BEGIN PDF Page 1] - it MUST be preserved
4. Format with lines under 65 characters and proper paragraph breaks
5. Return only the corrected text with ALL page markers intact

IMPORTANT: The first page marker [BEGIN PDF Page 1] must appear at the start of the document body. Do not remove it.`

// --- Metadata Model Prompt ---
const MetadataUserPrompt = `Analyze this legal document first page and return metadata in JSON format:

%s

Return ONLY a JSON object with these fields:
{
  "date": "YYYYMMDD format - document date or filing date",
  "description": "Short hyphenated description (2-4 words, use hyphens not spaces)"
}

Examples of good descriptions:
- "Motion-Venue-Change"
- "Appraisal-Demand"
- "Answer-Counterclaim"
- "Hearing-Transcript"

Return ONLY valid JSON, no explanations.`

const (
	metadataMaxAttempts = 3
	metadataBackoff     = 3 * time.Second
)

// VertexClient holds the pre-configured generative models for the pipeline.
// generateMetadata is the raw metadata-model call and backoff the retry
// pause; tests swap both.
type VertexClient struct {
	CorrectorModel *genai.GenerativeModel
	MetadataModel  *genai.GenerativeModel
	baseClient     *genai.Client

	generateMetadata func(ctx context.Context, prompt genai.Part) (*genai.GenerateContentResponse, error)
	backoff          time.Duration
}

// NewVertexClient creates a client holding the corrector and metadata models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string, maxOutputTokens int32) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the corrector model ---
	correctorModel := baseClient.GenerativeModel(modelName)
	correctorModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(CorrectorSystemPrompt)},
	}
	correctorModel.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.1), // Low temp for faithful correction
		MaxOutputTokens: genai.Ptr[int32](maxOutputTokens),
	}

	// --- Configure the metadata model ---
	metadataModel := baseClient.GenerativeModel(modelName)
	metadataModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	c := &VertexClient{
		CorrectorModel: correctorModel,
		MetadataModel:  metadataModel,
		baseClient:     baseClient,
		backoff:        metadataBackoff,
	}
	c.generateMetadata = func(ctx context.Context, prompt genai.Part) (*genai.GenerateContentResponse, error) {
		return metadataModel.GenerateContent(ctx, prompt)
	}
	return c, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// CorrectBody sends one document body (or chunk) through the corrector
// model and returns the corrected text. Refusals are failures.
func (c *VertexClient) CorrectBody(ctx context.Context, body string) (string, error) {
	resp, err := c.CorrectorModel.GenerateContent(ctx, genai.Text(body))
	if err != nil {
		return "", &pipeline.RemoteError{Service: "vertexai", Retryable: true, Err: err}
	}

	text := extractText(resp)
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "", &pipeline.RemoteError{
				Service: "vertexai",
				Err:     fmt.Errorf("model response indicates refusal"),
			}
		}
	}
	if text == "" {
		return "", &pipeline.RemoteError{Service: "vertexai", Err: fmt.Errorf("empty model response")}
	}
	return text, nil
}

// DocumentDate asks the metadata model for the document date on the first
// page excerpt. Retries a fixed number of times with a fixed backoff.
func (c *VertexClient) DocumentDate(ctx context.Context, excerpt string) (string, error) {
	prompt := genai.Text(fmt.Sprintf(MetadataUserPrompt, excerpt))

	var lastErr error
	for attempt := 1; attempt <= metadataMaxAttempts; attempt++ {
		resp, err := c.generateMetadata(ctx, prompt)
		if err == nil {
			if date, ok := parseDate(extractText(resp)); ok {
				return date, nil
			}
			err = fmt.Errorf("no date in model response")
		}
		lastErr = err
		if attempt == metadataMaxAttempts {
			break
		}
		slog.Warn("Metadata lookup failed, will retry.", "attempt", attempt, "error", err)
		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", &pipeline.RemoteError{Service: "vertexai", Err: lastErr}
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

func parseDate(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	var meta struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &meta); err != nil {
		return "", false
	}
	date := strings.ReplaceAll(meta.Date, "-", "")
	if len(date) != 8 {
		return "", false
	}
	return date, true
}
