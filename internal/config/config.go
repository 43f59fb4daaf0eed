// Package config holds the process-wide pipeline configuration, populated
// once at startup and read-only afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/rmreedy/docpipe/internal/gcp"
)

const (
	MiB = 1 << 20

	defaultModel = "gemini-2.5-pro"
)

// Config is built in main from flags and environment and injected into the
// stages. No stage mutates it.
type Config struct {
	// RootDir is the project directory holding the stage subdirectories.
	RootDir string

	// Gating.
	GateStages    bool
	PromptTimeout time.Duration

	// Worker pools.
	IOWorkers      int
	CPUWorkers     int
	LargeFileBytes int64

	// Chunking and extraction.
	PagesPerChunk      int
	ExtractBatchSize   int
	InlineExtractLimit int64

	// Enhance.
	CompressionMinGain float64
	OCRCommand         string
	GhostscriptCommand string

	// Cloud collaborators.
	Bucket          string
	ProjectID       string
	VertexRegion    string
	GeminiModel     string
	MaxOutputTokens int32
}

// Load builds the configuration for rootDir, reading cloud settings from
// the environment the way the deployment scripts set them.
func Load(rootDir string) *Config {
	return &Config{
		RootDir:            rootDir,
		GateStages:         true,
		PromptTimeout:      30 * time.Second,
		IOWorkers:          5,
		CPUWorkers:         5,
		LargeFileBytes:     5 * MiB,
		PagesPerChunk:      80,
		ExtractBatchSize:   5,
		InlineExtractLimit: 35 * MiB,
		CompressionMinGain: 10.0,
		OCRCommand:         gcp.GetEnv("OCRMYPDF_CMD", "ocrmypdf"),
		GhostscriptCommand: gcp.GetEnv("GHOSTSCRIPT_CMD", "gs"),
		Bucket:             gcp.GetEnv("GCS_BUCKET", ""),
		ProjectID:          gcp.GetEnv("PROJECT_ID", ""),
		VertexRegion:       gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		GeminiModel:        gcp.GetEnv("GEMINI_MODEL", defaultModel),
		MaxOutputTokens:    65536,
	}
}

// ValidateCloud checks the settings the cloud-backed stages need. Local
// stages run without them.
func (c *Config) ValidateCloud() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if c.Bucket == "" {
		return fmt.Errorf("GCS_BUCKET environment variable must be set")
	}
	return nil
}
