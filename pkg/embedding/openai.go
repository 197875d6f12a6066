// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/gnosis/pkg/errors"
	"github.com/jllopis/gnosis/pkg/resilience"
	"github.com/jllopis/gnosis/pkg/telemetry"
)

// Config holds the embedding engine settings. Zero values fall back to
// the defaults used across Gnosis.
type Config struct {
	// Model is the embedding model identifier.
	Model string
	// Dimensions is the vector length the model produces.
	Dimensions int
	// SyncThreshold is the largest input size served by the synchronous
	// path; anything bigger goes through a batch job.
	SyncThreshold int
	// PollInterval is the fixed delay between batch status checks.
	PollInterval time.Duration
	// CompletionWindow is the batch completion window, e.g. "24h".
	CompletionWindow string
}

const (
	defaultModel            = "text-embedding-3-large"
	defaultDimensions       = 3072
	defaultSyncThreshold    = 5
	defaultPollInterval     = 10 * time.Second
	defaultCompletionWindow = "24h"
)

// OpenAI embeds text through the OpenAI embeddings and batch APIs.
type OpenAI struct {
	client openai.Client
	cfg    Config
	tracer trace.Tracer
}

// NewOpenAI builds an engine from cfg. Request options (API key, base
// URL) are passed through to the underlying client.
func NewOpenAI(cfg Config, reqOpts ...option.RequestOption) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	if cfg.SyncThreshold <= 0 {
		cfg.SyncThreshold = defaultSyncThreshold
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CompletionWindow == "" {
		cfg.CompletionWindow = defaultCompletionWindow
	}
	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		cfg:    cfg,
		tracer: otel.Tracer("gnosis/embedding"),
	}
}

// Embed converts texts to vectors. Inputs at or below the sync threshold
// use one synchronous round trip; larger inputs are submitted as an
// asynchronous batch job and polled until a terminal status.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= e.cfg.SyncThreshold {
		return e.embedSync(ctx, texts)
	}
	return e.embedBatch(ctx, texts)
}

// EmbedQuery embeds a single query string through the synchronous path.
func (e *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedSync(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, errors.New(errors.CodeEmbedding, "embedding response contained no vector", nil)
	}
	return vectors[0], nil
}

// Dimensions returns the configured vector length.
func (e *OpenAI) Dimensions() int { return e.cfg.Dimensions }

// Model returns the configured embedding model.
func (e *OpenAI) Model() string { return e.cfg.Model }

// embedSync is one round trip through the embeddings API. Transient
// upstream failures are retried with backoff; a response missing a
// vector is not, since the request itself was accepted.
func (e *OpenAI) embedSync(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := e.tracer.Start(ctx, "Embedding.Sync")
	defer span.End()
	span.SetAttributes(telemetry.EmbeddingAttributes(e.cfg.Model, "sync", len(texts))...)

	var vectors [][]float32
	err := resilience.DefaultRetryConfig().Do(ctx, func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model:          openai.EmbeddingModel(e.cfg.Model),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		})
		if err != nil {
			return errors.New(errors.CodeEmbedding, "embedding request failed", err).
				WithRecoverable(true)
		}

		out := make([][]float32, len(texts))
		for _, item := range resp.Data {
			if int(item.Index) < len(out) {
				out[item.Index] = toFloat32(item.Embedding)
			}
		}
		for i, v := range out {
			if v == nil {
				return errors.New(errors.CodeEmbedding,
					fmt.Sprintf("embedding response missing vector for input %d", i), nil)
			}
		}
		vectors = out
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return vectors, nil
}

// embedBatch runs the asynchronous path: serialize requests to a JSONL
// file, upload it, create a batch job, poll until terminal, then fetch
// and realign the results.
func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := e.tracer.Start(ctx, "Embedding.Batch")
	defer span.End()
	span.SetAttributes(telemetry.EmbeddingAttributes(e.cfg.Model, "batch", len(texts))...)

	slog.Info("embedding.batch.start", "count", len(texts), "model", e.cfg.Model)

	inputPath, err := e.writeBatchInput(texts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer os.Remove(inputPath)

	fileID, err := e.uploadBatchInput(ctx, inputPath)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	job, err := e.client.Batches.New(ctx, openai.BatchNewParams{
		InputFileID:      fileID,
		Endpoint:         openai.BatchNewParamsEndpointV1Embeddings,
		CompletionWindow: openai.BatchNewParamsCompletionWindow(e.cfg.CompletionWindow),
	})
	if err != nil {
		span.RecordError(err)
		return nil, errors.New(errors.CodeEmbedding, "failed to create batch job", err)
	}
	slog.Info("embedding.batch.submitted", "batch_id", job.ID, "input_file_id", fileID)

	job, err = e.pollBatch(ctx, job.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(telemetry.BatchAttributes(job.ID, string(job.Status))...)

	if failed := job.RequestCounts.Failed; failed > 0 {
		slog.Warn("embedding.batch.partial_failures", "batch_id", job.ID, "failed", failed)
	}

	vectors, err := e.fetchBatchOutput(ctx, job.OutputFileID, len(texts))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("embedding.batch.complete", "batch_id", job.ID, "count", len(texts))
	return vectors, nil
}

func (e *OpenAI) writeBatchInput(texts []string) (string, error) {
	f, err := os.CreateTemp("", "gnosis-batch-*.jsonl")
	if err != nil {
		return "", errors.New(errors.CodeInternal, "failed to create batch input file", err)
	}
	path := f.Name()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for idx, text := range texts {
		req := batchRequest{
			CustomID: fmt.Sprintf("req_%d", idx),
			Method:   "POST",
			URL:      "/v1/embeddings",
			Body: batchRequestBody{
				Model:          e.cfg.Model,
				Input:          text,
				EncodingFormat: "float",
			},
		}
		if err := enc.Encode(&req); err != nil {
			f.Close()
			os.Remove(path)
			return "", errors.New(errors.CodeInternal, "failed to serialize batch request", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.New(errors.CodeInternal, "failed to write batch input file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.New(errors.CodeInternal, "failed to close batch input file", err)
	}
	return path, nil
}

func (e *OpenAI) uploadBatchInput(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.New(errors.CodeInternal, "failed to open batch input file", err)
	}
	defer f.Close()

	file, err := e.client.Files.New(ctx, openai.FileNewParams{
		File:    f,
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		return "", errors.New(errors.CodeEmbedding, "failed to upload batch input file", err)
	}
	return file.ID, nil
}

// pollBatch checks the job on a fixed interval until it reaches a
// terminal status. A non-completed terminal status is fatal for the
// whole call.
func (e *OpenAI) pollBatch(ctx context.Context, batchID string) (*openai.Batch, error) {
	retrieve := resilience.DefaultRetryConfig().WithMaxAttempts(3)

	for {
		var job *openai.Batch
		err := retrieve.Do(ctx, func() error {
			var getErr error
			job, getErr = e.client.Batches.Get(ctx, batchID)
			if getErr != nil {
				return errors.New(errors.CodeEmbedding, "failed to retrieve batch status", getErr).
					WithRecoverable(true)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		slog.Debug("embedding.batch.poll",
			"batch_id", batchID,
			"status", job.Status,
			"completed", job.RequestCounts.Completed,
			"total", job.RequestCounts.Total)

		switch job.Status {
		case openai.BatchStatusCompleted:
			return job, nil
		case openai.BatchStatusFailed, openai.BatchStatusCancelled, openai.BatchStatusExpired:
			return nil, errors.New(errors.CodeBatchFailed,
				fmt.Sprintf("batch job failed with status: %s", job.Status), nil).
				WithContext("batch_id", batchID)
		}

		select {
		case <-ctx.Done():
			return nil, errors.New(errors.CodeTimeout, "batch polling canceled", ctx.Err())
		case <-time.After(e.cfg.PollInterval):
		}
	}
}

func (e *OpenAI) fetchBatchOutput(ctx context.Context, outputFileID string, n int) ([][]float32, error) {
	if outputFileID == "" {
		return nil, errors.New(errors.CodeEmbedding, "completed batch job has no output file", nil)
	}
	resp, err := e.client.Files.Content(ctx, outputFileID)
	if err != nil {
		return nil, errors.New(errors.CodeEmbedding, "failed to download batch output", err)
	}
	defer resp.Body.Close()

	return parseBatchOutput(resp.Body, n)
}

// batchRequest is one line of the batch input JSONL file.
type batchRequest struct {
	CustomID string           `json:"custom_id"`
	Method   string           `json:"method"`
	URL      string           `json:"url"`
	Body     batchRequestBody `json:"body"`
}

type batchRequestBody struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	EncodingFormat string `json:"encoding_format"`
}

// batchResult is one line of the batch output JSONL file.
type batchResult struct {
	CustomID string `json:"custom_id"`
	Response struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Data []struct {
				Embedding []float64 `json:"embedding"`
			} `json:"data"`
		} `json:"body"`
	} `json:"response"`
}

// parseBatchOutput reads result records and places each vector at the
// input position encoded in its req_<index> correlation id. The backend
// may return records in any order; positional assignment restores the
// input order. Records that failed or fall outside [0, n) leave a nil
// gap and are logged, not fatal.
func parseBatchOutput(r io.Reader, n int) ([][]float32, error) {
	vectors := make([][]float32, n)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var result batchResult
		if err := json.Unmarshal(line, &result); err != nil {
			slog.Warn("embedding.batch.bad_record", "error", err)
			continue
		}
		idx, err := batchIndex(result.CustomID)
		if err != nil {
			slog.Warn("embedding.batch.bad_record", "custom_id", result.CustomID, "error", err)
			continue
		}
		if idx < 0 || idx >= n {
			slog.Warn("embedding.batch.bad_record", "custom_id", result.CustomID, "error", "index out of range")
			continue
		}
		if len(result.Response.Body.Data) == 0 {
			slog.Warn("embedding.batch.failed_record", "custom_id", result.CustomID,
				"status_code", result.Response.StatusCode)
			continue
		}
		vectors[idx] = toFloat32(result.Response.Body.Data[0].Embedding)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(errors.CodeEmbedding, "failed to read batch output", err)
	}
	return vectors, nil
}

// batchIndex extracts the numeric suffix from a req_<index> id.
func batchIndex(customID string) (int, error) {
	suffix, ok := strings.CutPrefix(customID, "req_")
	if !ok {
		return 0, fmt.Errorf("unexpected custom id %q", customID)
	}
	return strconv.Atoi(suffix)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
