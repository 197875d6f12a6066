// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with rich attributes
// for RAG pipeline and agent observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Gnosis telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Agent attributes
	AttrAgentRunID     = "gnosis.agent.run_id"
	AttrAgentModel     = "gnosis.agent.model"
	AttrAgentIteration = "gnosis.agent.iteration"
	AttrAgentMaxIter   = "gnosis.agent.max_iterations"
	AttrAgentMode      = "gnosis.agent.mode" // "agent", "direct"

	// Tool attributes
	AttrToolName       = "gnosis.tool.name"
	AttrToolCallID     = "gnosis.tool.call_id"
	AttrToolArgs       = "gnosis.tool.arguments"
	AttrToolResult     = "gnosis.tool.result"
	AttrToolDurationMs = "gnosis.tool.duration_ms"
	AttrToolSuccess    = "gnosis.tool.success"

	// Ingestion attributes
	AttrIngestFile       = "gnosis.ingest.file"
	AttrIngestFileExt    = "gnosis.ingest.file_ext"
	AttrIngestFileCount  = "gnosis.ingest.file_count"
	AttrIngestChunkCount = "gnosis.ingest.chunk_count"
	AttrIngestChunkSize  = "gnosis.ingest.chunk_size"
	AttrIngestOverlap    = "gnosis.ingest.chunk_overlap"

	// Embedding attributes
	AttrEmbedModel     = "gnosis.embedding.model"
	AttrEmbedCount     = "gnosis.embedding.count"
	AttrEmbedMode      = "gnosis.embedding.mode" // "sync", "batch"
	AttrEmbedBatchID   = "gnosis.embedding.batch_id"
	AttrEmbedBatchStatus = "gnosis.embedding.batch_status"

	// Vector store attributes
	AttrStoreCollection = "gnosis.store.collection"
	AttrStoreUpserted   = "gnosis.store.upserted_count"
	AttrStoreLimit      = "gnosis.store.limit"
	AttrStoreResults    = "gnosis.store.result_count"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"
	AttrLLMToolCalls    = "gen_ai.tool_calls"
	AttrLLMFinishReason = "gen_ai.finish_reason"
)

// AgentAttributes returns common attributes for agent spans.
func AgentAttributes(runID, model, mode string, iteration, maxIter int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentRunID, runID),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	if mode != "" {
		attrs = append(attrs, attribute.String(AttrAgentMode, mode))
	}
	if iteration > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentIteration, iteration))
	}
	if maxIter > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentMaxIter, maxIter))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, callID string, durationMs float64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// ToolCallArgsResult returns attributes with tool arguments and result (truncated for safety).
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if args != "" {
		if len(args) > maxLen {
			args = args[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolArgs, args))
	}
	if result != "" {
		if len(result) > maxLen {
			result = result[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolResult, result))
	}
	return attrs
}

// IngestAttributes returns attributes for document ingestion spans.
func IngestAttributes(file, ext string, chunkCount, chunkSize, overlap int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if file != "" {
		attrs = append(attrs, attribute.String(AttrIngestFile, file))
	}
	if ext != "" {
		attrs = append(attrs, attribute.String(AttrIngestFileExt, ext))
	}
	if chunkCount > 0 {
		attrs = append(attrs, attribute.Int(AttrIngestChunkCount, chunkCount))
	}
	if chunkSize > 0 {
		attrs = append(attrs, attribute.Int(AttrIngestChunkSize, chunkSize))
	}
	if overlap > 0 {
		attrs = append(attrs, attribute.Int(AttrIngestOverlap, overlap))
	}
	return attrs
}

// EmbeddingAttributes returns attributes for embedding spans.
func EmbeddingAttributes(model, mode string, count int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrEmbedCount, count),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrEmbedModel, model))
	}
	if mode != "" {
		attrs = append(attrs, attribute.String(AttrEmbedMode, mode))
	}
	return attrs
}

// BatchAttributes returns attributes for batch job tracking.
func BatchAttributes(batchID, status string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if batchID != "" {
		attrs = append(attrs, attribute.String(AttrEmbedBatchID, batchID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrEmbedBatchStatus, status))
	}
	return attrs
}

// StoreAttributes returns attributes for vector store operations.
func StoreAttributes(collection string, upserted, limit, results int) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if collection != "" {
		attrs = append(attrs, attribute.String(AttrStoreCollection, collection))
	}
	if upserted > 0 {
		attrs = append(attrs, attribute.Int(AttrStoreUpserted, upserted))
	}
	if limit > 0 {
		attrs = append(attrs, attribute.Int(AttrStoreLimit, limit))
	}
	if results > 0 {
		attrs = append(attrs, attribute.Int(AttrStoreResults, results))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, provider string, msgCount int, toolCallCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if toolCallCount > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCallCount))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int, durationMs float64, finishReason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	if finishReason != "" {
		attrs = append(attrs, attribute.String(AttrLLMFinishReason, finishReason))
	}
	return attrs
}
