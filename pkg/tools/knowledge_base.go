// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/gnosis/pkg/retrieve"
)

// NoResultsMessage is returned when the knowledge base has nothing
// relevant for a query.
const NoResultsMessage = "No relevant information found in the knowledge base."

// KnowledgeBase searches ingested documents and returns attributed
// source blocks.
type KnowledgeBase struct {
	retriever *retrieve.Retriever
}

// NewKnowledgeBase wraps retriever as an agent tool.
func NewKnowledgeBase(retriever *retrieve.Retriever) *KnowledgeBase {
	return &KnowledgeBase{retriever: retriever}
}

// Name implements Tool.
func (k *KnowledgeBase) Name() string { return "search_knowledge_base" }

// Description implements Tool.
func (k *KnowledgeBase) Description() string {
	return "Search the knowledge base for relevant information and return context. " +
		"Use this tool when you need to answer questions about documents in the knowledge base."
}

// Parameters implements Tool.
func (k *KnowledgeBase) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query or question to find relevant information for",
			},
		},
		"required": []string{"query"},
	}
}

// Call implements Tool. Results are formatted as numbered source blocks
// carrying file name and tags; an empty retrieval yields a fixed
// sentinel. Failures come back as text, never as errors.
func (k *KnowledgeBase) Call(ctx context.Context, args string) string {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return fmt.Sprintf("Error: invalid arguments for search_knowledge_base: %v", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return "Error: query argument is required."
	}

	docs, err := k.retriever.Retrieve(ctx, params.Query)
	if err != nil {
		slog.Warn("tool.search_knowledge_base.failed", "error", err)
		return fmt.Sprintf("Error searching knowledge base: %v", err)
	}

	if len(docs) == 0 {
		return NoResultsMessage
	}

	blocks := make([]string, len(docs))
	for i, doc := range docs {
		blocks[i] = fmt.Sprintf("[Source %d] (from %s, tags: %s)\n%s",
			i+1, doc.FileName, strings.Join(doc.Tags, ", "), doc.Text)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
