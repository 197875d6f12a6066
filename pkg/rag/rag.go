// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package rag implements the direct retrieval-augmented flow: retrieve
// the top documents, build a context prompt and generate one answer
// without any tool dispatch.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/gnosis/pkg/errors"
	"github.com/jllopis/gnosis/pkg/llm"
	"github.com/jllopis/gnosis/pkg/retrieve"
)

const ragSystemPrompt = "You are a helpful assistant that answers questions based on the provided context. If the context doesn't contain relevant information, say so."

const ragTemperature = 0.1

// Result is one answered query with the documents that grounded it.
type Result struct {
	Answer        string   `json:"answer"`
	RetrievedDocs []string `json:"retrieved_docs"`
}

// Answerer generates grounded answers from retrieved context.
type Answerer struct {
	retriever *retrieve.Retriever
	provider  llm.Provider
	tracer    trace.Tracer
}

// NewAnswerer wires a retriever and a model provider together.
func NewAnswerer(retriever *retrieve.Retriever, provider llm.Provider) *Answerer {
	return &Answerer{
		retriever: retriever,
		provider:  provider,
		tracer:    otel.Tracer("gnosis/rag"),
	}
}

// Answer retrieves context for query and generates an answer. An empty
// retrieval still produces an answer; the model is instructed to say so
// when the context has nothing relevant.
func (a *Answerer) Answer(ctx context.Context, query string) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "RAG.Answer")
	defer span.End()

	docs, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: ragSystemPrompt},
			{Role: llm.RoleUser, Content: buildPrompt(query, texts)},
		},
		Temperature: ragTemperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.New(errors.CodeLLMError, "answer generation failed", err)
	}

	return &Result{Answer: resp.Content, RetrievedDocs: texts}, nil
}

// buildPrompt numbers each document block and appends the question.
func buildPrompt(query string, docs []string) string {
	blocks := make([]string, len(docs))
	for i, doc := range docs {
		blocks[i] = fmt.Sprintf("Document %d:\n%s", i+1, doc)
	}
	context := strings.Join(blocks, "\n\n")
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", context, query)
}
