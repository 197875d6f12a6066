// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the tool-calling loop that answers user
// queries, dispatching knowledge base searches and market data lookups
// as the model requests them.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/errors"
	"github.com/jllopis/gnosis/pkg/llm"
	"github.com/jllopis/gnosis/pkg/telemetry"
	"github.com/jllopis/gnosis/pkg/tools"
)

const systemPrompt = `You are a helpful AI assistant with access to a knowledge base.

When users ask questions:
1. Use the search_knowledge_base tool to find relevant information from documents
2. Use the stock_info tool when users ask about stock prices or market data
3. Provide clear, accurate answers based on the retrieved context
4. If the knowledge base doesn't contain relevant information, say so clearly
5. Cite sources when providing information

Be conversational and helpful.`

// GiveUpAnswer is the fixed answer returned when the loop exhausts its
// iteration budget without the model producing a final response.
const GiveUpAnswer = "I could not arrive at a final answer after several tool calls. Please try rephrasing your question."

// DefaultMaxIterations bounds the decide/dispatch cycle per run.
const DefaultMaxIterations = 10

// ToolCallRecord captures one dispatched tool invocation.
type ToolCallRecord struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result"`
}

// RunResult is the outcome of a completed agent run.
type RunResult struct {
	Query      string           `json:"query"`
	Answer     string           `json:"answer"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	Iterations int              `json:"iterations"`
}

// ToolCallNames lists the dispatched tool names in call order.
func (r *RunResult) ToolCallNames() []string {
	names := make([]string, len(r.ToolCalls))
	for i, call := range r.ToolCalls {
		names[i] = call.Name
	}
	return names
}

var (
	agentMetricsOnce  sync.Once
	agentRunCounter   metric.Int64Counter
	agentErrorCounter metric.Int64Counter
	agentRunLatencyMs metric.Float64Histogram
	llmLatencyMs      metric.Float64Histogram
	toolLatencyMs     metric.Float64Histogram
)

func initAgentMetrics() {
	agentMetricsOnce.Do(func() {
		meter := otel.Meter("gnosis/agent")
		agentRunCounter, _ = meter.Int64Counter("gnosis.agent.runs",
			metric.WithDescription("Total agent runs"))
		agentErrorCounter, _ = meter.Int64Counter("gnosis.agent.errors",
			metric.WithDescription("Total failed agent runs"))
		agentRunLatencyMs, _ = meter.Float64Histogram("gnosis.agent.run_latency_ms",
			metric.WithDescription("Agent run latency in milliseconds"))
		llmLatencyMs, _ = meter.Float64Histogram("gnosis.agent.llm_latency_ms",
			metric.WithDescription("LLM call latency in milliseconds"))
		toolLatencyMs, _ = meter.Float64Histogram("gnosis.agent.tool_latency_ms",
			metric.WithDescription("Tool call latency in milliseconds"))
	})
}

// Runner drives the tool-calling loop against an LLM provider and a
// fixed tool registry.
type Runner struct {
	provider      llm.Provider
	registry      *tools.Registry
	model         string
	maxIterations int
	emitter       core.EventEmitter
	tracer        trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxIterations overrides the iteration budget. Values below 1 are
// ignored.
func WithMaxIterations(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithEventEmitter attaches a semantic event sink.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(r *Runner) {
		if emitter != nil {
			r.emitter = emitter
		}
	}
}

// NewRunner builds a Runner for the given provider, tools and model.
func NewRunner(provider llm.Provider, registry *tools.Registry, model string, opts ...Option) *Runner {
	r := &Runner{
		provider:      provider,
		registry:      registry,
		model:         model,
		maxIterations: DefaultMaxIterations,
		emitter:       core.NoopEventEmitter{},
		tracer:        otel.Tracer("gnosis/agent"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ToolNames returns the registered tool names in registration order.
func (r *Runner) ToolNames() []string {
	if r.registry == nil {
		return nil
	}
	return r.registry.Names()
}

// Run answers a query. The loop alternates between asking the model to
// decide and dispatching the tool calls it requests, until the model
// responds without tool calls or the iteration budget runs out. Tool
// failures surface to the model as text, never as run errors; provider
// failures abort the run.
func (r *Runner) Run(ctx context.Context, query string) (*RunResult, error) {
	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := r.tracer.Start(ctx, "Agent.Run")
	defer span.End()
	traceID, spanID := traceIDs(span)
	log := slog.Default()

	span.SetAttributes(telemetry.AgentAttributes(runID, r.model, "agent", 0, r.maxIterations)...)

	initAgentMetrics()
	agentRunCounter.Add(ctx, 1)
	start := time.Now()

	log.Info("agent.run.start",
		slog.String("run_id", runID),
		slog.String("trace_id", traceID),
		slog.String("span_id", spanID),
		slog.String("model", r.model),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventRunStarted, runID, map[string]any{
		"query": query,
	}))

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: query},
	}
	defs := r.registry.Definitions()
	result := &RunResult{Query: query}

	for iteration := 1; iteration <= r.maxIterations; iteration++ {
		result.Iterations = iteration
		span.SetAttributes(telemetry.AgentAttributes(runID, "", "", iteration, 0)...)
		r.emitter.Emit(ctx, core.NewEvent(core.EventAgentThinking, runID, map[string]any{
			"iteration": iteration,
		}))

		resp, err := r.chat(ctx, messages, defs)
		if err != nil {
			agentErrorCounter.Add(ctx, 1)
			ke := WrapLLMError(err, r.model)
			if em := GetErrorMetrics(); em != nil {
				em.RecordError(ctx, ke, "agent")
			}
			span.RecordError(ke)
			span.SetStatus(codes.Error, ke.Error())
			log.Error("agent.run.error",
				slog.String("run_id", runID),
				slog.String("trace_id", traceID),
				slog.String("span_id", spanID),
				slog.String("error", err.Error()),
				slog.String("error_code", string(errors.CodeLLMError)),
			)
			r.emitter.Emit(ctx, core.NewEvent(core.EventAgentError, runID, map[string]any{
				"error": err.Error(),
			}))
			return nil, ke
		}

		if len(resp.ToolCalls) == 0 {
			result.Answer = resp.Content
			agentRunLatencyMs.Record(ctx, time.Since(start).Seconds()*1000)
			log.Info("agent.run.complete",
				slog.String("run_id", runID),
				slog.String("trace_id", traceID),
				slog.String("span_id", spanID),
				slog.Int("iterations", iteration),
				slog.Int("tool_calls", len(result.ToolCalls)),
			)
			r.emitter.Emit(ctx, core.NewEvent(core.EventRunCompleted, runID, map[string]any{
				"answer":     result.Answer,
				"iterations": iteration,
			}))
			return result, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			output := r.dispatch(ctx, log, runID, call)
			result.ToolCalls = append(result.ToolCalls, ToolCallRecord{
				Name:   call.Function.Name,
				Args:   call.Function.Arguments,
				Result: output,
			})
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	result.Answer = GiveUpAnswer
	agentRunLatencyMs.Record(ctx, time.Since(start).Seconds()*1000)
	log.Warn("agent.run.exhausted",
		slog.String("run_id", runID),
		slog.String("trace_id", traceID),
		slog.String("span_id", spanID),
		slog.Int("max_iterations", r.maxIterations),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventRunCompleted, runID, map[string]any{
		"answer":    result.Answer,
		"exhausted": true,
	}))
	return result, nil
}

func (r *Runner) chat(ctx context.Context, messages []llm.Message, defs []llm.Tool) (*llm.ChatResponse, error) {
	llmStart := time.Now()
	llmCtx, llmSpan := r.tracer.Start(ctx, "Agent.LLM.Chat")
	llmSpan.SetAttributes(telemetry.LLMAttributes(r.model, "", len(messages), 0)...)

	resp, err := r.provider.Chat(llmCtx, llm.ChatRequest{
		Model:    r.model,
		Messages: messages,
		Tools:    defs,
	})

	llmDurationMs := time.Since(llmStart).Seconds() * 1000
	if resp != nil {
		llmSpan.SetAttributes(telemetry.LLMAttributes(r.model, "", len(messages), len(resp.ToolCalls))...)
		llmSpan.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, llmDurationMs, "")...)
	}
	if err != nil {
		llmSpan.RecordError(err)
		llmSpan.SetStatus(codes.Error, err.Error())
	}
	llmSpan.End()
	llmLatencyMs.Record(ctx, llmDurationMs)
	return resp, err
}

// dispatch executes one requested tool call and returns its text
// output. Unknown tool names come back as error text so the model can
// recover on the next iteration.
func (r *Runner) dispatch(ctx context.Context, log *slog.Logger, runID string, call llm.ToolCall) string {
	name := call.Function.Name
	toolStart := time.Now()
	toolCtx, toolSpan := r.tracer.Start(ctx, "Agent.Tool.Call")

	var output string
	tool, ok := r.registry.Get(name)
	if !ok {
		output = fmt.Sprintf("Error: unknown tool %q.", name)
	} else {
		output = tool.Call(toolCtx, call.Function.Arguments)
	}

	toolDurationMs := time.Since(toolStart).Seconds() * 1000
	success := ok && !strings.HasPrefix(output, "Error")
	toolSpan.SetAttributes(telemetry.ToolCallAttributes(name, call.ID, toolDurationMs, success)...)
	toolSpan.SetAttributes(telemetry.ToolCallArgsResult(call.Function.Arguments, output, 500)...)
	toolSpan.End()
	toolLatencyMs.Record(ctx, toolDurationMs, metric.WithAttributes(
		attribute.String("tool.name", name),
	))

	log.Info("agent.tool.complete",
		slog.String("run_id", runID),
		slog.String("tool", name),
		slog.String("tool_call_id", call.ID),
		slog.Bool("success", success),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventToolCalled, runID, map[string]any{
		"tool":    name,
		"call_id": call.ID,
		"success": success,
	}))
	return output
}

func traceIDs(span trace.Span) (string, string) {
	sc := span.SpanContext()
	return sc.TraceID().String(), sc.SpanID().String()
}
