// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/llm"
)

func TestScenarioProviderReplaysInOrder(t *testing.T) {
	provider := NewScenarioProvider().
		AddToolCallResponse(NewToolCall("search_knowledge_base").WithID("call_1").WithArg("query", "gnosis").Build()).
		AddResponse("final answer")

	resp, err := provider.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "search_knowledge_base" {
		t.Fatalf("first response tool calls = %+v", resp.ToolCalls)
	}

	resp, err = provider.Chat(context.Background(), chatRequest("again"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "final answer" || len(resp.ToolCalls) != 0 {
		t.Fatalf("second response = %+v", resp)
	}

	if _, err := provider.Chat(context.Background(), chatRequest("extra")); err == nil {
		t.Fatal("expected exhaustion error on third call")
	}
	if provider.CallCount() != 3 {
		t.Fatalf("CallCount() = %d, want 3", provider.CallCount())
	}
}

func TestScenarioProviderError(t *testing.T) {
	boom := errors.New("upstream down")
	provider := NewScenarioProvider().AddErrorResponse(boom)

	if _, err := provider.Chat(context.Background(), chatRequest("q")); !errors.Is(err, boom) {
		t.Fatalf("Chat() error = %v, want %v", err, boom)
	}
}

func TestScenarioProviderCapturesRequests(t *testing.T) {
	provider := NewScenarioProvider().AddResponse("a").AddResponse("b")

	provider.Chat(context.Background(), chatRequest("first"))
	provider.Chat(context.Background(), chatRequest("second"))

	reqs := provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("Requests() returned %d, want 2", len(reqs))
	}
	last := provider.LastRequest()
	if last == nil || last.Messages[0].Content != "second" {
		t.Fatalf("LastRequest() = %+v", last)
	}
}

func TestToolCallBuilder(t *testing.T) {
	call := NewToolCall("stock_info").WithID("call_7").WithArg("symbol", "IBM").WithArg("function", "GLOBAL_QUOTE").Build()

	if call.ID != "call_7" || call.Function.Name != "stock_info" {
		t.Fatalf("unexpected call %+v", call)
	}
	if !strings.Contains(call.Function.Arguments, `"symbol":"IBM"`) {
		t.Fatalf("arguments = %s", call.Function.Arguments)
	}

	raw := NewToolCall("stock_info").WithRawArgs(`{broken`).Build()
	if raw.Function.Arguments != `{broken` {
		t.Fatalf("raw arguments = %s", raw.Function.Arguments)
	}
}

func TestMatchers(t *testing.T) {
	if !Contains("edge").Match("knowledge") {
		t.Error("Contains should match substring")
	}
	if Equals("a").Match("b") {
		t.Error("Equals should not match different strings")
	}
	if !MatchesRegex(`^ans.*\d$`).Match("answer 42") {
		t.Error("MatchesRegex should match")
	}
}

func TestScenarioRunAndAssert(t *testing.T) {
	collector := NewEventCollector()
	scenario := NewScenario("scripted run").
		WithQuery("what is gnosis?").
		WithEventCollector(collector).
		ExpectNoError().
		ExpectAnswer(Contains("rag service")).
		ExpectToolCalls("search_knowledge_base").
		ExpectEvent(core.EventRunCompleted)

	result := scenario.Run(t, func(ctx context.Context, query string) (string, []string, error) {
		collector.Emit(ctx, core.NewEvent(core.EventRunStarted, "run-1", nil))
		collector.Emit(ctx, core.NewEvent(core.EventRunCompleted, "run-1", nil))
		return "gnosis is a rag service", []string{"search_knowledge_base"}, nil
	})
	result.Assert(t, scenario)

	if result.Answer != "gnosis is a rag service" {
		t.Fatalf("Answer = %q", result.Answer)
	}
	if len(result.Events) != 2 {
		t.Fatalf("Events = %d, want 2", len(result.Events))
	}
}

func TestToolCallOrderExpectation(t *testing.T) {
	exp := &toolCallOrderExpectation{names: []string{"search_knowledge_base", "stock_info"}}

	ok := &ScenarioResult{ToolCalls: []string{"search_knowledge_base", "stock_info"}}
	if err := exp.Check(ok); err != nil {
		t.Fatalf("Check(ok) = %v", err)
	}

	reordered := &ScenarioResult{ToolCalls: []string{"stock_info", "search_knowledge_base"}}
	if err := exp.Check(reordered); err == nil {
		t.Fatal("Check(reordered) should fail")
	}

	short := &ScenarioResult{ToolCalls: []string{"search_knowledge_base"}}
	if err := exp.Check(short); err == nil {
		t.Fatal("Check(short) should fail")
	}
}

func TestEventCollector(t *testing.T) {
	collector := NewEventCollector()
	ctx := context.Background()

	collector.Emit(ctx, core.NewEvent(core.EventRunStarted, "run-1", nil))
	collector.Emit(ctx, core.NewEvent(core.EventToolCalled, "run-1", map[string]any{"tool": "stock_info"}))

	if collector.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", collector.Count())
	}
	if !collector.HasEvent(core.EventToolCalled) {
		t.Fatal("HasEvent(EventToolCalled) = false")
	}
	types := collector.EventTypes()
	if types[0] != core.EventRunStarted || types[1] != core.EventToolCalled {
		t.Fatalf("EventTypes() = %v", types)
	}

	collector.Reset()
	if collector.Count() != 0 {
		t.Fatalf("Count() after Reset = %d", collector.Count())
	}
}

func chatRequest(content string) llm.ChatRequest {
	return llm.ChatRequest{
		Model:    "test-model",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: content}},
	}
}
