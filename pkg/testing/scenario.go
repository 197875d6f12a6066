// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides utilities for exercising agent runs in
// tests: a scripted LLM provider, declarative scenarios with
// expectations, and an event collector.
//
// Example:
//
//	scenario := testing.NewScenario("kb lookup").
//	    WithQuery("what is gnosis?").
//	    ExpectAnswer(testing.Contains("gnosis")).
//	    ExpectToolCalls("search_knowledge_base")
//
//	result := scenario.Run(t, func(ctx context.Context, query string) (string, []string, error) {
//	    run, err := runner.Run(ctx, query)
//	    if err != nil {
//	        return "", nil, err
//	    }
//	    return run.Answer, run.ToolCallNames(), nil
//	})
//	result.Assert(t, scenario)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jllopis/gnosis/pkg/core"
)

// RunFunc drives one query through the system under test and reports
// the answer and the tool names dispatched along the way.
type RunFunc func(ctx context.Context, query string) (answer string, toolCalls []string, err error)

// Scenario is a declarative test case for an agent interaction.
type Scenario struct {
	name         string
	query        string
	context      context.Context
	timeout      time.Duration
	collector    *EventCollector
	expectations []Expectation
}

// Expectation is one condition verified against a ScenarioResult.
type Expectation interface {
	Check(result *ScenarioResult) error
	Description() string
}

// ScenarioResult is the outcome of running a scenario.
type ScenarioResult struct {
	Answer    string
	ToolCalls []string
	Err       error
	Events    []core.Event
	Duration  time.Duration
}

// NewScenario creates a scenario with the given name.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:    name,
		timeout: 30 * time.Second,
		context: context.Background(),
	}
}

// WithQuery sets the user query.
func (s *Scenario) WithQuery(query string) *Scenario {
	s.query = query
	return s
}

// WithContext sets the base context.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.context = ctx
	return s
}

// WithTimeout bounds the run.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// WithEventCollector attaches a collector whose events are copied into
// the result after the run.
func (s *Scenario) WithEventCollector(c *EventCollector) *Scenario {
	s.collector = c
	return s
}

// Expect adds an expectation.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectAnswer expects the final answer to match.
func (s *Scenario) ExpectAnswer(matcher StringMatcher) *Scenario {
	return s.Expect(&answerExpectation{matcher: matcher})
}

// ExpectNoError expects the run to succeed.
func (s *Scenario) ExpectNoError() *Scenario {
	return s.Expect(&noErrorExpectation{})
}

// ExpectError expects a run error matching the given pattern.
func (s *Scenario) ExpectError(matcher StringMatcher) *Scenario {
	return s.Expect(&errorExpectation{matcher: matcher})
}

// ExpectToolCall expects the named tool to have been dispatched at
// least once.
func (s *Scenario) ExpectToolCall(toolName string) *Scenario {
	return s.Expect(&toolCallExpectation{toolName: toolName})
}

// ExpectToolCalls expects exactly this dispatch sequence.
func (s *Scenario) ExpectToolCalls(names ...string) *Scenario {
	return s.Expect(&toolCallOrderExpectation{names: names})
}

// ExpectNoToolCalls expects the run to finish without dispatching any
// tool.
func (s *Scenario) ExpectNoToolCalls() *Scenario {
	return s.Expect(&noToolCallsExpectation{})
}

// ExpectEvent expects an event of the given type to have been emitted.
func (s *Scenario) ExpectEvent(eventType core.EventType) *Scenario {
	return s.Expect(&eventExpectation{eventType: eventType})
}

// Run executes the scenario through fn.
func (s *Scenario) Run(t *testing.T, fn RunFunc) *ScenarioResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(s.context, s.timeout)
	defer cancel()

	start := time.Now()
	answer, toolCalls, err := fn(ctx, s.query)
	duration := time.Since(start)

	result := &ScenarioResult{
		Answer:    answer,
		ToolCalls: toolCalls,
		Err:       err,
		Duration:  duration,
	}
	if s.collector != nil {
		result.Events = s.collector.Events()
	}
	return result
}

// Assert checks all expectations and reports failures to the test.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()

	for _, exp := range scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: expectation %q failed: %v", scenario.name, exp.Description(), err)
		}
	}
}

// StringMatcher matches strings in expectations.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals matches exactly.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// MatchesRegex matches against a compiled regular expression.
func MatchesRegex(pattern string) StringMatcher {
	return &regexMatcher{re: regexp.MustCompile(pattern)}
}

type containsMatcher struct {
	substr string
}

func (m *containsMatcher) Match(s string) bool { return strings.Contains(s, m.substr) }
func (m *containsMatcher) Description() string { return fmt.Sprintf("contains %q", m.substr) }

type equalsMatcher struct {
	expected string
}

func (m *equalsMatcher) Match(s string) bool { return s == m.expected }
func (m *equalsMatcher) Description() string { return fmt.Sprintf("equals %q", m.expected) }

type regexMatcher struct {
	re *regexp.Regexp
}

func (m *regexMatcher) Match(s string) bool { return m.re.MatchString(s) }
func (m *regexMatcher) Description() string { return fmt.Sprintf("matches %q", m.re.String()) }

type answerExpectation struct {
	matcher StringMatcher
}

func (e *answerExpectation) Check(r *ScenarioResult) error {
	if !e.matcher.Match(r.Answer) {
		return fmt.Errorf("answer %q does not match", r.Answer)
	}
	return nil
}

func (e *answerExpectation) Description() string {
	return "answer " + e.matcher.Description()
}

type noErrorExpectation struct{}

func (e *noErrorExpectation) Check(r *ScenarioResult) error {
	if r.Err != nil {
		return fmt.Errorf("unexpected error: %v", r.Err)
	}
	return nil
}

func (e *noErrorExpectation) Description() string { return "no error" }

type errorExpectation struct {
	matcher StringMatcher
}

func (e *errorExpectation) Check(r *ScenarioResult) error {
	if r.Err == nil {
		return fmt.Errorf("expected an error, got none")
	}
	if !e.matcher.Match(r.Err.Error()) {
		return fmt.Errorf("error %q does not match", r.Err.Error())
	}
	return nil
}

func (e *errorExpectation) Description() string {
	return "error " + e.matcher.Description()
}

type toolCallExpectation struct {
	toolName string
}

func (e *toolCallExpectation) Check(r *ScenarioResult) error {
	for _, name := range r.ToolCalls {
		if name == e.toolName {
			return nil
		}
	}
	return fmt.Errorf("tool %q not called (calls: %v)", e.toolName, r.ToolCalls)
}

func (e *toolCallExpectation) Description() string {
	return fmt.Sprintf("tool call %q", e.toolName)
}

type toolCallOrderExpectation struct {
	names []string
}

func (e *toolCallOrderExpectation) Check(r *ScenarioResult) error {
	if len(r.ToolCalls) != len(e.names) {
		return fmt.Errorf("got %d tool calls %v, want %d %v", len(r.ToolCalls), r.ToolCalls, len(e.names), e.names)
	}
	for i, name := range e.names {
		if r.ToolCalls[i] != name {
			return fmt.Errorf("tool call %d = %q, want %q", i, r.ToolCalls[i], name)
		}
	}
	return nil
}

func (e *toolCallOrderExpectation) Description() string {
	return fmt.Sprintf("tool calls %v", e.names)
}

type noToolCallsExpectation struct{}

func (e *noToolCallsExpectation) Check(r *ScenarioResult) error {
	if len(r.ToolCalls) > 0 {
		return fmt.Errorf("expected no tool calls, got %v", r.ToolCalls)
	}
	return nil
}

func (e *noToolCallsExpectation) Description() string { return "no tool calls" }

type eventExpectation struct {
	eventType core.EventType
}

func (e *eventExpectation) Check(r *ScenarioResult) error {
	for _, event := range r.Events {
		if event.Type == e.eventType {
			return nil
		}
	}
	return fmt.Errorf("event %q not emitted", e.eventType)
}

func (e *eventExpectation) Description() string {
	return fmt.Sprintf("event %q", e.eventType)
}

// EventCollector records emitted events. It implements
// core.EventEmitter so it can be wired directly into a Runner or
// pipeline.
type EventCollector struct {
	mu     sync.Mutex
	events []core.Event
}

// NewEventCollector creates an empty collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

// Emit implements core.EventEmitter.
func (c *EventCollector) Emit(_ context.Context, event core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of the collected events.
func (c *EventCollector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// EventTypes returns the collected event types in order.
func (c *EventCollector) EventTypes() []core.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]core.EventType, len(c.events))
	for i, event := range c.events {
		types[i] = event.Type
	}
	return types
}

// HasEvent reports whether an event of the given type was collected.
func (c *EventCollector) HasEvent(eventType core.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, event := range c.events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Count returns the number of collected events.
func (c *EventCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Reset clears the collector.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
