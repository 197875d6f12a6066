// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails filters chat traffic at the service boundary.
//
// Input checkers run before a query reaches the model and can reject it
// outright (prompt injection attempts, operator-blocked terms). Output
// filters rewrite the answer before it leaves the service, masking PII
// that leaked out of ingested documents.
//
// The set of checkers and filters is assembled once at startup from
// configuration:
//
//	guard := guardrails.New(
//	    guardrails.WithPromptInjectionDetector(),
//	    guardrails.WithBlockedTerms("project-atlas"),
//	    guardrails.WithPIIMasking(),
//	)
//
//	if check := guard.CheckInput(ctx, query); check.Blocked {
//	    return check.Reason
//	}
//	answer = guard.FilterOutput(ctx, answer).Content
package guardrails

import "context"

// CheckResult is the outcome of running input checkers over a query.
type CheckResult struct {
	// Blocked indicates the query must not reach the model.
	Blocked bool

	// Reason explains the block. Empty when not blocked.
	Reason string

	// GuardrailID names the checker that blocked the query.
	GuardrailID string

	// Confidence is the detection confidence in [0, 1].
	Confidence float64
}

// FilterResult is the outcome of running output filters over an answer.
type FilterResult struct {
	// Content is the answer after filtering.
	Content string

	// Modified indicates the answer was changed.
	Modified bool

	// Redactions lists what was masked.
	Redactions []Redaction
}

// Redaction describes one masked span in the output.
type Redaction struct {
	// Type categorizes the redaction, e.g. "email" or "api_key".
	Type string

	// Replacement is the mask token that replaced the span.
	Replacement string

	// Position is the byte offset of the span in the content the
	// filter received.
	Position int
}

// InputChecker validates a query before it reaches the model.
type InputChecker interface {
	CheckInput(ctx context.Context, input string) CheckResult
	ID() string
}

// OutputFilter rewrites an answer before it leaves the service.
type OutputFilter interface {
	FilterOutput(ctx context.Context, output string) FilterResult
	ID() string
}

// Guardrails runs a fixed chain of input checkers and output filters.
// The chain is assembled once via New and is safe for concurrent use.
type Guardrails struct {
	inputCheckers []InputChecker
	outputFilters []OutputFilter
}

// Option configures the chain at construction.
type Option func(*Guardrails)

// New builds a guardrail chain from the given options.
func New(opts ...Option) *Guardrails {
	g := &Guardrails{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithInputChecker appends an input checker to the chain.
func WithInputChecker(checker InputChecker) Option {
	return func(g *Guardrails) {
		g.inputCheckers = append(g.inputCheckers, checker)
	}
}

// WithOutputFilter appends an output filter to the chain.
func WithOutputFilter(filter OutputFilter) Option {
	return func(g *Guardrails) {
		g.outputFilters = append(g.outputFilters, filter)
	}
}

// CheckInput runs the checkers in order and returns the first blocking
// result. A cancelled context blocks: a query whose checks did not
// finish is never forwarded.
func (g *Guardrails) CheckInput(ctx context.Context, input string) CheckResult {
	for _, checker := range g.inputCheckers {
		select {
		case <-ctx.Done():
			return CheckResult{
				Blocked:     true,
				Reason:      "guardrail check cancelled",
				GuardrailID: "system",
			}
		default:
		}

		result := checker.CheckInput(ctx, input)
		if result.Blocked {
			result.GuardrailID = checker.ID()
			return result
		}
	}
	return CheckResult{}
}

// FilterOutput runs the filters in order, each receiving the previous
// filter's content. A cancelled context returns the content filtered so
// far.
func (g *Guardrails) FilterOutput(ctx context.Context, output string) FilterResult {
	result := FilterResult{Content: output}

	for _, filter := range g.outputFilters {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		next := filter.FilterOutput(ctx, result.Content)
		if next.Modified {
			result.Content = next.Content
			result.Modified = true
			result.Redactions = append(result.Redactions, next.Redactions...)
		}
	}
	return result
}
