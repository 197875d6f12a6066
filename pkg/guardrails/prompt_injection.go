// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
)

// Patterns target attempts to address the assistant itself rather than
// the knowledge base. Kept narrow on purpose: a corpus of technical
// documents draws queries like "how do I base64 decode in Go" or
// "switch to insert mode", which broader catalogues misfire on.
var defaultInjectionPatterns = []string{
	// Instruction override
	`(?i)\b(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,

	// Persona replacement
	`(?i)\byou\s+are\s+now\s+(a|an)\s+`,
	`(?i)\bpretend\s+(you\s+are|to\s+be)\s+`,
	`(?i)\broleplay\s+as\s+`,
	`(?i)\byou\s+are\s+(now\s+)?in\s+(developer|debug|admin|sudo)\s+mode`,

	// System prompt extraction
	`(?i)\b(what\s+(is|are)|show\s+me|reveal|print|display)\s+your\s+(system\s+)?(prompt|instructions?)`,

	// Jailbreak phrases
	`(?i)\bdo\s+anything\s+now\b`,
	`(?i)\bDAN\s+mode\b`,
	`(?i)\bjailbreak\b`,
	`(?i)\bbypass\s+(safety|content|filter)`,

	// Chat template delimiters smuggled into the query
	`\]\]\s*(?i:system)\s*:`,
	`<\|[a-z_]+\|>`,
	`(?i)\[/?INST\]`,
	`(?i)<</?SYS>>`,
}

// PromptInjectionDetector scores queries against injection patterns.
// One match already scores above the default threshold, so the default
// configuration blocks on any hit.
type PromptInjectionDetector struct {
	patterns  []*regexp.Regexp
	threshold float64
}

// PromptInjectionOption configures the detector.
type PromptInjectionOption func(*PromptInjectionDetector)

// NewPromptInjectionDetector builds a detector with the default
// pattern set and a zero threshold.
func NewPromptInjectionDetector(opts ...PromptInjectionOption) *PromptInjectionDetector {
	d := &PromptInjectionDetector{
		patterns: make([]*regexp.Regexp, 0, len(defaultInjectionPatterns)),
	}
	for _, pattern := range defaultInjectionPatterns {
		d.patterns = append(d.patterns, regexp.MustCompile(pattern))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithInjectionPatterns adds extra patterns. They must compile;
// operator-supplied patterns are validated at startup, not per request.
func WithInjectionPatterns(patterns ...string) PromptInjectionOption {
	return func(d *PromptInjectionDetector) {
		for _, pattern := range patterns {
			d.patterns = append(d.patterns, regexp.MustCompile(pattern))
		}
	}
}

// WithInjectionThreshold raises the confidence needed to block. A
// single match scores 0.7, each further match adds 0.1 up to 1.0.
func WithInjectionThreshold(threshold float64) PromptInjectionOption {
	return func(d *PromptInjectionDetector) {
		if threshold >= 0 && threshold <= 1 {
			d.threshold = threshold
		}
	}
}

// ID returns the detector identifier.
func (d *PromptInjectionDetector) ID() string { return "prompt-injection" }

// CheckInput counts pattern matches and blocks when the resulting
// confidence reaches the threshold.
func (d *PromptInjectionDetector) CheckInput(ctx context.Context, input string) CheckResult {
	if input == "" {
		return CheckResult{}
	}

	matches := 0
	for _, pattern := range d.patterns {
		select {
		case <-ctx.Done():
			return CheckResult{}
		default:
		}
		if pattern.MatchString(input) {
			matches++
		}
	}
	if matches == 0 {
		return CheckResult{}
	}

	confidence := 0.7 + float64(matches-1)*0.1
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < d.threshold {
		return CheckResult{Confidence: confidence}
	}
	return CheckResult{
		Blocked:     true,
		Reason:      "potential prompt injection detected",
		GuardrailID: d.ID(),
		Confidence:  confidence,
	}
}

// WithPromptInjectionDetector appends an injection detector to the
// input chain.
func WithPromptInjectionDetector(opts ...PromptInjectionOption) Option {
	return func(g *Guardrails) {
		g.inputCheckers = append(g.inputCheckers, NewPromptInjectionDetector(opts...))
	}
}
