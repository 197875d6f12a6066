// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"strings"
)

// TermBlocker rejects queries containing operator-configured terms,
// typically codenames or customer identifiers the service must not
// discuss. Matching is a case-insensitive substring test.
type TermBlocker struct {
	terms []string
}

// NewTermBlocker builds a blocker for the given terms. Empty terms are
// dropped.
func NewTermBlocker(terms ...string) *TermBlocker {
	b := &TermBlocker{}
	for _, term := range terms {
		if t := strings.TrimSpace(term); t != "" {
			b.terms = append(b.terms, strings.ToLower(t))
		}
	}
	return b
}

// ID returns the blocker identifier.
func (b *TermBlocker) ID() string { return "blocked-terms" }

// CheckInput blocks when any configured term occurs in the query. The
// reason never echoes the matched term.
func (b *TermBlocker) CheckInput(ctx context.Context, input string) CheckResult {
	if input == "" || len(b.terms) == 0 {
		return CheckResult{}
	}

	lowered := strings.ToLower(input)
	for _, term := range b.terms {
		if strings.Contains(lowered, term) {
			return CheckResult{
				Blocked:     true,
				Reason:      "query contains a blocked term",
				GuardrailID: b.ID(),
				Confidence:  1.0,
			}
		}
	}
	return CheckResult{}
}

// WithBlockedTerms appends a term blocker to the input chain. No terms
// means no checker.
func WithBlockedTerms(terms ...string) Option {
	return func(g *Guardrails) {
		blocker := NewTermBlocker(terms...)
		if len(blocker.terms) == 0 {
			return
		}
		g.inputCheckers = append(g.inputCheckers, blocker)
	}
}
