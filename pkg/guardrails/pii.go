// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
)

// PIIType categorizes a kind of personally identifiable information.
type PIIType string

const (
	PIITypeEmail      PIIType = "email"
	PIITypePhone      PIIType = "phone"
	PIITypeSSN        PIIType = "ssn"
	PIITypeCreditCard PIIType = "credit_card"
	PIITypeIPAddress  PIIType = "ip_address"
	PIITypeAPIKey     PIIType = "api_key"
)

type piiPattern struct {
	piiType PIIType
	pattern *regexp.Regexp
	mask    string
}

// Ordered by specificity: credit cards and SSNs before the phone
// patterns that would otherwise swallow their digit groups. The set is
// deliberately high-precision. Looser patterns (dates, passport-style
// IDs) mangle too many ordinary answers from a document corpus.
var defaultPIIPatterns = []struct {
	piiType PIIType
	pattern string
	mask    string
}{
	{PIITypeCreditCard, `\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`, "[CREDIT_CARD]"},
	{PIITypeCreditCard, `\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13})\b`, "[CREDIT_CARD]"},
	{PIITypeSSN, `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`, "[SSN]"},
	{PIITypeAPIKey, `\bsk-[A-Za-z0-9_-]{16,}\b`, "[API_KEY]"},
	{PIITypeAPIKey, `\bAKIA[0-9A-Z]{16}\b`, "[API_KEY]"},
	{PIITypeEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[EMAIL]"},
	{PIITypePhone, `(?:\+|\b)1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`, "[PHONE]"},
	{PIITypePhone, `\+[0-9]{1,3}[-.\s]?[0-9]{6,14}\b`, "[PHONE]"},
	{PIITypeIPAddress, `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`, "[IP_ADDRESS]"},
}

// PIIFilter masks PII in answers before they leave the service. It is
// an output-only filter: queries are not checked, users may legitimately
// include their own contact details when asking.
type PIIFilter struct {
	patterns []piiPattern
	enabled  map[PIIType]bool
}

// PIIFilterOption configures the filter.
type PIIFilterOption func(*PIIFilter)

// NewPIIFilter builds a filter with every default type enabled.
func NewPIIFilter(opts ...PIIFilterOption) *PIIFilter {
	f := &PIIFilter{enabled: make(map[PIIType]bool)}

	for _, p := range defaultPIIPatterns {
		f.enabled[p.piiType] = true
		f.patterns = append(f.patterns, piiPattern{
			piiType: p.piiType,
			pattern: regexp.MustCompile(p.pattern),
			mask:    p.mask,
		})
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithPIITypes restricts masking to the given types only.
func WithPIITypes(types ...PIIType) PIIFilterOption {
	return func(f *PIIFilter) {
		for k := range f.enabled {
			f.enabled[k] = false
		}
		for _, t := range types {
			f.enabled[t] = true
		}
	}
}

// WithPIIPattern adds a custom pattern. The pattern must compile;
// operator-supplied patterns are validated at startup, not per request.
func WithPIIPattern(piiType PIIType, pattern, mask string) PIIFilterOption {
	return func(f *PIIFilter) {
		f.enabled[piiType] = true
		f.patterns = append(f.patterns, piiPattern{
			piiType: piiType,
			pattern: regexp.MustCompile(pattern),
			mask:    mask,
		})
	}
}

// ID returns the filter identifier.
func (f *PIIFilter) ID() string { return "pii-filter" }

// FilterOutput replaces every enabled PII match with its mask token.
// The redaction log records types and positions but never the matched
// text itself.
func (f *PIIFilter) FilterOutput(ctx context.Context, output string) FilterResult {
	result := FilterResult{Content: output}
	if output == "" {
		return result
	}

	for _, p := range f.patterns {
		if !f.enabled[p.piiType] {
			continue
		}

		select {
		case <-ctx.Done():
			return result
		default:
		}

		matches := p.pattern.FindAllStringIndex(result.Content, -1)

		// Replace back to front so earlier offsets stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			result.Redactions = append(result.Redactions, Redaction{
				Type:        string(p.piiType),
				Replacement: p.mask,
				Position:    m[0],
			})
			result.Content = result.Content[:m[0]] + p.mask + result.Content[m[1]:]
			result.Modified = true
		}
	}
	return result
}

// WithPIIMasking appends a PII masking filter to the output chain.
func WithPIIMasking(opts ...PIIFilterOption) Option {
	return func(g *Guardrails) {
		g.outputFilters = append(g.outputFilters, NewPIIFilter(opts...))
	}
}
