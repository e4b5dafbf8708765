// Package scrub redacts sensitive content from element descriptors
// before they leave the process.
package scrub

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"

	"github.com/vincentbai/shadowtrace/internal/models"
)

// Kind selects how a rule decides whether it applies.
type Kind string

const (
	// ByID applies when the descriptor's id equals the rule's Match.
	ByID Kind = "id"
	// ByRegex applies per field whose value matches the rule's pattern.
	ByRegex Kind = "regex"
)

// Method selects the replacement written over a redacted field.
type Method string

const (
	// Mask writes the fixed MaskToken.
	Mask Method = "mask"
	// Randomize writes a fresh random token per field.
	Randomize Method = "randomize"
)

const (
	// MaskToken replaces masked values.
	MaskToken = "****"
	// RandomTokenLength is the length of randomized replacements.
	RandomTokenLength = 10

	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Rule is a declarative redaction instruction.
type Rule struct {
	Kind   Kind   `json:"type" yaml:"kind"`
	Match  string `json:"match" yaml:"match"`
	Method Method `json:"method" yaml:"method"`
}

// ParseKind validates the string form of a rule kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case ByID, ByRegex:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown scrub rule kind %q", s)
}

// ParseMethod validates the string form of a redaction method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case Mask, Randomize:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown scrub method %q", s)
}

// Source provides the randomness used for randomized tokens.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Option configures an Engine.
type Option func(*Engine)

// WithSource overrides the randomness used by Randomize.
func WithSource(source Source) Option {
	return func(e *Engine) { e.source = source }
}

// WithLogger sets the logger that reports rejected rules.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp // nil for ByID rules
}

// Engine applies a fixed rule set. It is safe for concurrent use as long
// as its Source is.
type Engine struct {
	rules  []compiledRule
	source Source
	logger *slog.Logger
}

// New compiles rules into an Engine. Rules that cannot be used (an
// invalid pattern, an unknown kind or method) fail closed: they are
// logged once and never redact anything.
func New(rules []Rule, opts ...Option) *Engine {
	engine := &Engine{
		source: globalSource{},
		logger: slog.Default().With("component", "scrub"),
	}
	for _, opt := range opts {
		opt(engine)
	}

	for _, rule := range rules {
		if _, err := ParseMethod(string(rule.Method)); err != nil {
			engine.logger.Warn("ignoring scrub rule", "match", rule.Match, "error", err)
			continue
		}
		compiled := compiledRule{Rule: rule}
		switch rule.Kind {
		case ByID:
		case ByRegex:
			pattern, err := regexp.Compile(rule.Match)
			if err != nil {
				engine.logger.Warn("ignoring scrub rule with invalid pattern", "match", rule.Match, "error", err)
				continue
			}
			compiled.pattern = pattern
		default:
			engine.logger.Warn("ignoring scrub rule", "match", rule.Match, "error", fmt.Errorf("unknown kind %q", rule.Kind))
			continue
		}
		engine.rules = append(engine.rules, compiled)
	}
	return engine
}

// Len returns the number of usable rules.
func (e *Engine) Len() int { return len(e.rules) }

// Scrub redacts descriptor in place and returns it. Every rule is tested
// against the values the descriptor had on entry, so one rule's
// replacement never changes whether another rule matches.
func (e *Engine) Scrub(descriptor *models.ElementDescriptor) *models.ElementDescriptor {
	if descriptor == nil || len(e.rules) == 0 {
		return descriptor
	}

	original := descriptor.Clone()
	for _, rule := range e.rules {
		switch rule.Kind {
		case ByID:
			if original.ID != rule.Match {
				continue
			}
			descriptor.InnerText = e.replacement(rule.Method)
			if original.Value != nil {
				value := e.replacement(rule.Method)
				descriptor.Value = &value
			}
			if _, ok := original.Attributes["value"]; ok {
				descriptor.Attributes["value"] = e.replacement(rule.Method)
			}
		case ByRegex:
			if rule.pattern.MatchString(original.InnerText) {
				descriptor.InnerText = e.replacement(rule.Method)
			}
			for name, value := range original.Attributes {
				if rule.pattern.MatchString(value) {
					descriptor.Attributes[name] = e.replacement(rule.Method)
				}
			}
		}
	}
	return descriptor
}

func (e *Engine) replacement(method Method) string {
	if method == Randomize {
		return e.randomToken()
	}
	return MaskToken
}

func (e *Engine) randomToken() string {
	token := make([]byte, RandomTokenLength)
	for i := range token {
		token[i] = alphabet[e.source.IntN(len(alphabet))]
	}
	return string(token)
}
