package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Escalation reasons produced by the built-in rules and by the orchestrator.
const (
	ReasonCompensation      = "compensation discussion"
	ReasonLegal             = "legal or complaint"
	ReasonOptOut            = "opt-out request"
	ReasonHumanRequested    = "human requested"
	ReasonVisaRelocation    = "visa or relocation"
	ReasonHostile           = "hostile language"
	ReasonComposerFailed    = "auto-response generation failed"
	ReasonComposerUncertain = "auto-response uncertain"
	ReasonNoResource        = "no scheduling resource available"
)

// Rule escalates a message when any phrase or pattern matches. Phrases are
// matched case-insensitively on word boundaries; patterns are regular
// expressions.
type Rule struct {
	Reason   string   `yaml:"reason"`
	Phrases  []string `yaml:"phrases"`
	Patterns []string `yaml:"patterns"`
}

// Classification is the detector's verdict on one message.
type Classification struct {
	NeedsHuman bool
	Reason     string
}

type compiledRule struct {
	reason   string
	matchers []*regexp.Regexp
}

// Detector classifies inbound text against ordered rules. The first
// matching rule wins. It holds no state and is safe for concurrent use.
type Detector struct {
	rules []compiledRule
}

// NewDetector compiles the rules in order.
func NewDetector(rules []Rule) (*Detector, error) {
	d := &Detector{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		if strings.TrimSpace(rule.Reason) == "" {
			return nil, fmt.Errorf("escalation rule without reason")
		}
		compiled := compiledRule{reason: rule.Reason}
		for _, phrase := range rule.Phrases {
			if strings.TrimSpace(phrase) == "" {
				continue
			}
			compiled.matchers = append(compiled.matchers, phraseMatcher(phrase))
		}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("escalation rule %q: invalid pattern %q: %w", rule.Reason, pattern, err)
			}
			compiled.matchers = append(compiled.matchers, re)
		}
		d.rules = append(d.rules, compiled)
	}
	return d, nil
}

// MustNewDetector is NewDetector for rule sets known to compile.
func MustNewDetector(rules []Rule) *Detector {
	d, err := NewDetector(rules)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDefaultDetector returns a detector with the built-in rules.
func NewDefaultDetector() *Detector {
	return MustNewDetector(DefaultRules())
}

// Classify returns the first matching rule's reason. Empty text never
// needs a human.
func (d *Detector) Classify(text string) Classification {
	if strings.TrimSpace(text) == "" {
		return Classification{}
	}
	for _, rule := range d.rules {
		for _, m := range rule.matchers {
			if m.MatchString(text) {
				return Classification{NeedsHuman: true, Reason: rule.reason}
			}
		}
	}
	return Classification{}
}

// phraseMatcher turns "pay range" into (?i)\bpay\s+range\b. Boundaries are
// only anchored next to word characters, so phrases like "$" still work.
func phraseMatcher(phrase string) *regexp.Regexp {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	body := strings.Join(words, `\s+`)

	trimmed := strings.TrimSpace(phrase)
	first := rune(trimmed[0])
	last := rune(trimmed[len(trimmed)-1])
	if isWordRune(first) {
		body = `\b` + body
	}
	if isWordRune(last) {
		body += `\b`
	}
	return regexp.MustCompile("(?i)" + body)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// DefaultRules are the built-in escalation rules, most sensitive first.
func DefaultRules() []Rule {
	return []Rule{
		{
			Reason: ReasonCompensation,
			Phrases: []string{
				"salary", "compensation", "pay range", "salary range", "base pay", "equity",
				"stock options", "signing bonus", "sign-on bonus", "counter offer", "counteroffer",
				"negotiate", "negotiation", "how much does it pay", "what does it pay", "hourly rate",
				"day rate", "benefits package",
			},
			Patterns: []string{`\$\s?\d`, `\b\d{2,3}\s?k\b`, `\b\d{2,3}[,.]\d{3}\s*(usd|eur|gbp|€|£)`},
		},
		{
			Reason: ReasonLegal,
			Phrases: []string{
				"lawyer", "attorney", "lawsuit", "sue", "legal action", "discrimination", "harassment",
				"gdpr", "data protection", "delete my data", "report you", "file a complaint", "complaint",
			},
		},
		{
			Reason: ReasonOptOut,
			Phrases: []string{
				"unsubscribe", "stop messaging", "stop contacting", "stop emailing", "remove me",
				"do not contact", "don't contact", "dont contact", "leave me alone", "not interested",
			},
		},
		{
			Reason: ReasonHumanRequested,
			Phrases: []string{
				"speak to a human", "talk to a human", "real person", "actual person", "talk to someone",
				"are you a bot", "is this a bot", "is this automated", "are you an ai", "call me",
			},
		},
		{
			Reason: ReasonVisaRelocation,
			Phrases: []string{
				"visa", "sponsorship", "sponsor", "relocation", "relocate", "work permit", "h-1b", "h1b",
				"green card", "right to work",
			},
		},
		{
			Reason:   ReasonHostile,
			Phrases:  []string{"scam", "spam", "idiot", "stupid", "shut up", "go away"},
			Patterns: []string{`\bf+u+c+k`, `\bsh[i1]t\b`},
		},
	}
}
