package coupon

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// NoCode is the sentinel sellers use for offers that have no code at all
// (the screenshot then shows the literal text NOCODE).
const NoCode = "NOCODE"

const (
	minPrefixLen = 4
	prefixRatio  = 0.6
)

// Rule identifies which matching rule accepted a code.
type Rule string

const (
	RuleNone     Rule = ""
	RuleSentinel Rule = "sentinel"
	RuleExact    Rule = "exact"
	RulePrefix   Rule = "prefix"
)

// Evaluate reports whether extractedText contains expectedCode under the
// marketplace matching policy. See Match for the rule that fired.
func Evaluate(expectedCode, extractedText string) bool {
	return Match(expectedCode, extractedText) != RuleNone
}

// Match applies the rules in order and returns the first one that accepts:
//
//  1. expected code NOCODE: the text must contain NOCODE;
//  2. the text contains the whole expected code;
//  3. codes longer than 4 runes: the text contains the leading
//     max(4, floor(0.6*len)) runes of the code. Source apps often show
//     only "INSEG3QNG..." for long codes.
//
// An empty expected code always matches via rule 2.
func Match(expectedCode, extractedText string) Rule {
	expected := Normalize(expectedCode)
	text := Normalize(extractedText)

	if expected == NoCode {
		if strings.Contains(text, NoCode) {
			return RuleSentinel
		}
		// the sentinel is decided by rule 1 alone; the prefix rule
		// would otherwise accept "NOCO".
		return RuleNone
	}
	if strings.Contains(text, expected) {
		return RuleExact
	}
	if prefix, ok := TruncatedPrefix(expected); ok && strings.Contains(text, prefix) {
		return RulePrefix
	}
	return RuleNone
}

// TruncatedPrefix returns the leading part of a normalized code that rule 3
// accepts. ok is false for codes of 4 runes or fewer.
func TruncatedPrefix(normalized string) (string, bool) {
	n := utf8.RuneCountInString(normalized)
	if n <= minPrefixLen {
		return "", false
	}
	l := int(math.Floor(float64(n) * prefixRatio))
	if l < minPrefixLen {
		l = minPrefixLen
	}
	return string([]rune(normalized)[:l]), true
}

var formatRe = regexp.MustCompile(`^[A-Za-z0-9-]{4,20}$`)

// ValidFormat reports whether code looks like a typical alphanumeric coupon
// code of 4 to 20 characters. It is informational and never affects matching.
func ValidFormat(code string) bool {
	return formatRe.MatchString(strings.TrimSpace(code))
}
