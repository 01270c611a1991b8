// Package vocab repairs misrecognised domain terms in transcribed answers.
//
// Speech recognizers routinely mangle technical vocabulary ("cooper netties"
// for "Kubernetes", "post gress" for "Postgres"). A [Corrector] holds the
// interview's term list and rewrites each finalized utterance before it is
// recorded and assessed.
//
// Matching runs in two stages per candidate window:
//
//  1. Phonetic filtering: Double Metaphone codes of the window tokens are
//     compared with those of each term. Any shared code makes the term a
//     phonetic candidate, accepted when its Jaro-Winkler similarity reaches
//     the phonetic threshold.
//
//  2. Fuzzy fallback: when no phonetic candidate qualifies, pure
//     Jaro-Winkler similarity is tested with a stricter threshold. Split
//     spellings are compared with their spaces removed.
//
// Windows are n-grams up to the longest term's word count, tried longest
// first, so multi-word terms win over partial single-word matches.
package vocab

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// minWindowRunes is the shortest window considered for an inexact match.
	minWindowRunes = 3

	// minLengthRatio bounds how much shorter a window may be than a term.
	minLengthRatio = 0.75
)

// Option configures a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matched term. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when falling back
// to pure string similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// Replacement records one substitution made by [Corrector.Correct].
type Replacement struct {
	Original string
	Term     string
	Score    float64
}

// term is a vocabulary entry with its phonetic codes precomputed.
type term struct {
	text   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Corrector rewrites known terms in transcribed text. It is read-only after
// construction and safe for concurrent use.
type Corrector struct {
	terms    []term
	maxWords int

	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Corrector for terms. Blank and duplicate terms are ignored.
func New(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		text := strings.TrimSpace(t)
		lower := strings.ToLower(text)
		if text == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}

		tokens := strings.Fields(lower)
		c.terms = append(c.terms, term{
			text:   text,
			lower:  lower,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		c.maxWords = max(c.maxWords, len(tokens))
	}
	return c
}

// Terms returns the vocabulary in its canonical spelling.
func (c *Corrector) Terms() []string {
	out := make([]string, len(c.terms))
	for i, t := range c.terms {
		out[i] = t.text
	}
	return out
}

// Correct returns text with every recognised term window replaced by the
// term's canonical spelling, plus the substitutions made. Punctuation
// around a window is kept. Windows that already read as the canonical term
// are left alone and not reported.
func (c *Corrector) Correct(text string) (string, []Replacement) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(c.terms) == 0 {
		return text, nil
	}

	var (
		out  = make([]string, 0, len(tokens))
		reps []Replacement
	)
	for i := 0; i < len(tokens); {
		n := min(c.maxWords, len(tokens)-i)
		matched := false
		for ; n >= 1; n-- {
			lead, core, trail := splitPunct(tokens[i : i+n])
			if core == "" {
				continue
			}
			t, score, ok := c.match(core)
			if !ok {
				continue
			}
			out = append(out, lead+t.text+trail)
			if core != t.text {
				reps = append(reps, Replacement{Original: core, Term: t.text, Score: score})
			}
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	if len(reps) == 0 {
		return text, nil
	}
	return strings.Join(out, " "), reps
}

// Apply is [Corrector.Correct] without the replacement list. Substitutions
// are logged at debug level.
func (c *Corrector) Apply(text string) string {
	corrected, reps := c.Correct(text)
	for _, r := range reps {
		slog.Debug("vocabulary correction", "original", r.Original, "term", r.Term, "score", r.Score)
	}
	return corrected
}

// match finds the best term for window. A window with as many words as a
// term is compared phonetically and fuzzily. A window with more words than a
// term only matches its space-stripped spelling ("post gres" for
// "Postgres"), and must start with the same letter.
func (c *Corrector) match(window string) (term, float64, bool) {
	lower := strings.ToLower(window)
	for _, t := range c.terms {
		if t.lower == lower {
			return t, 1, true
		}
	}
	if utf8.RuneCountInString(lower) < minWindowRunes || !latinOnly(lower) {
		return term{}, 0, false
	}

	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)
	joined := strings.Join(tokens, "")

	var (
		best         term
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range c.terms {
		switch {
		case len(tokens) == len(t.tokens):
			if !similarLength(lower, t.lower) {
				continue
			}
			score := matchr.JaroWinkler(lower, t.lower, false)
			if codesOverlap(codes, t.codes) {
				if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
					best, bestScore, bestPhonetic = t, score, true
				}
			} else if !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore {
				best, bestScore = t, score
			}

		case len(tokens) > len(t.tokens):
			termJoined := strings.Join(t.tokens, "")
			if bestPhonetic || !sameFirstRune(joined, termJoined) || !similarLength(joined, termJoined) {
				continue
			}
			// A split spelling never adds letters beyond a stray one.
			if utf8.RuneCountInString(joined) > utf8.RuneCountInString(termJoined)+1 {
				continue
			}
			score := matchr.JaroWinkler(joined, termJoined, false)
			if score >= c.fuzzyThreshold && score > bestScore {
				best, bestScore = t, score
			}
		}
	}
	if best.text == "" {
		return term{}, 0, false
	}
	return best, bestScore, true
}

// similarLength reports whether the shorter of a and b has at least
// minLengthRatio of the longer one's runes.
func similarLength(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la > lb {
		la, lb = lb, la
	}
	return lb > 0 && float64(la)/float64(lb) >= minLengthRatio
}

// latinOnly reports whether every letter in s is Latin script. Double
// Metaphone is only meaningful for those.
func latinOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return true
}

func sameFirstRune(a, b string) bool {
	ra, _ := utf8.DecodeRuneInString(a)
	rb, _ := utf8.DecodeRuneInString(b)
	return ra == rb
}

// splitPunct joins tokens into a window, peeling punctuation off its two
// ends.
func splitPunct(tokens []string) (lead, core, trail string) {
	joined := strings.Join(tokens, " ")
	core = strings.TrimLeftFunc(joined, unicode.IsPunct)
	lead = joined[:len(joined)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsPunct)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
