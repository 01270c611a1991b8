package interview

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinAnswerRunes is the answer length below which a follow-up
// question is requested.
const DefaultMinAnswerRunes = 15

// DefaultHedgeMarkers are phrases that signal an uncertain answer.
var DefaultHedgeMarkers = []string{
	"不确定", "不知道", "可能", "大概", "也许", "应该是", "好像",
	"not sure", "i don't know", "i guess", "maybe", "probably", "i think",
}

// FollowUpPolicy decides whether an answer warrants a follow-up question.
// The zero value never triggers.
type FollowUpPolicy struct {
	// MinAnswerRunes triggers a follow-up for answers with fewer non-space
	// runes. Zero disables the length rule.
	MinAnswerRunes int

	// HedgeMarkers trigger a follow-up when any of them occurs in the
	// answer, compared case-insensitively.
	HedgeMarkers []string
}

// DefaultFollowUpPolicy returns the built-in policy.
func DefaultFollowUpPolicy() FollowUpPolicy {
	return FollowUpPolicy{
		MinAnswerRunes: DefaultMinAnswerRunes,
		HedgeMarkers:   append([]string(nil), DefaultHedgeMarkers...),
	}
}

// Reason reports why answer triggers a follow-up, or "" if it does not.
func (p FollowUpPolicy) Reason(answer string) string {
	if p.MinAnswerRunes > 0 && contentRunes(answer) < p.MinAnswerRunes {
		return "short_answer"
	}
	if len(p.hedgesIn(answer)) > 0 {
		return "hedging"
	}
	return ""
}

// ShouldFollowUp reports whether answer triggers a follow-up.
func (p FollowUpPolicy) ShouldFollowUp(answer string) bool {
	return p.Reason(answer) != ""
}

func (p FollowUpPolicy) hedgesIn(answer string) []string {
	lower := strings.ToLower(answer)
	var found []string
	for _, m := range p.HedgeMarkers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" && strings.Contains(lower, m) {
			found = append(found, m)
		}
	}
	return found
}

// TextSignals are cheap lexical features of an answer passed to the
// evaluator alongside the transcript.
type TextSignals struct {
	Runes        int      `json:"runes"`
	Words        int      `json:"words"`
	HedgeMarkers []string `json:"hedge_markers,omitempty"`
}

// AudioSignals describe prosody of the spoken answer. They are placeholders
// until a prosody analyzer is attached; Placeholder is true for those.
type AudioSignals struct {
	SpeechRate  float64 `json:"speech_rate"`
	Volume      float64 `json:"volume"`
	Clarity     float64 `json:"clarity"`
	Placeholder bool    `json:"placeholder"`
}

// PlaceholderAudioSignals returns neutral audio signals.
func PlaceholderAudioSignals() AudioSignals {
	return AudioSignals{SpeechRate: 0.5, Volume: 0.5, Clarity: 0.5, Placeholder: true}
}

// TextSignalsFor computes text signals for answer using the policy's hedge
// markers.
func (p FollowUpPolicy) TextSignalsFor(answer string) TextSignals {
	return TextSignals{
		Runes:        utf8.RuneCountInString(answer),
		Words:        len(strings.Fields(answer)),
		HedgeMarkers: p.hedgesIn(answer),
	}
}

func contentRunes(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) {
			n++
		}
	}
	return n
}
