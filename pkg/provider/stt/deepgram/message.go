package deepgram

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

type eventKind int

const (
	eventIgnored eventKind = iota
	eventResult
	eventUtteranceEnd
)

// message covers the Results and UtteranceEnd server messages.
type message struct {
	Type        string  `json:"type"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Start       float64 `json:"start"`
	Duration    float64 `json:"duration"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// event is one decoded server message.
type event struct {
	kind        eventKind
	segment     stt.Transcript
	speechFinal bool
}

func parseMessage(data []byte) event {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return event{}
	}
	switch m.Type {
	case "UtteranceEnd":
		return event{kind: eventUtteranceEnd}
	case "Results":
	default:
		return event{}
	}
	if len(m.Channel.Alternatives) == 0 {
		return event{}
	}
	alt := m.Channel.Alternatives[0]
	words := make([]stt.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.Word{
			Text:       w.Word,
			Start:      seconds(w.Start),
			End:        seconds(w.End),
			Confidence: w.Confidence,
		})
	}
	return event{
		kind: eventResult,
		segment: stt.Transcript{
			Text:       strings.TrimSpace(alt.Transcript),
			IsFinal:    m.IsFinal,
			Confidence: alt.Confidence,
			Words:      words,
			Timestamp:  seconds(m.Start),
			Duration:   seconds(m.Duration),
		},
		speechFinal: m.SpeechFinal,
	}
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// utterance joins finalized segments until the speaker stops.
type utterance struct {
	segments []stt.Transcript
}

// add feeds one Results event. It returns the partial to publish and, when
// the event ends the utterance, the joined final.
func (u *utterance) add(ev event) (partial stt.Transcript, final stt.Transcript, done bool) {
	seg := ev.segment
	if !seg.IsFinal {
		return u.preview(seg), stt.Transcript{}, false
	}
	if seg.Text != "" {
		u.segments = append(u.segments, seg)
	}
	if ev.speechFinal {
		final, done = u.flush()
		return stt.Transcript{}, final, done
	}
	return u.preview(stt.Transcript{}), stt.Transcript{}, false
}

// preview is the utterance so far followed by the interim hypothesis.
func (u *utterance) preview(interim stt.Transcript) stt.Transcript {
	text := ""
	for _, s := range u.segments {
		text = joinText(text, s.Text)
	}
	text = joinText(text, interim.Text)
	out := interim
	out.Text = text
	out.IsFinal = false
	if len(u.segments) > 0 {
		out.Timestamp = u.segments[0].Timestamp
	}
	return out
}

// flush returns the joined utterance and resets. done is false when
// nothing was said.
func (u *utterance) flush() (stt.Transcript, bool) {
	if len(u.segments) == 0 {
		return stt.Transcript{}, false
	}
	first, last := u.segments[0], u.segments[len(u.segments)-1]
	out := stt.Transcript{IsFinal: true, Timestamp: first.Timestamp}
	out.Duration = last.End() - first.Timestamp

	var conf float64
	for _, s := range u.segments {
		out.Text = joinText(out.Text, s.Text)
		out.Words = append(out.Words, s.Words...)
		conf += s.Confidence
	}
	out.Confidence = conf / float64(len(u.segments))
	u.segments = u.segments[:0]
	return out, true
}

// joinText concatenates two segments. Han text and full-width punctuation
// are joined without a space.
func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if unicode.Is(unicode.Han, last) || unicode.Is(unicode.Han, first) || isCJKPunct(first) {
		return a + b
	}
	return a + " " + b
}

func isCJKPunct(r rune) bool {
	return r >= 0x3000 && r <= 0x303F || r >= 0xFF00 && r <= 0xFFEF
}
