package whisper

import (
	"testing"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

func TestSettings_Resolve(t *testing.T) {
	t.Parallel()

	s := newSettings([]Option{WithLanguage("en"), WithSilenceThresholdMs(300), WithThreads(4)})
	if s.threads != 4 || s.maxUtteranceMs != defaultMaxUtteranceMs {
		t.Errorf("settings = %+v, want threads 4 and default max utterance", s)
	}

	tests := []struct {
		name string
		in   stt.StreamConfig
		want stt.StreamConfig
	}{
		{
			name: "zero config takes defaults",
			want: stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en", SilenceMs: 300},
		},
		{
			name: "stream values win",
			in:   stt.StreamConfig{SampleRate: 48000, Channels: 2, Language: "zh", SilenceMs: 900},
			want: stt.StreamConfig{SampleRate: 48000, Channels: 2, Language: "zh", SilenceMs: 900},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.resolve(tt.in)
			if got.SampleRate != tt.want.SampleRate || got.Channels != tt.want.Channels ||
				got.Language != tt.want.Language || got.SilenceMs != tt.want.SilenceMs {
				t.Errorf("resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
