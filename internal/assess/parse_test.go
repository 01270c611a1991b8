package assess_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/intervue/internal/assess"
)

func TestParseJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "plain", content: `{"question":"a"}`, want: "a"},
		{name: "json fence", content: "```json\n{\"question\":\"b\"}\n```", want: "b"},
		{name: "bare fence", content: "  ```\n{\"question\":\"c\"}\n```  ", want: "c"},
		{name: "empty", content: "   ", wantErr: true},
		{name: "prose", content: "请问你能详细说说吗？", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var v struct {
				Question string `json:"question"`
			}
			err := assess.ParseJSON(tt.content, &v)
			if tt.wantErr {
				if !errors.Is(err, assess.ErrMalformedOutput) {
					t.Errorf("ParseJSON() error = %v, want ErrMalformedOutput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseJSON() error: %v", err)
			}
			if v.Question != tt.want {
				t.Errorf("question = %q, want %q", v.Question, tt.want)
			}
		})
	}
}
