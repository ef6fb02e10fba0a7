package engine

import "testing"

func TestParseScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"english label", "The code is fine.\nScore: 85", 85},
		{"lowercase label", "score: 42", 42},
		{"chinese label", "代码质量不错。\n总分：90", 90},
		{"chinese label ascii colon", "总分: 77", 77},
		{"no colon", "score 66", 66},
		{"last match wins", "score: 10\nsome text\nscore: 55", 55},
		{"clamped above hundred", "score: 250", 100},
		{"no score at all", "looks good to me", 0},
		{"number without label", "there are 3 issues", 0},
		{"empty text", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseScore(tt.text); got != tt.want {
				t.Errorf("ParseScore(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestSerializeChanges(t *testing.T) {
	got := serializeChanges(nil)
	if got != "" {
		t.Errorf("empty change set should serialize to empty string, got %q", got)
	}
}
