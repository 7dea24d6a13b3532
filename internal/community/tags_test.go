package community

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "lowercases and trims",
			in:   []string{"  Budgeting ", "SAVING"},
			want: []string{"budgeting", "saving"},
		},
		{
			name: "folds diacritics",
			in:   []string{"Crédit", "épargne"},
			want: []string{"credit", "epargne"},
		},
		{
			name: "dedupes preserving first-seen order",
			in:   []string{"saving", "Saving", "budget", "SAVING"},
			want: []string{"saving", "budget"},
		},
		{
			name: "drops empty tags",
			in:   []string{"", "   ", "debt"},
			want: []string{"debt"},
		},
		{
			name: "joins inner whitespace with hyphens",
			in:   []string{"emergency  fund"},
			want: []string{"emergency-fund"},
		},
		{
			name: "drops over-long tags",
			in:   []string{strings.Repeat("a", maxTagLen+1), "ok"},
			want: []string{"ok"},
		},
		{
			name: "empty input",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTags(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
