package service

import (
	"strings"
	"testing"

	"voxpop/internal/model"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short word rounds up to one", text: "hi", want: 1},
		{name: "four chars per token", text: strings.Repeat("a", 400), want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestTotalTokensIncludesOverhead(t *testing.T) {
	exchanges := []model.Exchange{
		{Role: model.RoleUser, Content: strings.Repeat("a", 40)},
		{Role: model.RoleAssistant, Content: strings.Repeat("b", 40)},
	}

	want := 2 * (10 + messageOverheadTokens)
	if got := TotalTokens(exchanges); got != want {
		t.Errorf("TotalTokens = %d, want %d", got, want)
	}
}
