package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

// CoverageTracker classifies which declared topics have been meaningfully
// discussed. Only a recent window of the transcript is classified per turn;
// results merge monotonically into the session's covered set.
type CoverageTracker struct {
	gateway   Generator
	modelName string
	window    int
}

func NewCoverageTracker(gateway Generator, cfg *config.Config) *CoverageTracker {
	return &CoverageTracker{
		gateway:   gateway,
		modelName: cfg.AI.Models.Coverage,
		window:    cfg.Pipeline.CoverageWindow,
	}
}

// IdentifyCovered returns the indices of topics covered in the recent window.
// On classification failure it returns an empty set; coverage is simply
// re-attempted next turn.
func (t *CoverageTracker) IdentifyCovered(ctx context.Context, conv *model.Conversation, topics []string) ([]int, CallUsage) {
	var usage CallUsage
	if len(topics) == 0 {
		return nil, usage
	}

	recent := conv.LastExchanges(t.window)
	if len(recent) == 0 {
		return nil, usage
	}

	prompt := buildCoveragePrompt(recent, topics)
	result, err := t.gateway.Generate(ctx, t.modelName, []ChatMessage{
		{Role: model.RoleUser, Content: prompt},
	}, GenerateOptions{JSONOutput: true, MaxOutputTokens: 128})
	usage.Add(result)
	if err != nil {
		log.Printf("coverage: classification failed, skipping this turn: %v", err)
		return nil, usage
	}

	var selection struct {
		Covered []int `json:"covered"`
	}
	if err := json.Unmarshal([]byte(result.Text), &selection); err != nil {
		log.Printf("coverage: unparseable selection %q: %v", truncate(result.Text, 120), err)
		return nil, usage
	}

	// Indices outside the topic list are model noise; discard them.
	valid := make([]int, 0, len(selection.Covered))
	for _, idx := range selection.Covered {
		if idx >= 0 && idx < len(topics) {
			valid = append(valid, idx)
		}
	}
	return valid, usage
}

// AllCovered reports whether every declared topic has been covered. Coverage
// is counted, not name-matched: identity only matters for display.
func AllCovered(coveredSet map[int]bool, topics []string) bool {
	return len(coveredSet) >= len(topics)
}

func buildCoveragePrompt(recent []model.Exchange, topics []string) string {
	var list strings.Builder
	for i, topic := range topics {
		fmt.Fprintf(&list, "%d. %s\n", i, topic)
	}

	var transcript strings.Builder
	for _, ex := range recent {
		transcript.WriteString(string(ex.Role))
		transcript.WriteString(": ")
		transcript.WriteString(ex.Content)
		transcript.WriteString("\n")
	}

	return fmt.Sprintf(`Which research topics were meaningfully discussed in this conversation excerpt?
A topic counts only if the respondent actually engaged with it, not if it was merely asked about.
Return ONLY valid JSON: {"covered": [numbers]}. Return {"covered": []} if none.

Topics (by number):
%s
Excerpt:
%s`, list.String(), transcript.String())
}
