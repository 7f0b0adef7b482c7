package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

// CallUsage is the token accounting for zero or more gateway calls made by a
// pipeline component during one inbound message.
type CallUsage struct {
	InputTokens  int
	OutputTokens int
}

func (u *CallUsage) Add(result *GenerateResult) {
	if result == nil {
		return
	}
	u.InputTokens += result.InputTokens
	u.OutputTokens += result.OutputTokens
}

func (u *CallUsage) Merge(other CallUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Compressor keeps a transcript under the token ceiling by folding older
// exchanges into one synthetic system summary, preserving the most recent
// exchanges verbatim.
type Compressor struct {
	gateway        Generator
	modelName      string
	keepRecent     int
	ceilingTokens  int
	maxRawMessages int
}

func NewCompressor(gateway Generator, cfg *config.Config) *Compressor {
	return &Compressor{
		gateway:        gateway,
		modelName:      cfg.AI.Models.Summarize,
		keepRecent:     cfg.Pipeline.KeepRecentExchanges,
		ceilingTokens:  int(float64(cfg.AI.ContextWindowTokens) * cfg.Pipeline.CompressThresholdRatio),
		maxRawMessages: cfg.Pipeline.CompressAfterExchanges,
	}
}

// NeedsCompression reports whether the transcript plus master prompt is over
// the token ceiling or over the raw exchange threshold.
func (c *Compressor) NeedsCompression(exchanges []model.Exchange, masterPrompt string) bool {
	if len(exchanges) > c.maxRawMessages {
		return true
	}
	return TotalTokens(exchanges)+EstimateTokens(masterPrompt) > c.ceilingTokens
}

// Compress replaces everything but the trailing keepRecent exchanges with one
// synthetic system entry. If the extraction call fails, the older exchanges
// are dropped instead of summarized; the recent window is never touched either
// way. Safe to run on an already-compressed transcript: a previous summary
// entry is just another older exchange eligible for replacement.
func (c *Compressor) Compress(ctx context.Context, exchanges []model.Exchange, topics []string) ([]model.Exchange, *model.ExtractedSummary, CallUsage) {
	var usage CallUsage

	if len(exchanges) <= c.keepRecent {
		return exchanges, nil, usage
	}

	older := exchanges[:len(exchanges)-c.keepRecent]
	recent := exchanges[len(exchanges)-c.keepRecent:]

	summary, result, err := c.extract(ctx, older, topics)
	usage.Add(result)
	if err != nil {
		log.Printf("compressor: extraction failed, dropping %d older exchanges: %v", len(older), err)
		return append([]model.Exchange{}, recent...), nil, usage
	}

	entry := model.Exchange{
		Role:      model.RoleSystem,
		Content:   renderSummary(summary),
		Timestamp: time.Now(),
		Summary:   true,
	}
	compressed := append([]model.Exchange{entry}, recent...)

	// The whole point is to shrink; if the summary somehow came back bigger
	// than what it replaces, drop the older exchanges instead.
	if TotalTokens(compressed) >= TotalTokens(exchanges) {
		log.Printf("compressor: summary larger than input, dropping older exchanges instead")
		return append([]model.Exchange{}, recent...), nil, usage
	}

	return compressed, summary, usage
}

func (c *Compressor) extract(ctx context.Context, older []model.Exchange, topics []string) (*model.ExtractedSummary, *GenerateResult, error) {
	prompt := buildExtractionPrompt(older, topics)
	result, err := c.gateway.Generate(ctx, c.modelName, []ChatMessage{
		{Role: model.RoleUser, Content: prompt},
	}, GenerateOptions{JSONOutput: true, MaxOutputTokens: 1024})
	if err != nil {
		return nil, result, fmt.Errorf("%w: %v", model.ErrClassifierDegraded, err)
	}

	var summary model.ExtractedSummary
	if err := json.Unmarshal([]byte(result.Text), &summary); err != nil {
		return nil, result, fmt.Errorf("%w: parse extraction: %v", model.ErrClassifierDegraded, err)
	}
	if summary.BriefSummary == "" {
		return nil, result, fmt.Errorf("%w: empty extraction", model.ErrClassifierDegraded)
	}
	return &summary, result, nil
}

func buildExtractionPrompt(older []model.Exchange, topics []string) string {
	var transcript strings.Builder
	for _, ex := range older {
		transcript.WriteString(string(ex.Role))
		transcript.WriteString(": ")
		transcript.WriteString(ex.Content)
		transcript.WriteString("\n")
	}

	return fmt.Sprintf(`You are condensing the older part of an interview transcript. Return ONLY valid JSON:
{
  "briefSummary": "2-4 sentences covering what was discussed",
  "keyInsights": ["short direct quote worth keeping", "..."],
  "topicsCovered": ["topic names that were meaningfully discussed"],
  "personaSnapshot": "one sentence on who the respondent seems to be"
}

Research topics for this interview: %s

Transcript to condense:
%s

Keep quotes short and verbatim. Only list topics from the given list.`,
		strings.Join(topics, ", "), transcript.String())
}

func renderSummary(s *model.ExtractedSummary) string {
	var sb strings.Builder
	sb.WriteString("[Earlier conversation summary]\n")
	sb.WriteString(s.BriefSummary)
	if len(s.KeyInsights) > 0 {
		sb.WriteString("\nKey quotes: ")
		sb.WriteString(strings.Join(s.KeyInsights, " | "))
	}
	if len(s.TopicsCovered) > 0 {
		sb.WriteString("\nTopics covered so far: ")
		sb.WriteString(strings.Join(s.TopicsCovered, ", "))
	}
	if s.PersonaSnapshot != "" {
		sb.WriteString("\nRespondent: ")
		sb.WriteString(s.PersonaSnapshot)
	}
	return sb.String()
}
