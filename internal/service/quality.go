package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

// dismissiveTokens are replies that carry no information on their own. A
// message of one or two words matching this list is low-quality without a
// model call.
var dismissiveTokens = map[string]bool{
	"idk": true, "idc": true, "dunno": true, "nope": true, "nah": true,
	"no": true, "yes": true, "yeah": true, "yep": true, "ok": true,
	"okay": true, "k": true, "kk": true, "sure": true, "fine": true,
	"whatever": true, "meh": true, "nothing": true, "none": true,
	"maybe": true, "good": true, "bad": true,
}

// QualityClassifier flags low-information respondent replies. Two tiers: a
// free heuristic for trivially dismissive messages, then a model-assisted
// binary check for short-but-not-trivial ones. Long replies are accepted
// without a call.
type QualityClassifier struct {
	gateway       Generator
	modelName     string
	wordThreshold int
	flagAfter     int
}

func NewQualityClassifier(gateway Generator, cfg *config.Config) *QualityClassifier {
	return &QualityClassifier{
		gateway:       gateway,
		modelName:     cfg.AI.Models.Quality,
		wordThreshold: cfg.Pipeline.QualityWordThreshold,
		flagAfter:     cfg.Pipeline.LowQualityFlagAfter,
	}
}

// FlagThreshold is the cumulative low-quality count that flags the session
// for review.
func (q *QualityClassifier) FlagThreshold() int {
	return q.flagAfter
}

// Assess classifies one user message. ShouldReEngage is set on a low-quality
// hit only while the session's single re-engagement is still unused.
func (q *QualityClassifier) Assess(ctx context.Context, message string, recent []model.Exchange, state *model.SessionState) (model.QualityAssessment, CallUsage) {
	var usage CallUsage

	words := strings.Fields(message)
	lowered := strings.ToLower(strings.TrimRight(strings.TrimSpace(message), ".!?"))

	isLow := false
	switch {
	case len(words) <= 2 && dismissiveTokens[lowered]:
		isLow = true
	case len(words) < q.wordThreshold:
		verdict, result, err := q.classify(ctx, message, recent)
		usage.Add(result)
		if err != nil {
			// Degraded classifier accepts the message; strikes are not the
			// kind of signal worth failing a request over.
			log.Printf("quality: classification failed, accepting message: %v", err)
		} else {
			isLow = verdict
		}
	}

	return model.QualityAssessment{
		IsLowQuality:   isLow,
		ShouldReEngage: isLow && !state.HasReEngaged,
	}, usage
}

func (q *QualityClassifier) classify(ctx context.Context, message string, recent []model.Exchange) (bool, *GenerateResult, error) {
	lastQuestion := ""
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Role == model.RoleAssistant {
			lastQuestion = recent[i].Content
			break
		}
	}

	prompt := fmt.Sprintf(`An interviewer asked: "%s"
The respondent replied: "%s"

Is this reply a genuine attempt to answer, or a low-effort dismissal that gives the interviewer nothing to work with?
Reply with exactly one word: LOW_QUALITY or ACCEPTABLE.`, lastQuestion, message)

	result, err := q.gateway.Generate(ctx, q.modelName, []ChatMessage{
		{Role: model.RoleUser, Content: prompt},
	}, GenerateOptions{MaxOutputTokens: 16})
	if err != nil {
		return false, result, fmt.Errorf("%w: %v", model.ErrClassifierDegraded, err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(result.Text))
	return strings.Contains(verdict, "LOW_QUALITY"), result, nil
}

// ReEngagementMessage produces the one-shot nudge that answers a low-quality
// reply instead of advancing the interview. Falls back to a canned line when
// generation fails; the nudge must never fail the request.
func (q *QualityClassifier) ReEngagementMessage(ctx context.Context, recent []model.Exchange) (string, CallUsage) {
	var usage CallUsage

	lastQuestion := ""
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Role == model.RoleAssistant {
			lastQuestion = recent[i].Content
			break
		}
	}

	prompt := fmt.Sprintf(`You are a friendly interviewer. The respondent just gave a very short, dismissive answer to: "%s"
Write one warm sentence encouraging them to elaborate, without repeating the question verbatim. Return only the sentence.`, lastQuestion)

	result, err := q.gateway.Generate(ctx, q.modelName, []ChatMessage{
		{Role: model.RoleUser, Content: prompt},
	}, GenerateOptions{Temperature: 0.7, MaxOutputTokens: 128})
	usage.Add(result)
	if err != nil || strings.TrimSpace(result.Text) == "" {
		log.Printf("quality: re-engagement generation failed, using canned nudge: %v", err)
		return "No rush at all - but could you tell me a bit more? Even a small detail or example would really help.", usage
	}
	return strings.TrimSpace(result.Text), usage
}
