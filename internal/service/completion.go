package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

// closingPhrases is the conservative fallback used when the natural-close
// judge is unavailable: end only if the latest utterance reads like a goodbye.
var closingPhrases = []string{
	"thank you for your time",
	"thanks for your time",
	"that's all the questions",
	"this concludes",
	"concludes our interview",
	"wrap up our conversation",
	"have a great day",
}

// CompletionEngine decides whether the interview ends after the interviewer's
// latest utterance.
type CompletionEngine struct {
	gateway   Generator
	modelName string
}

func NewCompletionEngine(gateway Generator, cfg *config.Config) *CompletionEngine {
	return &CompletionEngine{
		gateway:   gateway,
		modelName: cfg.AI.Models.Completion,
	}
}

// ShouldEnd applies the survey's stop condition. In topic-coverage mode both
// full coverage and a positive natural-close judgment are required; coverage
// alone never ends the session. The closing summary is the latest utterance
// itself - the termination path makes no extra summarization call.
func (e *CompletionEngine) ShouldEnd(ctx context.Context, state *model.SessionState, survey *model.Survey, latestUtterance string) (model.CompletionResult, CallUsage) {
	var usage CallUsage

	switch survey.Settings.StopCondition {
	case model.StopFixedCount:
		if state.ExchangeCount >= survey.Settings.MaxQuestions {
			return model.CompletionResult{End: true, Summary: latestUtterance}, usage
		}
		return model.CompletionResult{}, usage

	case model.StopTopicCoverage:
		if !AllCovered(state.CoveredSet(), survey.Topics) {
			return model.CompletionResult{}, usage
		}

		concluded, result, err := e.judgeNaturalClose(ctx, survey, state, latestUtterance)
		usage.Add(result)
		if err != nil {
			log.Printf("completion: judge failed, using closing-phrase fallback: %v", err)
			concluded = containsClosingPhrase(latestUtterance)
		}
		if concluded {
			return model.CompletionResult{End: true, Summary: latestUtterance}, usage
		}
		return model.CompletionResult{}, usage
	}

	return model.CompletionResult{}, usage
}

func (e *CompletionEngine) judgeNaturalClose(ctx context.Context, survey *model.Survey, state *model.SessionState, latestUtterance string) (bool, *GenerateResult, error) {
	prompt := fmt.Sprintf(`An AI interviewer is running a research interview. All %d research topics have been covered over %d exchanges.
The interviewer's latest message to the respondent was:
"%s"

Has the conversation reached a natural close, or is the interviewer mid-thought / awaiting an answer that still matters?
Reply with exactly one word: COMPLETE or CONTINUE.`,
		len(survey.Topics), state.ExchangeCount, latestUtterance)

	result, err := e.gateway.Generate(ctx, e.modelName, []ChatMessage{
		{Role: model.RoleUser, Content: prompt},
	}, GenerateOptions{MaxOutputTokens: 16})
	if err != nil {
		return false, result, fmt.Errorf("%w: %v", model.ErrClassifierDegraded, err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(result.Text))
	return strings.Contains(verdict, "COMPLETE") && !strings.Contains(verdict, "CONTINUE"), result, nil
}

func containsClosingPhrase(utterance string) bool {
	lowered := strings.ToLower(utterance)
	for _, phrase := range closingPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
