package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

type sessionFixture struct {
	svc      *SessionService
	gen      *fakeGenerator
	sessions *memSessionRepo
	convs    *memConversationRepo
	usage    *memUsageRepo
	counters *fakeCounters
	surveyID string
}

func newSessionFixture(t *testing.T, routes map[string]func([]ChatMessage) (*GenerateResult, error)) *sessionFixture {
	t.Helper()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{JWTSecret: "test-secret", ResumeTokenTTLHours: 1}

	f := &sessionFixture{
		gen:      &fakeGenerator{handler: routeByModel(routes)},
		sessions: newMemSessionRepo(),
		convs:    newMemConversationRepo(),
		usage:    &memUsageRepo{},
		counters: newFakeCounters(),
	}

	surveys := newMemSurveyRepo()
	survey := &model.Survey{
		Objective:    "Understand churn",
		Topics:       []string{"pricing"},
		MasterPrompt: "You are an expert interviewer.",
		Settings:     model.SurveySettings{StopCondition: model.StopTopicCoverage, MaxQuestions: 20},
	}
	require.NoError(t, surveys.Create(context.Background(), survey))
	f.surveyID = survey.ID

	f.svc = NewSessionService(
		f.sessions, f.convs, surveys, f.usage,
		nopSessionCache{}, f.counters,
		f.gen, NewAuthService(&cfg.Auth), cfg,
	)
	return f
}

func TestStartCreatesSessionAndOpeningQuestion(t *testing.T) {
	routes := map[string]func([]ChatMessage) (*GenerateResult, error){
		"interviewer-model": func([]ChatMessage) (*GenerateResult, error) {
			return &GenerateResult{Text: "Welcome! What made you try the product?", InputTokens: 80, OutputTokens: 12}, nil
		},
	}
	f := newSessionFixture(t, routes)

	result, err := f.svc.Start(context.Background(), f.surveyID, "203.0.113.9", "test-agent", "DE")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionToken)
	assert.Equal(t, "Welcome! What made you try the product?", result.InterviewerText)

	session := f.sessions.stored(result.SessionToken)
	assert.Equal(t, model.SessionActive, session.Status)
	assert.Equal(t, "203.0.113.9", session.Origin)

	conv := f.convs.stored(session.ID)
	require.Len(t, conv.Exchanges, 1)
	assert.Equal(t, model.RoleAssistant, conv.Exchanges[0].Role)
	assert.Positive(t, conv.Usage.InputTokens)

	sessions, _ := f.counters.Sessions(context.Background(), "203.0.113.9")
	assert.Equal(t, int64(1), sessions)

	require.Len(t, f.usage.records, 1)
	assert.Equal(t, "interviewer", f.usage.records[0].Operation)
}

func TestStartUnknownSurvey(t *testing.T) {
	f := newSessionFixture(t, nil)

	_, err := f.svc.Start(context.Background(), "no-such-survey", "203.0.113.9", "", "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestStartFallsBackToCannedOpener(t *testing.T) {
	routes := map[string]func([]ChatMessage) (*GenerateResult, error){
		"interviewer-model": func([]ChatMessage) (*GenerateResult, error) {
			return nil, errors.New("backend down")
		},
	}
	f := newSessionFixture(t, routes)

	result, err := f.svc.Start(context.Background(), f.surveyID, "203.0.113.9", "", "")
	require.NoError(t, err, "opener generation failure must not block the start")
	assert.Contains(t, result.InterviewerText, "pricing")
}

func TestPauseAndResumeRoundTrip(t *testing.T) {
	f := newSessionFixture(t, nil)

	start, err := f.svc.Start(context.Background(), f.surveyID, "203.0.113.9", "", "")
	require.NoError(t, err)

	resumeToken, err := f.svc.Pause(context.Background(), start.SessionToken)
	require.NoError(t, err)
	assert.NotEmpty(t, resumeToken)
	assert.Equal(t, model.SessionPaused, f.sessions.stored(start.SessionToken).Status)

	// Pausing twice fails: the session is no longer active.
	_, err = f.svc.Pause(context.Background(), start.SessionToken)
	assert.ErrorIs(t, err, model.ErrSessionNotActive)

	session, err := f.svc.Resume(context.Background(), resumeToken)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.Status)
	assert.Equal(t, model.SessionActive, f.sessions.stored(start.SessionToken).Status)
}

func TestResumeRejectsGarbageToken(t *testing.T) {
	f := newSessionFixture(t, nil)

	_, err := f.svc.Resume(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestResumeRejectsActiveSession(t *testing.T) {
	f := newSessionFixture(t, nil)

	start, err := f.svc.Start(context.Background(), f.surveyID, "203.0.113.9", "", "")
	require.NoError(t, err)

	resumeToken, err := f.svc.Pause(context.Background(), start.SessionToken)
	require.NoError(t, err)

	_, err = f.svc.Resume(context.Background(), resumeToken)
	require.NoError(t, err)

	// The token is single-use in effect: the session is active again.
	_, err = f.svc.Resume(context.Background(), resumeToken)
	assert.ErrorIs(t, err, model.ErrSessionNotActive)
}
