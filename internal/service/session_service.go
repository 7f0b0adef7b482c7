package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"voxpop/internal/cache"
	"voxpop/internal/config"
	"voxpop/internal/model"
	"voxpop/internal/repository"
)

// StartResult is returned when a respondent begins an interview.
type StartResult struct {
	SessionToken    string `json:"sessionToken"`
	InterviewerText string `json:"interviewerText"`
}

// SessionService handles the session lifecycle outside the per-message
// pipeline: start, pause, resume.
type SessionService struct {
	sessionRepo  repository.SessionRepo
	convRepo     repository.ConversationRepo
	surveyRepo   repository.SurveyRepo
	usageRepo    repository.UsageRepo
	sessionCache cache.SessionCache
	counters     cache.OriginCounterCache
	gateway      Generator
	authSvc      *AuthService
	cfg          *config.Config
}

func NewSessionService(
	sessionRepo repository.SessionRepo,
	convRepo repository.ConversationRepo,
	surveyRepo repository.SurveyRepo,
	usageRepo repository.UsageRepo,
	sessionCache cache.SessionCache,
	counters cache.OriginCounterCache,
	gateway Generator,
	authSvc *AuthService,
	cfg *config.Config,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		convRepo:     convRepo,
		surveyRepo:   surveyRepo,
		usageRepo:    usageRepo,
		sessionCache: sessionCache,
		counters:     counters,
		gateway:      gateway,
		authSvc:      authSvc,
		cfg:          cfg,
	}
}

// Start creates an ACTIVE session with its conversation and produces the
// opening interviewer question.
func (s *SessionService) Start(ctx context.Context, surveyID, origin, userAgent, countryCode string) (*StartResult, error) {
	survey, err := s.surveyRepo.GetByID(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}
	if survey == nil {
		return nil, fmt.Errorf("%w: unknown survey", model.ErrInvalidInput)
	}

	session := &model.Session{
		Token:       uuid.New().String(),
		SurveyID:    survey.ID,
		Origin:      origin,
		UserAgent:   userAgent,
		CountryCode: countryCode,
		Status:      model.SessionActive,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	// Best-effort: the abuse counters degrade, they never block a start.
	if _, err := s.counters.IncrSessions(ctx, origin); err != nil {
		log.Printf("session: origin counter increment failed for %s: %v", origin, err)
	}

	opening, usage := s.openingQuestion(ctx, survey)
	s.recordUsage(ctx, session, "interviewer", usage)

	conv := &model.Conversation{
		SessionID: session.ID,
		Exchanges: []model.Exchange{{
			Role:      model.RoleAssistant,
			Content:   opening,
			Timestamp: time.Now(),
		}},
	}
	conv.Usage.Add(usage.InputTokens, usage.OutputTokens, s.cost(usage))
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	if err := s.sessionCache.Set(ctx, session); err != nil {
		log.Printf("session: cache set failed: %v", err)
	}

	return &StartResult{
		SessionToken:    session.Token,
		InterviewerText: opening,
	}, nil
}

// Pause moves an active session to PAUSED and returns a signed resume token.
func (s *SessionService) Pause(ctx context.Context, sessionToken string) (string, error) {
	session, err := s.sessionRepo.GetByToken(ctx, sessionToken)
	if err != nil {
		return "", err
	}
	if session.Status != model.SessionActive {
		return "", model.ErrSessionNotActive
	}

	rev := session.Revision
	session.Status = model.SessionPaused
	if err := s.sessionRepo.UpdateCAS(ctx, session, rev); err != nil {
		return "", err
	}
	s.invalidate(ctx, session.Token)

	return s.authSvc.GenerateResumeToken(session.Token)
}

// Resume validates a resume token and reactivates the paused session.
func (s *SessionService) Resume(ctx context.Context, resumeToken string) (*model.Session, error) {
	sessionToken, err := s.authSvc.ValidateResumeToken(resumeToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	session, err := s.sessionRepo.GetByToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionPaused {
		return nil, model.ErrSessionNotActive
	}

	rev := session.Revision
	session.Status = model.SessionActive
	if err := s.sessionRepo.UpdateCAS(ctx, session, rev); err != nil {
		return nil, err
	}
	s.invalidate(ctx, session.Token)

	return session, nil
}

func (s *SessionService) openingQuestion(ctx context.Context, survey *model.Survey) (string, CallUsage) {
	var usage CallUsage

	result, err := s.gateway.Generate(ctx, s.cfg.AI.Models.Interviewer, []ChatMessage{
		{Role: model.RoleSystem, Content: survey.MasterPrompt},
		{Role: model.RoleUser, Content: "Greet the respondent briefly and ask your opening question."},
	}, GenerateOptions{Temperature: 0.7, MaxOutputTokens: 256})
	usage.Add(result)
	if err != nil || result.Text == "" {
		log.Printf("session: opening question generation failed, using canned opener: %v", err)
		return fmt.Sprintf("Thanks for taking the time to talk with me today. To get us started: %s - what's your experience been?",
			firstTopic(survey)), usage
	}
	return result.Text, usage
}

func firstTopic(survey *model.Survey) string {
	if len(survey.Topics) > 0 {
		return survey.Topics[0]
	}
	return survey.Objective
}

func (s *SessionService) cost(usage CallUsage) float64 {
	return float64(usage.InputTokens)/1e6*s.cfg.AI.InputCostPerMTok +
		float64(usage.OutputTokens)/1e6*s.cfg.AI.OutputCostPerMTok
}

func (s *SessionService) recordUsage(ctx context.Context, session *model.Session, op string, usage CallUsage) {
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return
	}
	rec := &repository.UsageRecord{
		SessionID:    session.ID,
		SurveyID:     session.SurveyID,
		Operation:    op,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Cost:         s.cost(usage),
	}
	if err := s.usageRepo.Record(ctx, rec); err != nil {
		log.Printf("session: usage record failed: %v", err)
	}
}

func (s *SessionService) invalidate(ctx context.Context, token string) {
	if err := s.sessionCache.Delete(ctx, token); err != nil {
		log.Printf("session: cache invalidation failed: %v", err)
	}
}
