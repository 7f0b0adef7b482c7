package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"voxpop/internal/cache"
	"voxpop/internal/config"
	"voxpop/internal/model"
	"voxpop/internal/repository"
)

// Orchestrator drives the per-message pipeline: spam check, quality check,
// history compression, main generation, coverage tracking and the completion
// decision, then a single compare-and-swap persistence pass. One inbound
// message runs strictly sequentially; concurrent requests for the same
// session lose the CAS and are rejected.
type Orchestrator struct {
	sessionRepo  repository.SessionRepo
	convRepo     repository.ConversationRepo
	surveyRepo   repository.SurveyRepo
	usageRepo    repository.UsageRepo
	sessionCache cache.SessionCache
	counters     cache.OriginCounterCache
	banCache     cache.BanCache

	gateway    Generator
	spam       *SpamDetector
	quality    *QualityClassifier
	compressor *Compressor
	coverage   *CoverageTracker
	completion *CompletionEngine

	broadcaster Broadcaster
	cfg         *config.Config
}

func NewOrchestrator(
	sessionRepo repository.SessionRepo,
	convRepo repository.ConversationRepo,
	surveyRepo repository.SurveyRepo,
	usageRepo repository.UsageRepo,
	sessionCache cache.SessionCache,
	counters cache.OriginCounterCache,
	banCache cache.BanCache,
	gateway Generator,
	spam *SpamDetector,
	quality *QualityClassifier,
	compressor *Compressor,
	coverage *CoverageTracker,
	completion *CompletionEngine,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		sessionRepo:  sessionRepo,
		convRepo:     convRepo,
		surveyRepo:   surveyRepo,
		usageRepo:    usageRepo,
		sessionCache: sessionCache,
		counters:     counters,
		banCache:     banCache,
		gateway:      gateway,
		spam:         spam,
		quality:      quality,
		compressor:   compressor,
		coverage:     coverage,
		completion:   completion,
		cfg:          cfg,
	}
}

// SetBroadcaster sets the monitor broadcaster for live session events.
func (o *Orchestrator) SetBroadcaster(b Broadcaster) {
	o.broadcaster = b
}

// HandleMessage processes one inbound respondent message end to end and
// returns the next interviewer utterance, a re-engagement nudge, or a block.
// On a primary-path failure (the main generation call) nothing is persisted.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionToken, text string) (*model.MessageResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", model.ErrInvalidInput)
	}
	if len(text) > o.cfg.Pipeline.MaxMessageLen {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", model.ErrInvalidInput, o.cfg.Pipeline.MaxMessageLen)
	}

	session, err := o.loadSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionActive {
		return nil, model.ErrSessionNotActive
	}
	startRevision := session.Revision

	survey, err := o.surveyRepo.GetByID(ctx, session.SurveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}
	if survey == nil {
		return nil, fmt.Errorf("survey %s missing for session %s", session.SurveyID, session.ID)
	}

	conv, err := o.convRepo.GetBySessionID(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation missing for session %s", session.ID)
	}

	// Spam/abuse short-circuit: no model call is made, the respondent gets an
	// explicit block and the origin may become ban-eligible.
	if result := o.spam.Check(ctx, session.Origin, conv, text); result.IsSpam {
		return o.block(ctx, session, startRevision, result)
	}

	var totalUsage CallUsage

	// Quality short-circuit: the single re-engagement answers the turn without
	// advancing the interview.
	recentWindow := conv.LastExchanges(o.cfg.Pipeline.CoverageWindow)
	assessment, usage := o.quality.Assess(ctx, text, recentWindow, &session.State)
	totalUsage.Merge(usage)

	if assessment.IsLowQuality {
		session.State.LowQualityCount++
		if session.State.LowQualityCount >= o.quality.FlagThreshold() && !session.State.Flagged {
			o.flag(ctx, session, "repeated low-quality responses")
		}
	}

	if assessment.ShouldReEngage {
		return o.reEngage(ctx, session, conv, survey, startRevision, text, totalUsage)
	}

	// Compress the transcript before assembling the prompt, only when over
	// budget.
	if o.compressor.NeedsCompression(conv.Exchanges, survey.MasterPrompt) {
		compressed, _, cUsage := o.compressor.Compress(ctx, conv.Exchanges, survey.Topics)
		conv.Exchanges = compressed
		totalUsage.Merge(cUsage)
	}

	now := time.Now()
	conv.Exchanges = append(conv.Exchanges, model.Exchange{
		Role:      model.RoleUser,
		Content:   text,
		Timestamp: now,
	})

	// Primary path: the main generation call. Any failure here aborts the
	// pipeline with nothing persisted.
	reply, mainUsage, err := o.generateNextQuestion(ctx, survey, conv)
	if err != nil {
		return nil, err
	}
	totalUsage.Merge(mainUsage)

	conv.Exchanges = append(conv.Exchanges, model.Exchange{
		Role:      model.RoleAssistant,
		Content:   reply.Message,
		Timestamp: time.Now(),
	})

	// Secondary signals degrade gracefully; they never abort the response.
	covered, covUsage := o.coverage.IdentifyCovered(ctx, conv, survey.Topics)
	session.State.MergeCovered(covered)
	totalUsage.Merge(covUsage)

	session.State.ExchangeCount++

	decision, compUsage := o.completion.ShouldEnd(ctx, &session.State, survey, reply.Message)
	totalUsage.Merge(compUsage)

	if decision.End {
		session.Status = model.SessionCompleted
		ended := time.Now()
		session.EndedAt = &ended
	}

	if err := o.persist(ctx, session, conv, startRevision, totalUsage, "interviewer"); err != nil {
		return nil, err
	}

	result := &model.MessageResult{
		InterviewerText: reply.Message,
		Progress:        o.progress(session, survey),
		Ended:           decision.End,
		Summary:         decision.Summary,
	}
	o.broadcast(session, result)
	return result, nil
}

// block flags the session, feeds the ban list when the signal is ban-eligible
// and returns the terminal block response. The transcript is untouched and
// exchangeCount does not advance.
func (o *Orchestrator) block(ctx context.Context, session *model.Session, startRevision int64, spam model.SpamResult) (*model.MessageResult, error) {
	if !session.State.Flagged {
		o.flag(ctx, session, spam.Reason)
	}

	if spam.ShouldBan {
		ttl := time.Duration(o.cfg.Pipeline.BanTTLHours) * time.Hour
		if err := o.banCache.Ban(ctx, session.Origin, spam.Reason, ttl); err != nil {
			log.Printf("orchestrator: ban write failed for %s: %v", session.Origin, err)
		}
	}

	if err := o.updateSession(ctx, session, startRevision); err != nil {
		return nil, err
	}

	result := &model.MessageResult{
		Blocked:     true,
		BlockReason: spam.Reason,
	}
	o.broadcast(session, result)
	return result, nil
}

// reEngage persists the user message plus the one-shot nudge and returns
// without advancing the interview. HasReEngaged flips true here, exactly once
// per session.
func (o *Orchestrator) reEngage(ctx context.Context, session *model.Session, conv *model.Conversation, survey *model.Survey, startRevision int64, text string, usage CallUsage) (*model.MessageResult, error) {
	nudge, nUsage := o.quality.ReEngagementMessage(ctx, conv.LastExchanges(o.cfg.Pipeline.CoverageWindow))
	usage.Merge(nUsage)

	now := time.Now()
	conv.Exchanges = append(conv.Exchanges,
		model.Exchange{Role: model.RoleUser, Content: text, Timestamp: now},
		model.Exchange{Role: model.RoleAssistant, Content: nudge, Timestamp: now},
	)
	session.State.HasReEngaged = true

	if err := o.persist(ctx, session, conv, startRevision, usage, "quality"); err != nil {
		return nil, err
	}

	result := &model.MessageResult{
		InterviewerText: nudge,
		Progress:        o.progress(session, survey),
		ReEngagement:    true,
	}
	o.broadcast(session, result)
	return result, nil
}

// generateNextQuestion assembles master prompt + transcript and makes the
// main generation call. The model is asked for JSON but its output is parsed
// defensively: unparseable text degrades to {message: rawText}.
func (o *Orchestrator) generateNextQuestion(ctx context.Context, survey *model.Survey, conv *model.Conversation) (*model.InterviewerReply, CallUsage, error) {
	var usage CallUsage

	messages := make([]ChatMessage, 0, len(conv.Exchanges)+2)
	messages = append(messages, ChatMessage{
		Role: model.RoleSystem,
		Content: survey.MasterPrompt + `

Respond with ONLY valid JSON: {"message": "your next question to the respondent", "shouldEnd": false}
Set "shouldEnd" to true only when you have just said goodbye.`,
	})
	for _, ex := range conv.Exchanges {
		messages = append(messages, ChatMessage{Role: ex.Role, Content: ex.Content})
	}

	result, err := o.gateway.Generate(ctx, o.cfg.AI.Models.Interviewer, messages, GenerateOptions{
		Temperature:     0.7,
		MaxOutputTokens: 512,
		JSONOutput:      true,
	})
	usage.Add(result)
	if err != nil {
		return nil, usage, err
	}

	return parseInterviewerReply(result.Text), usage, nil
}

// parseInterviewerReply never trusts the model to emit well-formed JSON.
func parseInterviewerReply(raw string) *model.InterviewerReply {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var reply model.InterviewerReply
	if err := json.Unmarshal([]byte(trimmed), &reply); err == nil && reply.Message != "" {
		return &reply
	}
	return &model.InterviewerReply{Message: raw, ShouldEnd: false}
}

// persist writes the conversation, the session state (CAS) and the usage
// ledger entry for this turn.
func (o *Orchestrator) persist(ctx context.Context, session *model.Session, conv *model.Conversation, startRevision int64, usage CallUsage, op string) error {
	cost := o.cost(usage)
	conv.Usage.Add(usage.InputTokens, usage.OutputTokens, cost)

	if err := o.convRepo.Update(ctx, conv); err != nil {
		return fmt.Errorf("persist conversation: %w", err)
	}
	if err := o.updateSession(ctx, session, startRevision); err != nil {
		return err
	}

	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		rec := &repository.UsageRecord{
			SessionID:    session.ID,
			SurveyID:     session.SurveyID,
			Operation:    op,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			Cost:         cost,
		}
		if err := o.usageRepo.Record(ctx, rec); err != nil {
			log.Printf("orchestrator: usage record failed: %v", err)
		}
	}
	return nil
}

func (o *Orchestrator) updateSession(ctx context.Context, session *model.Session, startRevision int64) error {
	if err := o.sessionRepo.UpdateCAS(ctx, session, startRevision); err != nil {
		return err
	}
	if err := o.sessionCache.Delete(ctx, session.Token); err != nil {
		log.Printf("orchestrator: cache invalidation failed: %v", err)
	}
	return nil
}

// flag marks the session for review and bumps the origin's flagged counter,
// which feeds the ban-eligibility signal.
func (o *Orchestrator) flag(ctx context.Context, session *model.Session, reason string) {
	session.State.Flagged = true
	session.State.FlagReason = reason
	if _, err := o.counters.IncrFlagged(ctx, session.Origin); err != nil {
		log.Printf("orchestrator: flagged counter increment failed for %s: %v", session.Origin, err)
	}
}

func (o *Orchestrator) loadSession(ctx context.Context, token string) (*model.Session, error) {
	if cached, err := o.sessionCache.Get(ctx, token); err == nil && cached != nil {
		return cached, nil
	}
	session, err := o.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := o.sessionCache.Set(ctx, session); err != nil {
		log.Printf("orchestrator: cache set failed: %v", err)
	}
	return session, nil
}

// progress is exchangeCount/maxQuestions in fixed mode, covered/total topics
// in topic mode, capped at 100.
func (o *Orchestrator) progress(session *model.Session, survey *model.Survey) float64 {
	var p float64
	switch survey.Settings.StopCondition {
	case model.StopFixedCount:
		if survey.Settings.MaxQuestions > 0 {
			p = float64(session.State.ExchangeCount) / float64(survey.Settings.MaxQuestions) * 100
		}
	default:
		if len(survey.Topics) > 0 {
			p = float64(len(session.State.CoveredTopics)) / float64(len(survey.Topics)) * 100
		}
	}
	if p > 100 {
		p = 100
	}
	return p
}

func (o *Orchestrator) cost(usage CallUsage) float64 {
	return float64(usage.InputTokens)/1e6*o.cfg.AI.InputCostPerMTok +
		float64(usage.OutputTokens)/1e6*o.cfg.AI.OutputCostPerMTok
}

func (o *Orchestrator) broadcast(session *model.Session, result *model.MessageResult) {
	if o.broadcaster == nil {
		return
	}
	msgType := "session_progress"
	switch {
	case result.Blocked:
		msgType = "session_blocked"
	case result.Ended:
		msgType = "session_completed"
	}
	o.broadcaster.BroadcastToSurvey(session.SurveyID, msgType, map[string]interface{}{
		"sessionId": session.ID,
		"progress":  result.Progress,
		"ended":     result.Ended,
		"blocked":   result.Blocked,
	})
}
