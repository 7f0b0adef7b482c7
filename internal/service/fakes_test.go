package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voxpop/internal/config"
	"voxpop/internal/model"
	"voxpop/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			Models: config.GeminiModels{
				Interviewer: "interviewer-model",
				Summarize:   "summarize-model",
				Coverage:    "coverage-model",
				Quality:     "quality-model",
				Completion:  "completion-model",
			},
			TimeoutMS:           1000,
			ContextWindowTokens: 32000,
			InputCostPerMTok:    0.10,
			OutputCostPerMTok:   0.40,
		},
		Pipeline: config.PipelineConfig{
			MaxMessageLen:          4000,
			CompressThresholdRatio: 0.8,
			CompressAfterExchanges: 20,
			KeepRecentExchanges:    6,
			CoverageWindow:         6,
			QualityWordThreshold:   12,
			LowQualityFlagAfter:    3,
			MinAvgSecondsBetween:   5,
			OriginSessionLimit:     10,
			OriginFlaggedLimit:     3,
			BanTTLHours:            72,
		},
	}
}

// fakeGenerator scripts gateway behavior per call. The handler receives the
// target model name and the full message list; tests inspect recorded calls.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []fakeCall
	handler func(modelName string, messages []ChatMessage) (*GenerateResult, error)
}

type fakeCall struct {
	ModelName string
	Messages  []ChatMessage
}

func (f *fakeGenerator) Generate(ctx context.Context, modelName string, messages []ChatMessage, opts GenerateOptions) (*GenerateResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{ModelName: modelName, Messages: messages})
	f.mu.Unlock()
	if f.handler == nil {
		return &GenerateResult{Text: "ok", InputTokens: 10, OutputTokens: 5}, nil
	}
	return f.handler(modelName, messages)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// memSessionRepo stores deep copies so tests can observe what was actually
// persisted, independent of in-flight mutations.
type memSessionRepo struct {
	mu       sync.Mutex
	byToken  map[string]*model.Session
	nextID   int
	failNext error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byToken: make(map[string]*model.Session)}
}

func copySession(s *model.Session) *model.Session {
	cp := *s
	cp.State.CoveredTopics = append([]int(nil), s.State.CoveredTopics...)
	return &cp
}

func (r *memSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = fmt.Sprintf("sess-%d", r.nextID)
	session.Revision = 1
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	r.byToken[session.Token] = copySession(session)
	return nil
}

func (r *memSessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (r *memSessionRepo) UpdateCAS(ctx context.Context, session *model.Session, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	stored, ok := r.byToken[session.Token]
	if !ok {
		return model.ErrSessionNotFound
	}
	if stored.Revision != expectedRevision {
		return model.ErrConflict
	}
	session.Revision = expectedRevision + 1
	r.byToken[session.Token] = copySession(session)
	return nil
}

func (r *memSessionRepo) CountByOriginSince(ctx context.Context, origin string, since time.Time) (int64, error) {
	return 0, nil
}

func (r *memSessionRepo) stored(token string) *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySession(r.byToken[token])
}

type memConversationRepo struct {
	mu          sync.Mutex
	bySessionID map[string]*model.Conversation
	nextID      int
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{bySessionID: make(map[string]*model.Conversation)}
}

func copyConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Exchanges = append([]model.Exchange(nil), c.Exchanges...)
	return &cp
}

func (r *memConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	conv.ID = fmt.Sprintf("conv-%d", r.nextID)
	r.bySessionID[conv.SessionID] = copyConversation(conv)
	return nil
}

func (r *memConversationRepo) GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bySessionID[sessionID]
	if !ok {
		return nil, nil
	}
	return copyConversation(c), nil
}

func (r *memConversationRepo) Update(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySessionID[conv.SessionID] = copyConversation(conv)
	return nil
}

func (r *memConversationRepo) stored(sessionID string) *model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyConversation(r.bySessionID[sessionID])
}

type memSurveyRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Survey
}

func newMemSurveyRepo() *memSurveyRepo {
	return &memSurveyRepo{byID: make(map[string]*model.Survey)}
}

func (r *memSurveyRepo) Create(ctx context.Context, survey *model.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if survey.ID == "" {
		survey.ID = fmt.Sprintf("survey-%d", len(r.byID)+1)
	}
	r.byID[survey.ID] = survey
	return nil
}

func (r *memSurveyRepo) GetByID(ctx context.Context, id string) (*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memSurveyRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Survey
	for _, s := range r.byID {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memUsageRepo struct {
	mu      sync.Mutex
	records []repository.UsageRecord
}

func (r *memUsageRepo) Record(ctx context.Context, rec *repository.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

// fakeCounters hands back fixed per-origin counts.
type fakeCounters struct {
	mu       sync.Mutex
	sessions map[string]int64
	flagged  map[string]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{
		sessions: make(map[string]int64),
		flagged:  make(map[string]int64),
	}
}

func (c *fakeCounters) IncrSessions(ctx context.Context, origin string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[origin]++
	return c.sessions[origin], nil
}

func (c *fakeCounters) Sessions(ctx context.Context, origin string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[origin], nil
}

func (c *fakeCounters) IncrFlagged(ctx context.Context, origin string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flagged[origin]++
	return c.flagged[origin], nil
}

func (c *fakeCounters) Flagged(ctx context.Context, origin string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flagged[origin], nil
}

type fakeBanCache struct {
	mu   sync.Mutex
	bans map[string]string
}

func newFakeBanCache() *fakeBanCache {
	return &fakeBanCache{bans: make(map[string]string)}
}

func (b *fakeBanCache) IsBanned(ctx context.Context, origin string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bans[origin]
	return ok, nil
}

func (b *fakeBanCache) Ban(ctx context.Context, origin, reason string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bans[origin] = reason
	return nil
}

// nopSessionCache misses on every read so tests always hit the repo.
type nopSessionCache struct{}

func (nopSessionCache) Set(ctx context.Context, session *model.Session) error { return nil }
func (nopSessionCache) Get(ctx context.Context, token string) (*model.Session, error) {
	return nil, nil
}
func (nopSessionCache) Delete(ctx context.Context, token string) error { return nil }
