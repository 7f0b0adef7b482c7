package model

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// SessionState is the mutable per-session bag updated by the orchestrator.
// ExchangeCount only ever increases; CoveredTopics only ever grows; HasReEngaged
// flips false->true at most once per session.
type SessionState struct {
	ExchangeCount   int    `json:"exchangeCount" bson:"exchangeCount"`
	CoveredTopics   []int  `json:"coveredTopics" bson:"coveredTopics"` // indices into Survey.Topics
	LowQualityCount int    `json:"lowQualityCount" bson:"lowQualityCount"`
	HasReEngaged    bool   `json:"hasReEngaged" bson:"hasReEngaged"`
	Flagged         bool   `json:"flagged" bson:"flagged"`
	FlagReason      string `json:"flagReason,omitempty" bson:"flagReason,omitempty"`
}

// CoveredSet returns the covered topic indices as a set.
func (s *SessionState) CoveredSet() map[int]bool {
	set := make(map[int]bool, len(s.CoveredTopics))
	for _, idx := range s.CoveredTopics {
		set[idx] = true
	}
	return set
}

// MergeCovered unions newly covered topic indices into the state. It never
// removes an index and ignores duplicates.
func (s *SessionState) MergeCovered(indices []int) {
	set := s.CoveredSet()
	for _, idx := range indices {
		if !set[idx] {
			set[idx] = true
			s.CoveredTopics = append(s.CoveredTopics, idx)
		}
	}
}

// Session is one respondent's attempt at a survey. Token is the opaque
// capability handed to the respondent; Revision guards concurrent updates
// (compare-and-swap on write).
type Session struct {
	ID          string        `json:"id" bson:"_id,omitempty"`
	Token       string        `json:"token" bson:"token"`
	SurveyID    string        `json:"surveyId" bson:"surveyId"`
	Origin      string        `json:"origin" bson:"origin"` // respondent IP
	UserAgent   string        `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	CountryCode string        `json:"countryCode,omitempty" bson:"countryCode,omitempty"`
	Status      SessionStatus `json:"status" bson:"status"`
	State       SessionState  `json:"state" bson:"state"`
	Revision    int64         `json:"revision" bson:"revision"`
	StartedAt   time.Time     `json:"startedAt" bson:"startedAt"`
	EndedAt     *time.Time    `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}
