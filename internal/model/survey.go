package model

import "time"

type StopCondition string

const (
	// StopFixedCount ends the interview after a fixed number of exchanges.
	StopFixedCount StopCondition = "fixed_count"
	// StopTopicCoverage ends when every topic is covered and the model judges
	// the conversation naturally concluded.
	StopTopicCoverage StopCondition = "topic_coverage"
)

// SurveySettings configures interviewer behavior for one survey.
type SurveySettings struct {
	Tone          string        `json:"tone" bson:"tone"`     // e.g. "friendly", "formal"
	Length        string        `json:"length" bson:"length"` // target answer depth: "short", "detailed"
	StopCondition StopCondition `json:"stopCondition" bson:"stopCondition"`
	MaxQuestions  int           `json:"maxQuestions" bson:"maxQuestions"`
	Language      string        `json:"language,omitempty" bson:"language,omitempty"`
}

// Survey is the read-only configuration an interview runs against. The master
// prompt is built once at creation time; the pipeline treats the whole record
// as an immutable snapshot.
type Survey struct {
	ID           string         `json:"id" bson:"_id,omitempty"`
	OwnerID      string         `json:"ownerId" bson:"ownerId"`
	Title        string         `json:"title" bson:"title"`
	Objective    string         `json:"objective" bson:"objective"`
	Topics       []string       `json:"topics" bson:"topics"`
	Settings     SurveySettings `json:"settings" bson:"settings"`
	MasterPrompt string         `json:"masterPrompt" bson:"masterPrompt"`
	CreatedAt    time.Time      `json:"createdAt" bson:"createdAt"`
}
