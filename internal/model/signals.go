package model

// ExtractedSummary is the structured extraction the compressor asks the model
// for when folding old exchanges into a single synthetic entry.
type ExtractedSummary struct {
	BriefSummary    string   `json:"briefSummary"`
	KeyInsights     []string `json:"keyInsights,omitempty"`     // short direct quotes worth preserving
	TopicsCovered   []string `json:"topicsCovered,omitempty"`   // topics discussed so far, by name
	PersonaSnapshot string   `json:"personaSnapshot,omitempty"` // who the respondent seems to be
}

// QualityAssessment is the response quality classifier's verdict for one
// user message.
type QualityAssessment struct {
	IsLowQuality   bool `json:"isLowQuality"`
	ShouldReEngage bool `json:"shouldReEngage"`
}

// SpamResult is the spam/abuse detector's verdict for one inbound message.
type SpamResult struct {
	IsSpam    bool   `json:"isSpam"`
	Reason    string `json:"reason,omitempty"`
	ShouldBan bool   `json:"shouldBan"`
}

// CompletionResult is the completion engine's verdict after the interviewer's
// latest utterance.
type CompletionResult struct {
	End     bool   `json:"end"`
	Summary string `json:"summary,omitempty"`
}

// InterviewerReply is the defensively parsed shape of the main generation
// call. Models are asked for JSON but unparseable output degrades to
// {Message: rawText, ShouldEnd: false}.
type InterviewerReply struct {
	Message   string `json:"message"`
	ShouldEnd bool   `json:"shouldEnd"`
}

// MessageResult is what the orchestrator returns to the transport layer for
// one inbound respondent message.
type MessageResult struct {
	InterviewerText string  `json:"interviewerText"`
	Progress        float64 `json:"progress"` // 0..100
	Ended           bool    `json:"ended"`
	Summary         string  `json:"summary,omitempty"`
	Blocked         bool    `json:"blocked,omitempty"`
	BlockReason     string  `json:"blockReason,omitempty"`
	ReEngagement    bool    `json:"reEngagement,omitempty"`
}
