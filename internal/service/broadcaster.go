package service

// Broadcaster pushes live session events to survey-owner monitors
// (avoids an import cycle with the websocket transport).
type Broadcaster interface {
	BroadcastToSurvey(surveyID string, msgType string, payload interface{})
}
