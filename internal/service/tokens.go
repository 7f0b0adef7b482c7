package service

import "voxpop/internal/model"

// charsPerToken is the rough ratio the budget gate uses. Billing truth comes
// from the backend's returned counts, never from this estimate.
const charsPerToken = 4

// messageOverheadTokens accounts for role tags and message framing.
const messageOverheadTokens = 4

// EstimateTokens approximates the token count of a text without a network
// round-trip. Cheap enough to run on every message.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// TotalTokens sums the estimate over a message list.
func TotalTokens(exchanges []model.Exchange) int {
	total := 0
	for _, ex := range exchanges {
		total += EstimateTokens(ex.Content) + messageOverheadTokens
	}
	return total
}
