package model

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Exchange is one role-tagged message in a conversation transcript.
type Exchange struct {
	Role      Role      `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	// Summary marks a synthetic entry produced by history compression.
	Summary bool `json:"summary,omitempty" bson:"summary,omitempty"`
}

// TokenUsage holds running totals for a conversation. All fields are
// monotonically non-decreasing.
type TokenUsage struct {
	InputTokens  int     `json:"inputTokens" bson:"inputTokens"`
	OutputTokens int     `json:"outputTokens" bson:"outputTokens"`
	Cost         float64 `json:"cost" bson:"cost"`
}

// Add accumulates another usage sample into the running totals.
func (u *TokenUsage) Add(input, output int, cost float64) {
	u.InputTokens += input
	u.OutputTokens += output
	u.Cost += cost
}

// Conversation is the append-only transcript tied 1:1 to a session. Exchanges
// are kept in insertion order; compression replaces a prefix of old entries
// with a single synthetic system summary but never reorders what remains.
type Conversation struct {
	ID        string     `json:"id" bson:"_id,omitempty"`
	SessionID string     `json:"sessionId" bson:"sessionId"`
	Exchanges []Exchange `json:"exchanges" bson:"exchanges"`
	Usage     TokenUsage `json:"usage" bson:"usage"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// UserExchanges returns only the respondent's turns, in order.
func (c *Conversation) UserExchanges() []Exchange {
	out := make([]Exchange, 0, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		if ex.Role == RoleUser {
			out = append(out, ex)
		}
	}
	return out
}

// LastExchanges returns the trailing n entries (all of them when the
// transcript is shorter than n).
func (c *Conversation) LastExchanges(n int) []Exchange {
	if len(c.Exchanges) <= n {
		return c.Exchanges
	}
	return c.Exchanges[len(c.Exchanges)-n:]
}
