package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserExchangesKeepsOrder(t *testing.T) {
	conv := &Conversation{Exchanges: []Exchange{
		{Role: RoleSystem, Content: "summary"},
		{Role: RoleAssistant, Content: "q1"},
		{Role: RoleUser, Content: "a1"},
		{Role: RoleAssistant, Content: "q2"},
		{Role: RoleUser, Content: "a2"},
	}}

	users := conv.UserExchanges()
	assert.Equal(t, []Exchange{
		{Role: RoleUser, Content: "a1"},
		{Role: RoleUser, Content: "a2"},
	}, users)
}

func TestLastExchanges(t *testing.T) {
	conv := &Conversation{Exchanges: []Exchange{
		{Content: "1"}, {Content: "2"}, {Content: "3"},
	}}

	assert.Len(t, conv.LastExchanges(2), 2)
	assert.Equal(t, "2", conv.LastExchanges(2)[0].Content)
	assert.Len(t, conv.LastExchanges(5), 3)
	assert.Empty(t, (&Conversation{}).LastExchanges(3))
}

func TestTokenUsageAdd(t *testing.T) {
	var u TokenUsage
	u.Add(100, 20, 0.005)
	u.Add(50, 10, 0.002)

	assert.Equal(t, 150, u.InputTokens)
	assert.Equal(t, 30, u.OutputTokens)
	assert.InDelta(t, 0.007, u.Cost, 1e-9)
}
