package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

func gatewayForServer(srv *httptest.Server) *ModelGateway {
	return NewModelGateway(&config.AIConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		TimeoutMS: 2000,
	})
}

func geminiOK(text string, in, out int) string {
	return `{
		"candidates": [{"content": {"parts": [{"text": ` + mustJSON(text) + `}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": ` + itoa(in) + `, "candidatesTokenCount": ` + itoa(out) + `}
	}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestGatewayGenerate(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(geminiOK("What brings you here?", 42, 7)))
	}))
	defer srv.Close()

	g := gatewayForServer(srv)
	result, err := g.Generate(context.Background(), "interviewer-model", []ChatMessage{
		{Role: model.RoleSystem, Content: "You are an interviewer."},
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "Hi! Ready to start?"},
	}, GenerateOptions{Temperature: 0.7, MaxOutputTokens: 128, JSONOutput: true})
	require.NoError(t, err)

	assert.Equal(t, "What brings you here?", result.Text)
	assert.Equal(t, 42, result.InputTokens)
	assert.Equal(t, 7, result.OutputTokens)

	// Gemini has no system role: the instruction folds into the first user
	// turn and the assistant becomes "model".
	require.Len(t, captured.Contents, 2)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Contains(t, captured.Contents[0].Parts[0].Text, "You are an interviewer.")
	assert.Contains(t, captured.Contents[0].Parts[0].Text, "hello")
	assert.Equal(t, "model", captured.Contents[1].Role)

	assert.Equal(t, "application/json", captured.GenerationConfig["responseMimeType"])
}

func TestGatewayRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := gatewayForServer(srv).Generate(context.Background(), "m", []ChatMessage{{Role: model.RoleUser, Content: "hi"}}, GenerateOptions{})
	assert.ErrorIs(t, err, model.ErrTransient)
}

func TestGatewayServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := gatewayForServer(srv).Generate(context.Background(), "m", []ChatMessage{{Role: model.RoleUser, Content: "hi"}}, GenerateOptions{})
	assert.ErrorIs(t, err, model.ErrTransient)
}

func TestGatewayClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad request"}`))
	}))
	defer srv.Close()

	_, err := gatewayForServer(srv).Generate(context.Background(), "m", []ChatMessage{{Role: model.RoleUser, Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrTransient)
}

func TestGatewayPromptBlockIsContentFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := gatewayForServer(srv).Generate(context.Background(), "m", []ChatMessage{{Role: model.RoleUser, Content: "hi"}}, GenerateOptions{})
	assert.ErrorIs(t, err, model.ErrContentFiltered)
}

func TestGatewaySafetyFinishIsContentFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`))
	}))
	defer srv.Close()

	_, err := gatewayForServer(srv).Generate(context.Background(), "m", []ChatMessage{{Role: model.RoleUser, Content: "hi"}}, GenerateOptions{})
	assert.ErrorIs(t, err, model.ErrContentFiltered)
}

func TestGatewayUnreachableBackendIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := gatewayForServer(srv).Generate(context.Background(), "m", []ChatMessage{{Role: model.RoleUser, Content: "hi"}}, GenerateOptions{})
	assert.ErrorIs(t, err, model.ErrTransient)
}
