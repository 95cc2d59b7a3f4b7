package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAnswer(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(GenerateResponse{Response: "the notice period is 30 days"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	answer, err := c.GenerateAnswer(context.Background(), "Document Lease:\nnotice period is 30 days", "What is the notice period?")
	require.NoError(t, err)
	assert.Equal(t, "the notice period is 30 days", answer)
	assert.Equal(t, "test-model", got.Model)
	assert.Contains(t, got.Prompt, "What is the notice period?")
	assert.Contains(t, got.Prompt, "Document Lease:")
}

func TestGenerateAnswerEmptyContext(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(GenerateResponse{Response: "No information for this request."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.GenerateAnswer(context.Background(), "", "anything")
	require.NoError(t, err)
	assert.Contains(t, got.Prompt, "empty", "blank context is surfaced to the model")
}

func TestGenerateAnswerStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunks := []string{"The answer ", "arrives in ", "pieces."}
		var sb strings.Builder
		for _, ch := range chunks {
			raw, _ := json.Marshal(GenerateResponse{Response: ch})
			sb.Write(raw)
			sb.WriteString("\n")
		}
		w.Write([]byte(sb.String()))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	answer, err := c.GenerateAnswer(context.Background(), "ctx", "q")
	require.NoError(t, err)
	assert.Equal(t, "The answer arrives in pieces.", answer)
}

func TestGenerateAnswerBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.GenerateAnswer(context.Background(), "ctx", "q")
	assert.ErrorIs(t, err, ErrUnavailable)
}
