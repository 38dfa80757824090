package service

import (
	"context"
	"encoding/json"
	"errors"
	"hire_assessment_backend/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPGeneratorComplete(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string          `json:"model"`
		Messages []aiChatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `[{"question":"q","options":["a","b"],"correctAnswer":1}]`}},
			},
		})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(config.AIConfig{BaseURL: srv.URL + "/v1/", APIKey: "k", Model: "m"})
	questions, err := g.Generate(context.Background(), GenerateRequest{Topic: "Go", Count: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(questions) != 1 || questions[0].Points != 1 {
		t.Fatalf("questions = %+v", questions)
	}
	if gotAuth != "Bearer k" || gotBody.Model != "m" || len(gotBody.Messages) != 2 || gotBody.Messages[0].Content != questionWriterRole {
		t.Fatalf("request = %q %+v", gotAuth, gotBody)
	}

	text, err := g.Complete(context.Background(), resumeScorerRole, "hello")
	if err != nil || text == "" {
		t.Fatalf("Complete = %q, %v", text, err)
	}
	if gotBody.Messages[0].Content != resumeScorerRole || gotBody.Messages[1].Content != "hello" {
		t.Fatalf("messages = %+v", gotBody.Messages)
	}
}

func TestHTTPGeneratorStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewHTTPGenerator(config.AIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := g.Complete(context.Background(), "", "hello")
	var statusErr *AIStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want AIStatusError 503", err)
	}
	if !retryable(err) {
		t.Fatal("5xx should be retryable")
	}
	if retryable(&AIStatusError{StatusCode: http.StatusBadRequest}) || retryable(ErrGeneratorDisabled) {
		t.Fatal("4xx and disabled provider must not be retried")
	}
}

func TestNewAIClientDisabledWithoutKey(t *testing.T) {
	client, err := NewAIClient(config.AIConfig{Provider: "http"})
	if err != nil {
		t.Fatalf("NewAIClient: %v", err)
	}
	if _, err := client.Complete(context.Background(), "", "x"); !errors.Is(err, ErrGeneratorDisabled) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewAIClient(config.AIConfig{APIKey: "k", Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("unknown provider accepted")
	}
}
