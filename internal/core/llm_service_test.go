package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
)

func TestLLMServiceWithoutKeyIsUnavailable(t *testing.T) {
	s := NewLLMService(context.Background(), "", "", zerolog.Nop())
	defer s.Close()

	if s.Available() {
		t.Fatal("expected service without key to be unavailable")
	}
	if _, err := s.Complete(context.Background(), "hello"); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if _, err := s.ListModels(context.Background()); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable from ListModels, got %v", err)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("hi "), genai.Text("there")}},
		}},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hi there" {
		t.Fatalf("expected verbatim concatenation, got %q", got)
	}
}

func TestResponseTextMalformed(t *testing.T) {
	cases := map[string]*genai.GenerateContentResponse{
		"nil":           nil,
		"no candidates": {},
		"nil content":   {Candidates: []*genai.Candidate{{}}},
		"no text parts": {Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}}},
	}
	for name, resp := range cases {
		if _, err := responseText(resp); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
