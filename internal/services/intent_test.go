package services

import (
	"context"
	"errors"
	"testing"

)

func TestClassifyKeywordTier(t *testing.T) {
	cases := []struct {
		input string
		want  Intent
	}{
		{"continue", IntentContinue},
		{"  NEXT  ", IntentContinue},
		{"Ready", IntentContinue},
		{"go ahead", IntentContinue},
		{"quiz", IntentAssessment},
		{"Assessment", IntentAssessment},
		{"module", IntentModule},
		{"cancel", IntentCancel},
		{"STOP", IntentCancel},
		{"prev", IntentPrev},
		{"go back", IntentPrev},
		{"menu", IntentHome},
		{"introduction", IntentCourseIntro},
		{"progress", IntentCourseProgress},
		{"hi", IntentGreeting},
		{"Good Morning", IntentGreeting},
		{"what is a goroutine?", IntentQuestion},
		{"", IntentUnknown},
	}

	for _, tc := range cases {
		got, ok := classifyByKeyword(tc.input)
		if !ok {
			t.Fatalf("classifyByKeyword(%q) did not resolve deterministically", tc.input)
		}
		if got != tc.want {
			t.Fatalf("classifyByKeyword(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestClassifyKeywordMiss(t *testing.T) {
	for _, input := range []string{"tell me more about modules please", "asdfgh"} {
		if _, ok := classifyByKeyword(input); ok {
			t.Fatalf("classifyByKeyword(%q) resolved, want AI tier", input)
		}
	}
}

func TestClassifyAIFallback(t *testing.T) {
	log := testLogger(t)
	ai := &fakeAI{jsonOut: map[string]any{"intent": "question"}}
	svc := NewIntentService(log, ai)

	got := svc.Classify(context.Background(), "tell me about goroutines please", "awaiting_user_query")
	if got != IntentQuestion {
		t.Fatalf("Classify = %s, want %s", got, IntentQuestion)
	}
	if ai.jsonCalls != 1 {
		t.Fatalf("jsonCalls = %d, want 1", ai.jsonCalls)
	}
}

func TestClassifyAIFallbackSkippedForKeywords(t *testing.T) {
	log := testLogger(t)
	ai := &fakeAI{jsonOut: map[string]any{"intent": "question"}}
	svc := NewIntentService(log, ai)

	if got := svc.Classify(context.Background(), "continue", "idle"); got != IntentContinue {
		t.Fatalf("Classify = %s, want %s", got, IntentContinue)
	}
	if ai.jsonCalls != 0 {
		t.Fatalf("AI called %d times for a keyword match", ai.jsonCalls)
	}
}

func TestClassifyClampsUnknownLabel(t *testing.T) {
	log := testLogger(t)
	ai := &fakeAI{jsonOut: map[string]any{"intent": "enroll_in_everything"}}
	svc := NewIntentService(log, ai)

	if got := svc.Classify(context.Background(), "gibberish input here", "idle"); got != IntentUnknown {
		t.Fatalf("Classify = %s, want %s", got, IntentUnknown)
	}
}

func TestClassifyAIErrorIsUnknown(t *testing.T) {
	log := testLogger(t)
	ai := &fakeAI{jsonErr: errors.New("upstream timeout")}
	svc := NewIntentService(log, ai)

	if got := svc.Classify(context.Background(), "gibberish input here", "idle"); got != IntentUnknown {
		t.Fatalf("Classify = %s, want %s", got, IntentUnknown)
	}
}
