package services

import (
	"context"
	"strings"

	"github.com/wappstudy/wappstudy-backend/internal/clients/openai"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// Intent is one label from the closed classification set. Anything the
// classifier cannot place lands on IntentUnknown.
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentContinue       Intent = "continue"
	IntentAssessment     Intent = "assessment"
	IntentModule         Intent = "module"
	IntentQuestion       Intent = "question"
	IntentCancel         Intent = "cancel"
	IntentPrev           Intent = "prev"
	IntentHome           Intent = "home"
	IntentCourseIntro    Intent = "course-intro"
	IntentCourseProgress Intent = "course-progress"
	IntentUnknown        Intent = "unknown"
)

// IntentService classifies a learner message into one intent. Deterministic
// keyword sets run first; only input no set claims goes to the AI tier.
// Classification never fails: every error path collapses to IntentUnknown.
type IntentService interface {
	Classify(ctx context.Context, text string, conversationState string) Intent
}

type intentService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewIntentService(baseLog *logger.Logger, ai openai.Client) IntentService {
	svcLog := baseLog.With("service", "IntentService")
	return &intentService{log: svcLog, ai: ai}
}

// Keyword sets are mutually exclusive by construction; first match wins in
// the order below. Continue is checked before greeting so "go" never reads
// as small talk.
var keywordIntents = []struct {
	intent   Intent
	keywords []string
}{
	{IntentContinue, []string{"next", "ready", "continue", "go ahead", "move on", "start", "proceed", "go", "yes", "ok", "okay", "repeat"}},
	{IntentAssessment, []string{"assessment", "quiz", "test", "take the quiz", "take quiz"}},
	{IntentModule, []string{"module", "start module", "begin module", "content", "learn"}},
	{IntentCancel, []string{"cancel", "stop", "quit", "exit", "pause"}},
	{IntentPrev, []string{"prev", "previous", "back", "go back"}},
	{IntentHome, []string{"home", "menu", "main menu"}},
	{IntentCourseIntro, []string{"intro", "introduction", "about course", "course info"}},
	{IntentCourseProgress, []string{"progress", "my progress", "status", "how far"}},
	{IntentGreeting, []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "hola"}},
}

var allIntents = []Intent{
	IntentGreeting, IntentContinue, IntentAssessment, IntentModule,
	IntentQuestion, IntentCancel, IntentPrev, IntentHome,
	IntentCourseIntro, IntentCourseProgress, IntentUnknown,
}

func classifyByKeyword(text string) (Intent, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return IntentUnknown, true
	}
	for _, set := range keywordIntents {
		for _, kw := range set.keywords {
			if normalized == kw {
				return set.intent, true
			}
		}
	}
	// A trailing question mark is a strong deterministic signal on its own.
	if strings.HasSuffix(normalized, "?") {
		return IntentQuestion, true
	}
	return IntentUnknown, false
}

func (s *intentService) Classify(ctx context.Context, text string, conversationState string) Intent {
	if intent, ok := classifyByKeyword(text); ok {
		return intent
	}

	labels := make([]string, 0, len(allIntents))
	for _, in := range allIntents {
		labels = append(labels, string(in))
	}

	system := "You classify a learner's WhatsApp message for a course-delivery bot. " +
		"Reply with exactly one label from the allowed set. " +
		"Use 'question' when the learner asks about course material, 'continue' when they want the next piece of content, " +
		"'unknown' when nothing fits."
	user := "Conversation state: " + conversationState + "\n" +
		"Allowed labels: " + strings.Join(labels, ", ") + "\n" +
		"Message: " + text

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": labels,
			},
		},
		"required":             []string{"intent"},
		"additionalProperties": false,
	}

	out, err := s.ai.GenerateJSON(ctx, system, user, "intent_classification", schema)
	if err != nil {
		s.log.Warn("intent classification fell back to unknown", "error", err)
		return IntentUnknown
	}

	label, _ := out["intent"].(string)
	for _, in := range allIntents {
		if string(in) == label {
			return in
		}
	}
	s.log.Warn("classifier returned label outside the set", "label", label)
	return IntentUnknown
}
