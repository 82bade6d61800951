// Package prompt assembles token-budgeted prompts for the freeform phase.
// The system prompt grounds the model in the stored profile and any triage
// outcome; the history is trimmed oldest-first to fit the window.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/evinav/internal/catalog"
	"github.com/user/evinav/internal/types"
	"github.com/user/evinav/pkg/llm"
)

// Data feeds the system prompt template.
type Data struct {
	Time          string
	Profile       string
	TriageOutcome string
}

// Engine assembles token-budgeted prompts for the LLM.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	tmpl      *template.Template
	questions []catalog.Question
	maxTokens int
	reserve   int
}

// New creates a prompt engine with the specified token budget.
// model selects the tokenizer (e.g. "gpt-4o"); maxTokens is the model's
// context window; reserve is held back for the model's response.
func New(model string, maxTokens, reserve int, questions []catalog.Question) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	tmpl, err := template.New("system").Parse(DefaultPrompt)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Engine{
		tokenizer: enc,
		tmpl:      tmpl,
		questions: questions,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// BuildPrompt assembles the message list for one completion: the system
// prompt plus as much recent history as the budget allows, newest turns
// preferred, in chronological order.
func (e *Engine) BuildPrompt(sess *types.Session) ([]llm.Message, error) {
	sysPrompt, err := e.systemPrompt(sess)
	if err != nil {
		return nil, err
	}

	budget := e.maxTokens - e.reserve - e.countTokens(sysPrompt)
	var recent []llm.Message
	used := 0
	for i := len(sess.History) - 1; i >= 0; i-- {
		turn := sess.History[i]
		if turn.Role != "user" && turn.Role != "assistant" {
			continue
		}
		cost := e.countTokens(turn.Text)
		if used+cost > budget {
			break
		}
		recent = append(recent, llm.Message{Role: turn.Role, Content: turn.Text})
		used += cost
	}

	messages := make([]llm.Message, 0, 1+len(recent))
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	for i := len(recent) - 1; i >= 0; i-- {
		messages = append(messages, recent[i])
	}
	return messages, nil
}

func (e *Engine) systemPrompt(sess *types.Session) (string, error) {
	data := Data{
		Time:          time.Now().Format(time.RFC3339),
		Profile:       e.profileLines(sess.Profile),
		TriageOutcome: triageOutcome(sess),
	}
	var b strings.Builder
	if err := e.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}

// profileLines renders the stored answers in question order, skipping
// anything the user left blank.
func (e *Engine) profileLines(profile map[string]string) string {
	var lines []string
	for _, q := range e.questions {
		if v := profile[q.Key]; v != "" {
			lines = append(lines, "- "+q.Key+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

func triageOutcome(sess *types.Session) string {
	switch {
	case sess.Emergency:
		return "emergency routing; the user was told to call 999 or go to A&E"
	case sess.PendingOffer != "":
		return fmt.Sprintf("the recommended service is %s; a nearby-service lookup was offered", sess.PendingOffer)
	case sess.TriageState == types.TriageComplete:
		return "the triage questions were completed or skipped"
	default:
		return ""
	}
}
