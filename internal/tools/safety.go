package tools

import (
	"strings"

	"github.com/user/evinav/internal/catalog"
)

// SafetyChecker matches free text against the configured red-flag keywords.
// It runs before the primary state-machine transition on every turn,
// independent of where the triage tree currently is.
type SafetyChecker struct {
	keywords []string
}

// NewSafetyChecker creates a checker over the given keyword list.
func NewSafetyChecker(keywords []string) *SafetyChecker {
	folded := make([]string, len(keywords))
	for i, k := range keywords {
		folded[i] = foldSafety(k)
	}
	return &SafetyChecker{keywords: folded}
}

func (c *SafetyChecker) Name() string        { return "safety_check" }
func (c *SafetyChecker) Description() string { return "Detect red-flag symptoms in free text" }

// foldSafety normalizes text for red-flag matching. Apostrophes are deleted
// before tokenizing so "can't breathe" and "cant breathe" fold identically.
func foldSafety(s string) string {
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	return catalog.Normalize(s)
}

// Check reports whether the message contains any red-flag keyword.
func (c *SafetyChecker) Check(message string) bool {
	msg := foldSafety(message)
	for _, k := range c.keywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

// EmergencyResponder produces the fixed emergency reply. It is stateless:
// the same text is returned for every invocation.
type EmergencyResponder struct {
	text string
}

// NewEmergencyResponder builds the responder, appending the emergency link
// entries from the registry to the fixed instructions.
func NewEmergencyResponder(cat *catalog.Catalog) *EmergencyResponder {
	var b strings.Builder
	b.WriteString("Important Safety Notice\n")
	b.WriteString("Your message includes symptoms that may be serious.\n\n")
	b.WriteString("**In the UK:**\n")
	b.WriteString("- Call **999** for emergencies.\n")
	b.WriteString("- If unsure but worried, call **NHS 111** for urgent advice.\n")
	for _, link := range cat.Links("emergency") {
		b.WriteString("- " + link.Title + ": " + link.URL + "\n")
	}
	b.WriteString("\nI can continue to provide general information once you're safe.")
	return &EmergencyResponder{text: b.String()}
}

func (e *EmergencyResponder) Name() string        { return "emergency_response" }
func (e *EmergencyResponder) Description() string { return "Fixed safety response for emergencies" }

// Respond returns the fixed emergency instructions.
func (e *EmergencyResponder) Respond() string {
	return e.text
}
