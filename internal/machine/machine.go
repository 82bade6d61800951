// Package machine implements the per-session conversation state machine:
// strict onboarding ordering, triage traversal with red-flag routing, the
// emergency latch, and the deterministic freeform intents. It decides which
// tool fires for a turn; it never calls the language model itself.
package machine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/evinav/internal/catalog"
	"github.com/user/evinav/internal/tools"
	"github.com/user/evinav/internal/types"
)

const intro = `Hi there, welcome to London and to the LBS Community! My name is Evi - Your LBS Healthcare Companion.

I'll start with a few brief questions to get to know you, then you can ask me anything about navigating the NHS and LBS wellbeing services.`

const skipTriageReply = "Okay - skipping triage for now. Ask me anything about NHS services, or say 'triage' to pick it up again."

var skipWords = map[string]bool{
	"skip":              true,
	"prefer not to say": true,
	"n/a":               true,
	"na":                true,
}

// Result is the outcome of advancing the machine by one message.
type Result struct {
	Reply       string
	Categories  []string
	NeedsLLM    bool
	Suggestions []string
	Invocations []types.ToolInvocation
}

// Machine drives one session through its phases. It holds only immutable
// catalog content and stateless tools; all mutable state lives in the
// Session passed to Advance.
type Machine struct {
	cat        *catalog.Catalog
	reg        *tools.Registry
	onboarding *tools.OnboardingProvider
	safety     *tools.SafetyChecker
	stepper    *tools.TriageStepper
	emergency  *tools.EmergencyResponder
	services   *tools.ServiceLookup
	search     *tools.GuidedSearch
}

// New wires a machine over the catalog and tool set.
func New(cat *catalog.Catalog, services *tools.ServiceLookup, search *tools.GuidedSearch) *Machine {
	m := &Machine{
		cat:        cat,
		reg:        tools.NewRegistry(),
		onboarding: tools.NewOnboardingProvider(cat.Questions),
		safety:     tools.NewSafetyChecker(cat.RedFlags),
		stepper:    tools.NewTriageStepper(cat),
		emergency:  tools.NewEmergencyResponder(cat),
		services:   services,
		search:     search,
	}
	for _, t := range []tools.Tool{
		m.onboarding, m.safety, m.stepper, m.emergency, m.services, m.search,
	} {
		m.reg.Register(t)
	}
	return m
}

// Total returns the onboarding question count for phase derivation.
func (m *Machine) Total() int {
	return m.onboarding.Total()
}

// Tools returns the fixed tool set, in firing precedence order, for the
// inspection surfaces.
func (m *Machine) Tools() []tools.Tool {
	return m.reg.All()
}

// Advance processes one user message. It mutates only the passed session,
// appends the user turn to its history, and never fails: malformed input
// re-prompts and degraded tools still produce a reply.
func (m *Machine) Advance(ctx context.Context, sess *types.Session, message string) *Result {
	fresh := len(sess.History) == 0
	sess.Append("user", message)

	// The emergency latch wins over everything, including the safety check.
	if sess.Emergency {
		return &Result{Reply: m.emergency.Respond()}
	}

	// Secondary safety net: red-flag keywords force EMERGENCY from any phase.
	if m.safety.Check(message) {
		sess.Emergency = true
		sess.PendingOffer = ""
		slog.Info("red flag detected", "session_id", sess.ID)
		return &Result{
			Reply: m.emergency.Respond(),
			Invocations: []types.ToolInvocation{
				{Name: m.safety.Name(), Input: message, Output: "red-flag"},
				{Name: m.emergency.Name()},
			},
		}
	}

	switch sess.Phase(m.Total()) {
	case types.PhaseOnboarding:
		if fresh {
			q, _ := m.onboarding.Next(sess.OnboardingIndex)
			return &Result{Reply: intro + "\n\n" + q.Prompt}
		}
		return m.advanceOnboarding(sess, message)
	case types.PhaseTriage:
		return m.advanceTriage(sess, message)
	default:
		res := m.advanceFreeform(ctx, sess, message)
		res.Suggestions = followupSuggestions(sess.Profile, message)
		return res
	}
}

// advanceOnboarding records the answer to the current question or re-issues
// the identical prompt when the input is empty or fails the validator.
func (m *Machine) advanceOnboarding(sess *types.Session, message string) *Result {
	q, ok := m.onboarding.Next(sess.OnboardingIndex)
	if !ok {
		// Index at the boundary with phase still ONBOARDING cannot happen;
		// fall through to the summary so the session still moves forward.
		return m.completeOnboarding(sess)
	}

	answer := strings.TrimSpace(message)
	if answer == "" {
		return &Result{Reply: q.Prompt}
	}
	if q.Optional && skipWords[strings.ToLower(answer)] {
		answer = ""
	} else if len(q.Accept) > 0 && !matchesAny(answer, q.Accept) {
		return &Result{Reply: q.Prompt}
	}

	sess.Profile[q.Key] = answer
	sess.OnboardingIndex++

	if next, ok := m.onboarding.Next(sess.OnboardingIndex); ok {
		return &Result{Reply: next.Prompt}
	}
	return m.completeOnboarding(sess)
}

// completeOnboarding emits the eligibility summary and enters triage at the
// tree root, or freeform when no triage tree is loaded.
func (m *Machine) completeOnboarding(sess *types.Session) *Result {
	summary := "Onboarding is complete. I have saved these details for future chats."
	if elig := eligibilitySummary(sess.Profile); elig != "" {
		summary += "\n\n" + elig
	}
	summary += "\n\n" + profileFollowups(sess.Profile)

	if !m.cat.HasTriage() {
		sess.TriageState = types.TriageComplete
		return &Result{Reply: summary, Categories: []string{"gp", "registration"}}
	}

	sess.TriageState = m.cat.TriageRoot
	root, _ := m.cat.Node(m.cat.TriageRoot)
	reply := summary + "\n\n" + m.cat.TriageIntro + "\n\n" + root.Prompt
	return &Result{Reply: reply, Categories: []string{"gp", "registration"}}
}

// advanceTriage evaluates the message against the current node. Unmatched
// input re-prompts the same node without advancing.
func (m *Machine) advanceTriage(sess *types.Session, message string) *Result {
	if matchesAny(message, []string{"skip", "skip triage", "not now", "stop triage"}) {
		sess.TriageState = types.TriageComplete
		return &Result{Reply: skipTriageReply}
	}

	current, ok := m.cat.Node(sess.TriageState)
	if !ok {
		// A stored node id that no longer exists in the catalog: restart
		// rather than strand the session.
		sess.TriageState = m.cat.TriageRoot
		current, _ = m.cat.Node(m.cat.TriageRoot)
		return &Result{Reply: m.cat.TriageIntro + "\n\n" + current.Prompt}
	}

	next, matched := m.stepper.Step(sess.TriageState, message)
	inv := types.ToolInvocation{Name: m.stepper.Name(), Input: message}
	if !matched {
		inv.Output = "no match"
		return &Result{Reply: current.Prompt, Invocations: []types.ToolInvocation{inv}}
	}
	inv.Output = next.ID

	if next.Flag == catalog.FlagRedFlag {
		sess.Emergency = true
		sess.TriageState = types.TriageComplete
		slog.Info("triage reached red-flag terminal", "session_id", sess.ID, "node", next.ID)
		return &Result{
			Reply:       m.emergency.Respond(),
			Invocations: []types.ToolInvocation{inv, {Name: m.emergency.Name()}},
		}
	}

	if next.Terminal() {
		// Resolvable terminal: leave triage and offer a nearby-service lookup.
		sess.TriageState = types.TriageComplete
		sess.PendingOffer = next.Service
		reply := next.Prompt + "\n\n" + m.lookupOffer(sess, next.Service)
		return &Result{
			Reply:       reply,
			Categories:  serviceLinkCategories(next.Service),
			Invocations: []types.ToolInvocation{inv},
		}
	}

	sess.TriageState = next.ID
	return &Result{Reply: next.Prompt, Invocations: []types.ToolInvocation{inv}}
}

func (m *Machine) lookupOffer(sess *types.Session, service string) string {
	if pc := sess.Profile["postcode"]; pc != "" {
		return fmt.Sprintf("I can find the nearest %s options using your postcode on record (%s) - just say yes.", service, pc)
	}
	return fmt.Sprintf("I can look up the nearest %s options if you share your postcode.", service)
}

// matchesAny reports whether the message matches any alternative under the
// catalog's normalization rules.
func matchesAny(message string, alternatives []string) bool {
	norm := catalog.Normalize(message)
	for _, alt := range alternatives {
		if strings.TrimSpace(alt) == "" {
			continue
		}
		if strings.Contains(norm, catalog.Normalize(alt)) {
			return true
		}
	}
	return false
}

func serviceLinkCategories(service string) []string {
	switch service {
	case "GP":
		return []string{"gp", "registration"}
	case "A&E":
		return []string{"urgent", "services"}
	case "pharmacy":
		return []string{"pharmacy"}
	default:
		return []string{"services"}
	}
}
