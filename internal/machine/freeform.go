package machine

import (
	"context"
	"strings"

	"github.com/user/evinav/internal/types"
)

var affirmatives = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "please", "go ahead"}

var symptomTriggers = []string{
	"triage", "symptom", "symptoms", "unwell", "pain", "hurt", "hurts",
	"sick", "injured", "injury", "dizzy", "nausea", "feeling ill", "feel ill",
}

var nearbyTriggers = []string{"nearest", "near me", "nearby", "close to me", "closest"}

var searchPrefixes = []string{"search for ", "search ", "look up ", "find information on ", "find info on "}

const eligibilityExplainer = `Here's a structured check for NHS service eligibility:

Key criteria:
1) Residency/visa: UK resident, settled status, or valid visa (e.g., student or work).
2) Location: Living within a UK postcode/catchment for local services (GP, urgent care).
3) Duration: Planning to stay 6+ months (typical for GP registration).
4) ID/proof: Ability to show ID plus address (e.g., bank statement/tenancy) if asked.
5) Visitors: Short-stay visitors may still access urgent or emergency care.`

// advanceFreeform resolves deterministic intents first; anything left over
// goes to the language-model path with the link categories inferred from
// the message.
func (m *Machine) advanceFreeform(ctx context.Context, sess *types.Session, message string) *Result {
	// A pending nearby-services offer from a resolvable triage terminal.
	if offer := sess.PendingOffer; offer != "" {
		sess.PendingOffer = ""
		if matchesAny(message, affirmatives) {
			return m.runServiceLookup(ctx, sess, message, offer)
		}
		// Declined: fall through to the other intents.
	}

	switch {
	case matchesAny(message, symptomTriggers) && m.cat.HasTriage():
		sess.TriageState = m.cat.TriageRoot
		root, _ := m.cat.Node(m.cat.TriageRoot)
		return &Result{Reply: m.cat.TriageIntro + "\n\n" + root.Prompt}

	case strings.Contains(strings.ToLower(message), "eligib"):
		return &Result{Reply: eligibilityExplainer, Categories: []string{"registration", "urgent"}}

	case matchesAny(message, nearbyTriggers):
		if svc := serviceTypeFrom(message); svc != "" {
			return m.runServiceLookup(ctx, sess, message, svc)
		}
		// No NHS results page covers this service type; search instead.
		return m.runGuidedSearch(ctx, strings.TrimSpace(message))

	case searchQuery(message) != "":
		return m.runGuidedSearch(ctx, searchQuery(message))

	case matchesAny(message, []string{"onboarding", "onboard me", "my profile", "my details"}):
		return &Result{Reply: m.profileSummary(sess.Profile)}
	}

	return &Result{NeedsLLM: true, Categories: inferCategories(message)}
}

func (m *Machine) runServiceLookup(ctx context.Context, sess *types.Session, message, serviceType string) *Result {
	postcode := sess.Profile["postcode"]
	res := m.services.Lookup(ctx, postcode, serviceType, 3)
	return &Result{
		Reply:      res.Text(),
		Categories: serviceLinkCategories(serviceType),
		Invocations: []types.ToolInvocation{
			{Name: m.services.Name(), Input: serviceType + " " + postcode, Output: res.Text()},
		},
	}
}

func (m *Machine) runGuidedSearch(ctx context.Context, query string) *Result {
	res := m.search.Run(ctx, query)
	return &Result{
		Reply: res.Text(),
		Invocations: []types.ToolInvocation{
			{Name: m.search.Name(), Input: query, Output: res.Text()},
		},
	}
}

// searchQuery extracts the query from an explicit search request, or ""
// when the message is not one.
func searchQuery(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, prefix := range searchPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(message[len(prefix):])
		}
	}
	return ""
}

// serviceTypeFrom maps a nearby-services request to one of the NHS results
// pages, or "" when the request is about something the pages don't cover
// (dentists, opticians, ...), which routes through guided search instead.
func serviceTypeFrom(message string) string {
	switch {
	case matchesAny(message, []string{"a&e", "a and e", "accident", "emergency"}):
		return "A&E"
	case matchesAny(message, []string{"pharmacy", "pharmacies", "pharmacist", "chemist"}):
		return "pharmacy"
	case matchesAny(message, []string{"gp", "doctor", "doctors", "surgery", "practice"}):
		return "GP"
	}
	return ""
}

// profileSummary renders the stored profile in question order. Onboarding is
// never re-run within a session, so this is what an onboarding request gets.
func (m *Machine) profileSummary(profile map[string]string) string {
	var b strings.Builder
	b.WriteString("Onboarding is already complete for this session. Here is what I have saved:\n")
	for _, q := range m.cat.Questions {
		v := profile[q.Key]
		if v == "" {
			v = "(not provided)"
		}
		b.WriteString("- " + q.Key + ": " + v + "\n")
	}
	b.WriteString("\nTell me if any of these need correcting and I'll keep it in mind.")
	return b.String()
}

// inferCategories picks which curated link groups belong under a
// language-model reply, keyed off the user's message.
func inferCategories(message string) []string {
	lower := strings.ToLower(message)
	seen := map[string]bool{}
	var cats []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	pairs := []struct {
		words    []string
		category string
	}{
		{[]string{"gp", "doctor", "surgery", "appointment"}, "gp"},
		{[]string{"register", "registration", "sign up", "nhs number"}, "registration"},
		{[]string{"urgent", "111", "walk-in", "out of hours"}, "urgent"},
		{[]string{"pharmacy", "chemist", "prescription", "medication", "medicine"}, "pharmacy"},
		{[]string{"mental", "anxiety", "depress", "stress", "counsel", "therapy"}, "mental-health"},
		{[]string{"wellbeing", "sleep", "exercise", "diet", "lonely"}, "wellbeing"},
	}
	for _, p := range pairs {
		for _, w := range p.words {
			if strings.Contains(lower, w) {
				add(p.category)
				break
			}
		}
	}
	return cats
}
