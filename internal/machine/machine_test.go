package machine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/evinav/internal/catalog"
	"github.com/user/evinav/internal/tools"
	"github.com/user/evinav/internal/types"
)

type stubSearcher struct {
	queries []string
	results []tools.SearchResult
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]tools.SearchResult, error) {
	s.queries = append(s.queries, query)
	return s.results, nil
}

func newMachine(t *testing.T) *Machine {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return New(cat, tools.NewServiceLookup(cat), tools.NewGuidedSearch(&stubSearcher{}))
}

// answers that satisfy every onboarding question in catalog order.
var onboardingAnswers = []string{
	"Maya",
	"25-34",
	"two years",
	"E14 5AB",
	"student visa",
	"no",
	"skip",
	"skip",
	"sleep",
	"skip",
}

func completeOnboarding(t *testing.T, m *Machine, sess *types.Session) *Result {
	t.Helper()
	ctx := context.Background()
	res := m.Advance(ctx, sess, "hi")
	for _, answer := range onboardingAnswers {
		res = m.Advance(ctx, sess, answer)
	}
	if sess.OnboardingIndex != m.Total() {
		t.Fatalf("onboarding index = %d, want %d", sess.OnboardingIndex, m.Total())
	}
	return res
}

func TestFirstMessageIntroducesAndAsksFirstQuestion(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())

	res := m.Advance(context.Background(), sess, "hello")
	if !strings.Contains(res.Reply, "Evi") {
		t.Errorf("first reply missing introduction: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "What's your name?") {
		t.Errorf("first reply missing first question: %q", res.Reply)
	}
	if sess.OnboardingIndex != 0 {
		t.Errorf("index advanced on greeting: %d", sess.OnboardingIndex)
	}
}

func TestOnboardingIndexNeverDecreases(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	ctx := context.Background()

	m.Advance(ctx, sess, "hi")
	prev := sess.OnboardingIndex
	inputs := []string{"Maya", "", "25-34", "???", "two years", "E14 5AB", "student", "maybe", "yes"}
	for _, in := range inputs {
		m.Advance(ctx, sess, in)
		if sess.OnboardingIndex < prev {
			t.Fatalf("index decreased from %d after %q", prev, in)
		}
		prev = sess.OnboardingIndex
	}
}

func TestEmptyAnswerRepromptsIdentically(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	ctx := context.Background()

	m.Advance(ctx, sess, "hi")
	m.Advance(ctx, sess, "Maya")
	prompt := m.Advance(ctx, sess, "   ").Reply
	again := m.Advance(ctx, sess, "").Reply
	if prompt != again {
		t.Errorf("re-prompts differ: %q vs %q", prompt, again)
	}
	if !strings.Contains(prompt, "age range") {
		t.Errorf("expected age question, got %q", prompt)
	}
	if sess.OnboardingIndex != 1 {
		t.Errorf("index moved on empty answer: %d", sess.OnboardingIndex)
	}
}

func TestValidatedQuestionRejectsThenAccepts(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	ctx := context.Background()

	m.Advance(ctx, sess, "hi")
	for _, a := range []string{"Maya", "25-34", "two years", "E14 5AB", "student visa"} {
		m.Advance(ctx, sess, a)
	}
	// gp_registered accepts only yes/no style answers.
	res := m.Advance(ctx, sess, "purple")
	if !strings.Contains(res.Reply, "registered GP") {
		t.Fatalf("expected gp question re-prompt, got %q", res.Reply)
	}
	if sess.OnboardingIndex != 5 {
		t.Fatalf("index moved on rejected answer: %d", sess.OnboardingIndex)
	}
	m.Advance(ctx, sess, "not yet")
	if got := sess.Profile["gp_registered"]; got != "not yet" {
		t.Errorf("gp_registered = %q", got)
	}
}

func TestOptionalSkipStoresEmpty(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	ctx := context.Background()

	m.Advance(ctx, sess, "hi")
	m.Advance(ctx, sess, "skip")
	if v, ok := sess.Profile["name"]; !ok || v != "" {
		t.Errorf("skipped optional answer = %q (present %v), want empty", v, ok)
	}
	if sess.OnboardingIndex != 1 {
		t.Errorf("index = %d after skip", sess.OnboardingIndex)
	}
}

func TestOnboardingCompletionEntersTriage(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())

	res := completeOnboarding(t, m, sess)
	if !strings.Contains(res.Reply, "Onboarding is complete") {
		t.Errorf("missing completion note: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "Likely eligible to register with a GP") {
		t.Errorf("missing eligibility summary: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "severe are your symptoms") {
		t.Errorf("missing triage root question: %q", res.Reply)
	}
	if sess.TriageState != "severity" {
		t.Errorf("triage state = %q, want severity", sess.TriageState)
	}
	if sess.Phase(m.Total()) != types.PhaseTriage {
		t.Errorf("phase = %v, want TRIAGE", sess.Phase(m.Total()))
	}
}

func TestTriageTraversalDeterministic(t *testing.T) {
	answers := []string{"about a 5", "yes, mostly", "a few days ago", "none of those"}

	var first []string
	for run := 0; run < 2; run++ {
		m := newMachine(t)
		sess := types.NewSession(types.NewSessionID())
		completeOnboarding(t, m, sess)

		var replies []string
		for _, a := range answers {
			replies = append(replies, m.Advance(context.Background(), sess, a).Reply)
		}
		if run == 0 {
			first = replies
			if sess.TriageState != types.TriageComplete {
				t.Fatalf("triage state = %q, want complete", sess.TriageState)
			}
			if sess.PendingOffer != "GP" {
				t.Fatalf("pending offer = %q, want GP", sess.PendingOffer)
			}
			continue
		}
		for i := range replies {
			if replies[i] != first[i] {
				t.Errorf("run 2 reply %d differs:\n%q\nvs\n%q", i, replies[i], first[i])
			}
		}
	}
}

func TestTriageUnmatchedRepromptsSameNode(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)

	res := m.Advance(context.Background(), sess, "bananas")
	if sess.TriageState != "severity" {
		t.Errorf("state advanced on unmatched input: %q", sess.TriageState)
	}
	again := m.Advance(context.Background(), sess, "more bananas")
	if res.Reply != again.Reply {
		t.Errorf("re-prompts differ: %q vs %q", res.Reply, again.Reply)
	}
}

func TestTriageRedFlagPathLatchesEmergency(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()

	m.Advance(ctx, sess, "9")
	res := m.Advance(ctx, sess, "yes")
	if !sess.Emergency {
		t.Fatal("emergency not latched after red-flag terminal")
	}
	if !strings.Contains(res.Reply, "999") {
		t.Errorf("emergency reply missing 999: %q", res.Reply)
	}

	// The latch is permanent: any later message gets the same fixed text.
	later := m.Advance(ctx, sess, "actually I feel fine now")
	if later.Reply != m.emergency.Respond() {
		t.Errorf("latched reply differs from fixed emergency text")
	}
}

func TestSafetyKeywordsOverrideEveryPhase(t *testing.T) {
	for _, phase := range []string{"onboarding", "triage", "freeform"} {
		t.Run(phase, func(t *testing.T) {
			m := newMachine(t)
			sess := types.NewSession(types.NewSessionID())
			ctx := context.Background()

			switch phase {
			case "onboarding":
				m.Advance(ctx, sess, "hi")
			case "triage":
				completeOnboarding(t, m, sess)
			case "freeform":
				completeOnboarding(t, m, sess)
				m.Advance(ctx, sess, "skip")
			}
			idx := sess.OnboardingIndex

			res := m.Advance(ctx, sess, "I have chest pain")
			if !sess.Emergency {
				t.Fatal("emergency not latched")
			}
			if !strings.Contains(res.Reply, "999") {
				t.Errorf("reply missing 999: %q", res.Reply)
			}
			if sess.OnboardingIndex != idx {
				t.Errorf("onboarding index changed during emergency: %d -> %d", idx, sess.OnboardingIndex)
			}
		})
	}
}

func TestTriageSkipJumpsToFreeform(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)

	res := m.Advance(context.Background(), sess, "skip")
	if sess.TriageState != types.TriageComplete {
		t.Errorf("triage state = %q, want complete", sess.TriageState)
	}
	if !strings.Contains(res.Reply, "skipping triage") {
		t.Errorf("unexpected skip reply: %q", res.Reply)
	}
	if sess.Phase(m.Total()) != types.PhaseFreeform {
		t.Errorf("phase = %v, want FREEFORM", sess.Phase(m.Total()))
	}
}

func TestResolvableTerminalOffersLookup(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()

	m.Advance(ctx, sess, "2")
	res := m.Advance(ctx, sess, "yes")
	if sess.TriageState != types.TriageComplete {
		t.Fatalf("triage state = %q, want complete", sess.TriageState)
	}
	if sess.PendingOffer != "pharmacy" {
		t.Fatalf("pending offer = %q, want pharmacy", sess.PendingOffer)
	}
	if !strings.Contains(res.Reply, "pharmacist") {
		t.Errorf("missing terminal advice: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "E14 5AB") {
		t.Errorf("offer should mention the stored postcode: %q", res.Reply)
	}
	if len(res.Categories) == 0 || res.Categories[0] != "pharmacy" {
		t.Errorf("categories = %v", res.Categories)
	}
}

func TestPendingOfferAcceptedRunsLookup(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()

	m.Advance(ctx, sess, "2")
	m.Advance(ctx, sess, "yes")
	// Drop the postcode so the lookup stays on the generic fallback links.
	sess.Profile["postcode"] = ""

	res := m.Advance(ctx, sess, "yes please")
	if sess.PendingOffer != "" {
		t.Errorf("pending offer not cleared: %q", sess.PendingOffer)
	}
	if res.NeedsLLM {
		t.Error("service lookup should not need the model")
	}
	if !strings.Contains(res.Reply, "pharmacy") {
		t.Errorf("lookup reply missing service type: %q", res.Reply)
	}
	if len(res.Invocations) == 0 || res.Invocations[0].Name != "nearest_services" {
		t.Errorf("invocations = %v", res.Invocations)
	}
}

func TestPendingOfferDeclinedClearsAndFallsThrough(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()

	m.Advance(ctx, sess, "2")
	m.Advance(ctx, sess, "yes")

	res := m.Advance(ctx, sess, "no thanks, tell me about dentists")
	if sess.PendingOffer != "" {
		t.Errorf("pending offer not cleared: %q", sess.PendingOffer)
	}
	if !res.NeedsLLM {
		t.Error("declined offer should fall through to the model")
	}
}

func TestFreeformTriageRestart(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")

	res := m.Advance(ctx, sess, "I'm feeling unwell again")
	if sess.TriageState != "severity" {
		t.Errorf("triage state = %q, want severity", sess.TriageState)
	}
	if !strings.Contains(res.Reply, "severe are your symptoms") {
		t.Errorf("restart reply missing root question: %q", res.Reply)
	}
}

func TestFreeformEligibilityExplainer(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")

	res := m.Advance(ctx, sess, "What NHS services am I eligible for?")
	if res.NeedsLLM {
		t.Error("eligibility answer should be deterministic")
	}
	if !strings.Contains(res.Reply, "Residency/visa") {
		t.Errorf("missing criteria list: %q", res.Reply)
	}
}

func TestFreeformGuidedSearch(t *testing.T) {
	cat, err := catalog.Load()
	if err != nil {
		t.Fatal(err)
	}
	searcher := &stubSearcher{results: []tools.SearchResult{
		{Title: "Register with a GP", URL: "https://www.nhs.uk/register", Description: "How to register"},
	}}
	m := New(cat, tools.NewServiceLookup(cat), tools.NewGuidedSearch(searcher))
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")

	res := m.Advance(ctx, sess, "search for GP registration documents")
	if res.NeedsLLM {
		t.Error("search should be deterministic")
	}
	if !strings.Contains(res.Reply, "Register with a GP") {
		t.Errorf("search result missing from reply: %q", res.Reply)
	}
	if len(searcher.queries) == 0 || !strings.Contains(searcher.queries[0], "GP registration documents") {
		t.Errorf("queries = %v", searcher.queries)
	}
}

func TestFreeformOnboardingRequestSummarizesProfile(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")
	idx := sess.OnboardingIndex

	res := m.Advance(ctx, sess, "onboarding")
	if sess.OnboardingIndex != idx {
		t.Errorf("onboarding request reset the index: %d", sess.OnboardingIndex)
	}
	if !strings.Contains(res.Reply, "postcode: E14 5AB") {
		t.Errorf("summary missing stored answer: %q", res.Reply)
	}
}

func TestFreeformDefaultNeedsModel(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")

	res := m.Advance(ctx, sess, "how do I register with a doctor here?")
	if !res.NeedsLLM {
		t.Fatal("general question should go to the model")
	}
	want := map[string]bool{"gp": true, "registration": true}
	for _, c := range res.Categories {
		delete(want, c)
	}
	if len(want) != 0 {
		t.Errorf("categories %v missing %v", res.Categories, want)
	}
}

type failingSearcher struct{ calls int }

func (s *failingSearcher) Search(_ context.Context, _ string, _ int) ([]tools.SearchResult, error) {
	s.calls++
	return nil, errors.New("search backend down")
}

func TestFreeformNearbyKnownServiceUsesLookup(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")
	sess.Profile["postcode"] = "" // keep the lookup on its offline fallback

	res := m.Advance(ctx, sess, "which pharmacies are near me?")
	if len(res.Invocations) == 0 || res.Invocations[0].Name != "nearest_services" {
		t.Fatalf("invocations = %+v, want nearest_services", res.Invocations)
	}
	if !strings.Contains(res.Reply, "pharmacy") {
		t.Errorf("reply not about pharmacies: %q", res.Reply)
	}
}

func TestFreeformNearbyUnknownServiceFallsToSearch(t *testing.T) {
	cat, err := catalog.Load()
	if err != nil {
		t.Fatal(err)
	}
	searcher := &failingSearcher{}
	m := New(cat, tools.NewServiceLookup(cat), tools.NewGuidedSearch(searcher))
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")

	res := m.Advance(ctx, sess, "dentist near me")
	if searcher.calls == 0 {
		t.Fatal("search capability never consulted")
	}
	if len(res.Invocations) == 0 || res.Invocations[0].Name != "guided_search" {
		t.Fatalf("invocations = %+v, want guided_search", res.Invocations)
	}
	if !strings.Contains(res.Reply, "try again") {
		t.Errorf("degraded search should ask to try again, got %q", res.Reply)
	}
	if strings.Contains(res.Reply, "GP options") {
		t.Errorf("dentist request answered with GP lookup: %q", res.Reply)
	}
}

func TestToolSetRegisteredInFiringOrder(t *testing.T) {
	m := newMachine(t)
	want := []string{
		"onboarding_question", "safety_check", "triage_step",
		"emergency_response", "nearest_services", "guided_search",
	}
	toolset := m.Tools()
	if len(toolset) != len(want) {
		t.Fatalf("tool count = %d, want %d", len(toolset), len(want))
	}
	for i, tl := range toolset {
		if tl.Name() != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, tl.Name(), want[i])
		}
		if tl.Description() == "" {
			t.Errorf("tool %q has no description", tl.Name())
		}
	}
}

func TestOnboardingCompletionListsNextSteps(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())

	res := completeOnboarding(t, m, sess)
	if !strings.Contains(res.Reply, "next steps") {
		t.Fatalf("summary missing next steps: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "Find nearby GP practices and register.") {
		t.Errorf("unregistered profile should be pointed at GP registration: %q", res.Reply)
	}
}

func TestFreeformSuggestionsFollowProfile(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")

	res := m.Advance(ctx, sess, "how long do referrals take?")
	if len(res.Suggestions) != 3 {
		t.Fatalf("suggestions = %v, want 3", res.Suggestions)
	}
	if res.Suggestions[1] != "How to register with a GP" {
		t.Errorf("unregistered profile suggestion = %q", res.Suggestions[1])
	}

	stressed := m.Advance(ctx, sess, "I've been really stressed lately")
	if len(stressed.Suggestions) == 0 || stressed.Suggestions[0] != "Explore mental wellbeing support" {
		t.Errorf("stress wording suggestions = %v", stressed.Suggestions)
	}

	sess.Profile["gp_registered"] = "yes"
	registered := m.Advance(ctx, sess, "how long do referrals take?")
	if len(registered.Suggestions) < 2 || registered.Suggestions[1] != "How to book a GP appointment" {
		t.Errorf("registered profile suggestions = %v", registered.Suggestions)
	}
}

func TestEmergencyRepliesCarryNoSuggestions(t *testing.T) {
	m := newMachine(t)
	sess := types.NewSession(types.NewSessionID())
	completeOnboarding(t, m, sess)
	ctx := context.Background()
	m.Advance(ctx, sess, "skip")

	res := m.Advance(ctx, sess, "I have chest pain")
	if len(res.Suggestions) != 0 {
		t.Errorf("emergency reply carries suggestions: %v", res.Suggestions)
	}
}
