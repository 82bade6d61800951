package machine

import (
	"fmt"
	"strings"
)

// profileFollowups builds the next-steps block appended to the onboarding
// summary. Deterministic: tailored off the stored answers, no model call.
func profileFollowups(profile map[string]string) string {
	var steps []string
	if strings.Contains(strings.ToLower(profile["gp_registered"]), "yes") {
		steps = append(steps, "Book a GP appointment when you need one.")
	} else {
		steps = append(steps, "Find nearby GP practices and register.")
	}
	steps = append(steps,
		"Book a routine health check or vaccination if due.",
		"Explore local mental wellbeing resources.",
	)

	var b strings.Builder
	b.WriteString("Here are a few next steps you might find useful:\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "%d) %s\n", i+1, step)
	}
	b.WriteString("If you want, I can look up nearby services based on your postcode.")
	return b.String()
}

// followupSuggestions proposes up to three short prompts the user might
// send next, keyed off the message topic and the stored profile.
func followupSuggestions(profile map[string]string, message string) []string {
	lower := strings.ToLower(message)
	var out []string
	add := func(s string) {
		if len(out) < 3 {
			out = append(out, s)
		}
	}

	switch {
	case strings.Contains(lower, "mental") || strings.Contains(lower, "stress") ||
		strings.Contains(lower, "anxi") || strings.Contains(lower, "depress"):
		add("Explore mental wellbeing support")
	case strings.Contains(lower, "pharmac") || strings.Contains(lower, "prescription") ||
		strings.Contains(lower, "medicine"):
		add("Find a pharmacy near me")
	}

	add("Find nearby GP or A&E")
	if strings.Contains(strings.ToLower(profile["gp_registered"]), "yes") {
		add("How to book a GP appointment")
	} else {
		add("How to register with a GP")
	}
	add("What to do for my symptoms now")
	return out
}
