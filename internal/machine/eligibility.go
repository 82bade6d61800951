package machine

import "strings"

var longStayWords = []string{"year", "yr", "6", "twelve", "12", "long", "permanent", "settled"}

var ukStatusWords = []string{"student", "work", "skilled", "settled", "ilr", "british", "uk"}

// eligibilitySummary derives likely service eligibility from the stored
// onboarding answers. Returns "" only when there is nothing to say.
func eligibilitySummary(profile map[string]string) string {
	stay := strings.ToLower(profile["stay_length"])
	visa := strings.ToLower(profile["visa_status"])
	postcode := strings.TrimSpace(profile["postcode"])
	gpRegistered := strings.ToLower(profile["gp_registered"])

	longStay := containsAnyOf(stay, longStayWords)
	hasUKStatus := containsAnyOf(visa, ukStatusWords)

	gpLine := "May be asked about length of stay for GP registration; urgent/111/A&E are still available."
	if longStay || hasUKStatus {
		gpLine = "Likely eligible to register with a GP (typical for stays ~6+ months). " +
			"Use your UK address/postcode; bring ID and proof of address if asked."
	}

	lines := []string{
		"Based on your details, here are likely options:",
		"- " + gpLine,
		"- Urgent and emergency care (NHS 111, A&E) are available regardless of GP registration.",
	}
	if strings.Contains(gpRegistered, "yes") {
		lines = append(lines, "- You already have a GP registered.")
	}
	if postcode != "" {
		lines = append(lines, "- Postcode on file: "+postcode)
	}
	lines = append(lines, "If you'd like, I can look up nearby GP practices or urgent care options.")
	return strings.Join(lines, "\n")
}

func containsAnyOf(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
