package tools

import "github.com/user/evinav/internal/catalog"

// OnboardingProvider serves the next onboarding question for an index.
type OnboardingProvider struct {
	questions []catalog.Question
}

// NewOnboardingProvider creates a provider over the question catalog.
func NewOnboardingProvider(questions []catalog.Question) *OnboardingProvider {
	return &OnboardingProvider{questions: questions}
}

func (p *OnboardingProvider) Name() string        { return "onboarding_question" }
func (p *OnboardingProvider) Description() string { return "Serve the next onboarding question" }

// Next returns the question at index, or ok=false past the boundary.
func (p *OnboardingProvider) Next(index int) (catalog.Question, bool) {
	if index < 0 || index >= len(p.questions) {
		return catalog.Question{}, false
	}
	return p.questions[index], true
}

// Total returns the number of questions in the catalog.
func (p *OnboardingProvider) Total() int {
	return len(p.questions)
}
