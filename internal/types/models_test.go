// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"
)

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(NewSessionID())
	if s.OnboardingIndex != 0 {
		t.Errorf("expected onboarding index 0, got %d", s.OnboardingIndex)
	}
	if s.TriageState != TriageNone {
		t.Errorf("expected triage state %q, got %q", TriageNone, s.TriageState)
	}
	if s.Status != StatusActive {
		t.Errorf("expected status %q, got %q", StatusActive, s.Status)
	}
	if s.Profile == nil {
		t.Error("expected non-nil profile map")
	}
}

func TestPhaseDerivation(t *testing.T) {
	const questions = 3

	s := NewSession(NewSessionID())
	if got := s.Phase(questions); got != PhaseOnboarding {
		t.Errorf("fresh session: expected %s, got %s", PhaseOnboarding, got)
	}

	s.OnboardingIndex = questions
	if got := s.Phase(questions); got != PhaseFreeform {
		t.Errorf("profile complete, no triage: expected %s, got %s", PhaseFreeform, got)
	}

	s.TriageState = "severity"
	if got := s.Phase(questions); got != PhaseTriage {
		t.Errorf("triage node active: expected %s, got %s", PhaseTriage, got)
	}

	s.TriageState = TriageComplete
	if got := s.Phase(questions); got != PhaseFreeform {
		t.Errorf("triage complete: expected %s, got %s", PhaseFreeform, got)
	}

	s.Emergency = true
	s.OnboardingIndex = 0
	if got := s.Phase(questions); got != PhaseEmergency {
		t.Errorf("emergency latch: expected %s, got %s", PhaseEmergency, got)
	}
}

func TestSessionSerialization(t *testing.T) {
	s := NewSession(NewSessionID())
	s.Profile["postcode"] = "NW1 2BU"
	s.Append("user", "hello")
	s.Append("assistant", "hi there")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Session
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Profile["postcode"] != "NW1 2BU" {
		t.Errorf("expected profile to survive round trip, got %v", decoded.Profile)
	}
	if len(decoded.History) != 2 {
		t.Errorf("expected 2 history turns, got %d", len(decoded.History))
	}
	if decoded.History[0].Role != "user" {
		t.Errorf("expected first turn role user, got %q", decoded.History[0].Role)
	}
}
