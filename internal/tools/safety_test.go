package tools

import (
	"strings"
	"testing"

	"github.com/user/evinav/internal/catalog"
)

func TestSafetyCheckerMatches(t *testing.T) {
	c := NewSafetyChecker([]string{"chest pain", "can't breathe", "suicidal"})

	tests := []struct {
		message string
		want    bool
	}{
		{"I have crushing chest pain", true},
		{"I CAN'T BREATHE properly", true},
		{"i cant breathe", true},
		{"I can’t breathe at all", true},
		{"feeling a bit suicidal lately", true},
		{"my chest feels fine", false},
		{"how do I register with a GP?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.Check(tt.message); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestEmergencyResponderFixed(t *testing.T) {
	cat, err := catalog.Load()
	if err != nil {
		t.Fatal(err)
	}
	e := NewEmergencyResponder(cat)

	first := e.Respond()
	if first != e.Respond() {
		t.Error("expected identical text on every invocation")
	}
	if !strings.Contains(first, "999") {
		t.Errorf("expected 999 in emergency text, got %q", first)
	}
	if !strings.Contains(first, "NHS 111") {
		t.Errorf("expected NHS 111 in emergency text, got %q", first)
	}
	if !strings.Contains(first, "https://") {
		t.Errorf("expected emergency link in text, got %q", first)
	}
}
