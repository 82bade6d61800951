package postproc

import (
	"strings"
	"testing"

	"github.com/user/evinav/internal/catalog"
)

func newRewriter(t *testing.T) *Rewriter {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return New(cat)
}

func TestRewriteAppendsRegistryLinks(t *testing.T) {
	r := newRewriter(t)
	out := r.Rewrite("You can register with any local practice.", []string{"gp"})

	if !strings.Contains(out, "Useful links:") {
		t.Fatalf("missing links section:\n%s", out)
	}
	if !strings.Contains(out, "nhs.uk") {
		t.Errorf("links should come from the registry:\n%s", out)
	}
	if !strings.HasPrefix(out, "You can register") {
		t.Errorf("body altered:\n%s", out)
	}
}

func TestRewriteReplacesModelWrittenSection(t *testing.T) {
	r := newRewriter(t)
	reply := "Here's how registration works.\n\n" +
		"## Useful Links\n" +
		"- Some Blog: https://example.com/health-tips\n" +
		"- Another: https://random.example.org\n\n" +
		"Let me know if you need more."

	out := r.Rewrite(reply, []string{"registration"})
	if strings.Contains(out, "example.com") || strings.Contains(out, "example.org") {
		t.Errorf("model-written links survived:\n%s", out)
	}
	if !strings.Contains(out, "Let me know if you need more.") {
		t.Errorf("body after the old section was lost:\n%s", out)
	}
	if !strings.Contains(out, "Useful links:") {
		t.Errorf("canonical section missing:\n%s", out)
	}
}

func TestRewriteOmitsSectionWithoutCategories(t *testing.T) {
	r := newRewriter(t)
	reply := "Plain answer.\n\nUseful links:\n- Stale: https://example.com/old"

	out := r.Rewrite(reply, nil)
	if strings.Contains(out, "Useful links") || strings.Contains(out, "example.com") {
		t.Errorf("stale section should be removed with no replacement:\n%s", out)
	}
	if out != "Plain answer." {
		t.Errorf("got %q", out)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	r := newRewriter(t)
	cats := []string{"gp", "urgent"}

	once := r.Rewrite("Answer text.", cats)
	twice := r.Rewrite(once, cats)
	if once != twice {
		t.Errorf("second rewrite changed output:\n%q\nvs\n%q", once, twice)
	}
}

func TestRewriteDeduplicatesCategories(t *testing.T) {
	r := newRewriter(t)
	out := r.Rewrite("Answer.", []string{"gp", "gp"})

	seen := map[string]int{}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "- ") {
			seen[line]++
		}
	}
	for line, n := range seen {
		if n > 1 {
			t.Errorf("link repeated %d times: %s", n, line)
		}
	}
}

func TestHeadingVariantsDetected(t *testing.T) {
	for _, line := range []string{
		"Useful links:",
		"## Useful Links",
		"**Useful links**",
		"  - useful links for you",
		"USEFUL LINKS",
	} {
		if !isLinksHeading(line) {
			t.Errorf("not detected as heading: %q", line)
		}
	}
	for _, line := range []string{
		"Some useful links are below.",
		"- NHS: https://www.nhs.uk",
		"",
	} {
		if isLinksHeading(line) {
			t.Errorf("false positive: %q", line)
		}
	}
}

func TestUnknownCategoriesYieldNoSection(t *testing.T) {
	r := newRewriter(t)
	out := r.Rewrite("Answer.", []string{"no-such-category"})
	if strings.Contains(out, "Useful links") {
		t.Errorf("section emitted for unknown category:\n%s", out)
	}
}
