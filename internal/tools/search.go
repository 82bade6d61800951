package tools

import (
	"context"
	"fmt"
	"strings"
)

// Domains official guidance may be cited from without a fallback search.
var allowedDomains = []string{
	"gov.uk",
	"nhs.uk",
	"111.nhs.uk",
	"england.nhs.uk",
	"bartshealth.nhs.uk",
	"ukcisa.org.uk",
	"london.edu",
	"talkcampus.com",
}

// SearchResult is one ranked hit from the search capability.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Searcher is the external search capability.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// GuidedResult is the outcome of a guided search. Failures of the underlying
// capability surface here as empty results plus a note, never as an error.
type GuidedResult struct {
	Results      []SearchResult
	FallbackUsed bool
	Note         string
}

// Text renders the result for inclusion in a reply.
func (r *GuidedResult) Text() string {
	if len(r.Results) == 0 {
		if r.Note != "" {
			return r.Note
		}
		return "I couldn't find anything relevant for that."
	}
	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for i, hit := range r.Results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, hit.Title, hit.URL)
		if hit.Description != "" {
			fmt.Fprintf(&b, "   %s\n", hit.Description)
		}
	}
	if r.Note != "" {
		b.WriteString(r.Note + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// GuidedSearch is allowlist-first retrieval: official domains are queried
// first, and only when they return nothing relevant does a broad search run.
type GuidedSearch struct {
	searcher   Searcher
	allowed    []string
	maxResults int
}

// NewGuidedSearch creates the guided search tool over a search capability.
func NewGuidedSearch(searcher Searcher) *GuidedSearch {
	return &GuidedSearch{
		searcher:   searcher,
		allowed:    allowedDomains,
		maxResults: 5,
	}
}

func (g *GuidedSearch) Name() string        { return "guided_search" }
func (g *GuidedSearch) Description() string { return "Search official health sites first, then the web" }

func (g *GuidedSearch) allowlisted(u string) bool {
	lower := strings.ToLower(u)
	for _, d := range g.allowed {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// Run performs the guided search. It never returns an error: when the
// capability is unavailable the result carries a try-again note instead.
func (g *GuidedSearch) Run(ctx context.Context, query string) *GuidedResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return &GuidedResult{}
	}
	if g.searcher == nil {
		return &GuidedResult{Note: "Search isn't available right now - please try again later."}
	}

	sites := make([]string, len(g.allowed))
	for i, d := range g.allowed {
		sites[i] = "site:" + d
	}
	restricted := fmt.Sprintf("(%s) (%s)", query, strings.Join(sites, " OR "))

	hits, err := g.searcher.Search(ctx, restricted, g.maxResults)
	if err != nil {
		return &GuidedResult{Note: "Search didn't respond - please try again in a moment."}
	}

	var official []SearchResult
	for _, hit := range hits {
		if g.allowlisted(hit.URL) {
			official = append(official, hit)
		}
	}
	if len(official) > 0 {
		return &GuidedResult{Results: official}
	}

	hits, err = g.searcher.Search(ctx, query, g.maxResults)
	if err != nil {
		return &GuidedResult{Note: "Search didn't respond - please try again in a moment."}
	}
	if len(hits) == 0 {
		return &GuidedResult{FallbackUsed: true, Note: "I couldn't find anything relevant - try rephrasing your question."}
	}
	return &GuidedResult{
		Results:      hits,
		FallbackUsed: true,
		Note:         "These results are from a general web search, not official NHS pages.",
	}
}
