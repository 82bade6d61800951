package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/evinav/internal/catalog"
)

// Result-page URLs for the NHS service search, nearest-first by postcode.
var serviceSearchURLs = map[string]string{
	"GP":       "https://www.nhs.uk/service-search/find-a-gp/results/%s",
	"A&E":      "https://www.nhs.uk/service-search/find-an-accident-and-emergency-service/results/%s",
	"pharmacy": "https://www.nhs.uk/service-search/pharmacy/find-a-pharmacy/results/%s",
}

// Registry categories backing the generic fallback per service type.
var serviceCategories = map[string][]string{
	"GP":       {"gp", "registration"},
	"A&E":      {"urgent", "services"},
	"pharmacy": {"pharmacy"},
}

// Service is one entry extracted from an NHS results page.
type Service struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// LookupResult is the outcome of a nearest-service lookup. It always carries
// something useful: extracted services, or a results URL, or generic links.
type LookupResult struct {
	ServiceType string
	Services    []Service
	ResultsURL  string
	Fallback    []catalog.LinkEntry
	Note        string
}

// Text renders the result for inclusion in a reply.
func (r *LookupResult) Text() string {
	var b strings.Builder
	if len(r.Services) > 0 {
		fmt.Fprintf(&b, "Nearest %s options:\n", r.ServiceType)
		for i, svc := range r.Services {
			fmt.Fprintf(&b, "%d. %s\n", i+1, svc.Name)
		}
		fmt.Fprintf(&b, "\nFull list: %s\n", r.ResultsURL)
	} else if r.ResultsURL != "" {
		fmt.Fprintf(&b, "You can see the nearest %s options here:\n%s\n", r.ServiceType, r.ResultsURL)
	} else {
		fmt.Fprintf(&b, "These should help you find %s services:\n", r.ServiceType)
		for _, link := range r.Fallback {
			fmt.Fprintf(&b, "- %s: %s\n", link.Title, link.URL)
		}
	}
	if r.Note != "" {
		b.WriteString(r.Note + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ServiceLookup finds nearby NHS services by postcode. It degrades rather
// than fails: without a postcode, or when the results page cannot be read,
// the caller still gets usable links.
type ServiceLookup struct {
	cat     *catalog.Catalog
	client  *http.Client
	baseURL string
}

// NewServiceLookup creates a new nearest-service lookup tool.
func NewServiceLookup(cat *catalog.Catalog) *ServiceLookup {
	return &ServiceLookup{
		cat:    cat,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (l *ServiceLookup) Name() string        { return "nearest_services" }
func (l *ServiceLookup) Description() string { return "Find the nearest NHS services for a postcode" }

func (l *ServiceLookup) resultsURL(serviceType, postcode string) string {
	tmpl, ok := serviceSearchURLs[serviceType]
	if !ok {
		return ""
	}
	u := fmt.Sprintf(tmpl, url.QueryEscape(strings.ToUpper(strings.TrimSpace(postcode))))
	if l.baseURL != "" {
		// Test hook: re-root the URL at a local server.
		if parsed, err := url.Parse(u); err == nil {
			u = l.baseURL + parsed.Path
		}
	}
	return u
}

// Lookup returns up to n nearby services of the given type. An empty
// postcode or unknown service type yields the generic fallback links.
func (l *ServiceLookup) Lookup(ctx context.Context, postcode, serviceType string, n int) *LookupResult {
	if n <= 0 {
		n = 3
	}
	result := &LookupResult{ServiceType: serviceType}

	resultsURL := l.resultsURL(serviceType, postcode)
	if strings.TrimSpace(postcode) == "" || resultsURL == "" {
		result.Fallback = l.cat.Links(serviceCategories[serviceType]...)
		if len(result.Fallback) == 0 {
			result.Fallback = l.cat.Links("services")
		}
		result.Note = "Share your full postcode and I can look up the nearest options for you."
		return result
	}

	result.ResultsURL = resultsURL
	names, err := l.extractNames(ctx, resultsURL, n)
	if err != nil {
		result.Note = "I couldn't read the results page just now, but the link above is nearest-first."
		return result
	}
	for _, name := range names {
		result.Services = append(result.Services, Service{Name: name, URL: resultsURL})
	}
	return result
}

// extractNames fetches the results page and pulls service names out of the
// markdown headings. The page is already ordered nearest-first.
func (l *ServiceLookup) extractNames(ctx context.Context, pageURL string, n int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Evinav/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch results page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}

	var names []string
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "##") {
			continue
		}
		name := strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		if name == "" {
			continue
		}
		names = append(names, name)
		if len(names) >= n {
			break
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no services found on results page")
	}
	return names, nil
}
