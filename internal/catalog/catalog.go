// Package catalog holds the static conversation content: the onboarding
// questionnaire, the triage decision graph, the red-flag keyword list, and
// the curated link registry. Everything is loaded once at startup from
// embedded YAML and never mutated afterwards.
package catalog

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed assets/*.yaml
var assets embed.FS

// Flag classifies a triage node.
type Flag string

const (
	FlagNone       Flag = ""
	FlagRedFlag    Flag = "red-flag"
	FlagResolvable Flag = "resolvable"
)

// Question is one ordered onboarding step. An empty Accept list means any
// non-empty answer is taken; otherwise the answer must match an alternative.
type Question struct {
	Key      string   `yaml:"key"`
	Prompt   string   `yaml:"prompt"`
	Optional bool     `yaml:"optional"`
	Accept   []string `yaml:"accept"`
}

// Transition is one ordered (patterns -> target) edge of a triage node.
type Transition struct {
	Patterns []string `yaml:"patterns"`
	Target   string   `yaml:"target"`
}

// TriageNode is a step in the triage graph. Terminal nodes have no
// transitions; resolvable terminals carry the recommended service type.
type TriageNode struct {
	ID          string       `yaml:"id"`
	Prompt      string       `yaml:"prompt"`
	Flag        Flag         `yaml:"flag"`
	Service     string       `yaml:"service"`
	Transitions []Transition `yaml:"transitions"`
}

// Terminal reports whether the node has no outgoing transitions.
func (n *TriageNode) Terminal() bool {
	return len(n.Transitions) == 0
}

// Next evaluates the message against the node's transitions in order and
// returns the first matching target, or "" if nothing matches.
func (n *TriageNode) Next(message string) string {
	norm := Normalize(message)
	for _, tr := range n.Transitions {
		for _, alt := range tr.Patterns {
			if strings.TrimSpace(alt) == "" {
				continue
			}
			if strings.Contains(norm, Normalize(alt)) {
				return tr.Target
			}
		}
	}
	return ""
}

// LinkEntry is one curated resource link.
type LinkEntry struct {
	Category string `yaml:"category"`
	Title    string `yaml:"title"`
	URL      string `yaml:"url"`
}

// Catalog is the immutable set of authored content.
type Catalog struct {
	Questions   []Question
	RedFlags    []string
	TriageIntro string
	TriageRoot  string

	nodes      map[string]*TriageNode
	links      []LinkEntry
	byCategory map[string][]LinkEntry
}

type questionsFile struct {
	Questions []Question `yaml:"questions"`
}

type triageFile struct {
	RedFlags []string     `yaml:"red_flags"`
	Intro    string       `yaml:"intro"`
	Root     string       `yaml:"root"`
	Nodes    []TriageNode `yaml:"nodes"`
}

type linksFile struct {
	Links []LinkEntry `yaml:"links"`
}

// Load parses and validates the embedded catalogs.
func Load() (*Catalog, error) {
	var qf questionsFile
	if err := readAsset("assets/questions.yaml", &qf); err != nil {
		return nil, err
	}
	var tf triageFile
	if err := readAsset("assets/triage.yaml", &tf); err != nil {
		return nil, err
	}
	var lf linksFile
	if err := readAsset("assets/links.yaml", &lf); err != nil {
		return nil, err
	}

	c := &Catalog{
		Questions:   qf.Questions,
		RedFlags:    tf.RedFlags,
		TriageIntro: tf.Intro,
		TriageRoot:  tf.Root,
		nodes:       make(map[string]*TriageNode, len(tf.Nodes)),
		byCategory:  make(map[string][]LinkEntry),
	}

	for i := range tf.Nodes {
		node := &tf.Nodes[i]
		if _, dup := c.nodes[node.ID]; dup {
			return nil, fmt.Errorf("triage catalog: duplicate node id %q", node.ID)
		}
		c.nodes[node.ID] = node
	}
	if err := c.validateTriage(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(lf.Links))
	for _, link := range lf.Links {
		key := link.Category + "|" + link.URL
		if seen[key] {
			return nil, fmt.Errorf("link catalog: duplicate entry %s %s", link.Category, link.URL)
		}
		seen[key] = true
		c.links = append(c.links, link)
		c.byCategory[link.Category] = append(c.byCategory[link.Category], link)
	}

	return c, nil
}

func readAsset(name string, out any) error {
	data, err := assets.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read catalog asset %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse catalog asset %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) validateTriage() error {
	if len(c.nodes) == 0 {
		return nil
	}
	if _, ok := c.nodes[c.TriageRoot]; !ok {
		return fmt.Errorf("triage catalog: root node %q not found", c.TriageRoot)
	}
	for id, node := range c.nodes {
		if node.Terminal() && node.Flag == FlagNone {
			return fmt.Errorf("triage catalog: terminal node %q has no flag", id)
		}
		if !node.Terminal() && node.Flag != FlagNone {
			return fmt.Errorf("triage catalog: flagged node %q has transitions", id)
		}
		for _, tr := range node.Transitions {
			if _, ok := c.nodes[tr.Target]; !ok {
				return fmt.Errorf("triage catalog: node %q targets unknown node %q", id, tr.Target)
			}
			if len(tr.Patterns) == 0 {
				return fmt.Errorf("triage catalog: node %q has a transition with no patterns", id)
			}
		}
	}
	return nil
}

// Node returns the triage node with the given id.
func (c *Catalog) Node(id string) (*TriageNode, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// HasTriage reports whether a triage tree is loaded.
func (c *Catalog) HasTriage() bool {
	return len(c.nodes) > 0
}

// Links returns the registry entries for the given categories, deduplicated
// by (category, URL) and in registry order. With no categories it returns
// every entry.
func (c *Catalog) Links(categories ...string) []LinkEntry {
	if len(categories) == 0 {
		return append([]LinkEntry(nil), c.links...)
	}
	want := make(map[string]bool, len(categories))
	for _, cat := range categories {
		want[cat] = true
	}
	seen := make(map[string]bool)
	var out []LinkEntry
	for _, link := range c.links {
		if !want[link.Category] {
			continue
		}
		key := link.Category + "|" + link.URL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, link)
	}
	return out
}

// Normalize lowercases text and collapses it to space-padded alphanumeric
// tokens, so pattern alternatives match whole words. Punctuation becomes a
// token boundary: "a&e" and "a e" normalize identically, while "can't"
// splits into "can t".
func Normalize(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	inToken := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			inToken = true
		default:
			if inToken {
				b.WriteByte(' ')
				inToken = false
			}
		}
	}
	if inToken {
		b.WriteByte(' ')
	}
	return b.String()
}
