package config

import (
	"strings"
)

// secretKeys are the dotted keys whose values never appear unmasked in CLI
// output or listings.
var secretKeys = map[string]bool{
	"llm.api_key":    true,
	"brave.api_key":  true,
	"telegram.token": true,
}

// IsSecretKey reports whether the dotted key holds a secret.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten converts a nested map into dotted keys:
// {"llm": {"model": "gpt-4o"}} becomes {"llm.model": "gpt-4o"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			out[key] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten, rebuilding the nested maps that the
// dotted keys describe.
func Unflatten(flat map[string]any) map[string]any {
	root := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			node = descend(node, part)
		}
		node[parts[len(parts)-1]] = v
	}
	return root
}

// descend returns the child map under key, creating it (and displacing any
// scalar sitting there) as needed.
func descend(node map[string]any, key string) map[string]any {
	if child, ok := node[key].(map[string]any); ok {
		return child
	}
	child := make(map[string]any)
	node[key] = child
	return child
}

// MaskSecrets copies the flat map with secret values reduced to a "***"
// prefix plus their last four characters. Empty secrets stay empty so a
// listing still shows which ones are unset.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		if IsSecretKey(k) {
			v = maskValue(v)
		}
		out[k] = v
	}
	return out
}

func maskValue(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	tail := s
	if len(s) > 4 {
		tail = s[len(s)-4:]
	}
	return "***" + tail
}
