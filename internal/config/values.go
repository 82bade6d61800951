package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

// ListValues returns the config as a flat dotted-key map. When mask is
// true, secret values are redacted for display.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads a single value from the config file at path. Secret
// values are returned masked.
func GetValue(path, key string) (any, error) {
	flat, err := readFlat(path)
	if err != nil {
		return nil, err
	}
	val, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown key: %s", key)
	}
	if IsSecretKey(key) {
		masked := MaskSecrets(map[string]any{key: val})
		return masked[key], nil
	}
	return val, nil
}

// SetValue updates a single value in the config file at path. The key
// must exist in the config schema; values are coerced from string to
// the JSON type the key already holds.
func SetValue(path, key, value string) error {
	// Ensure the file exists with defaults, then edit the file contents
	// directly so env overrides never leak into the persisted config.
	if _, err := Load(path); err != nil {
		return err
	}
	flat, err := readFlat(path)
	if err != nil {
		return err
	}
	if _, ok := flat[key]; !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	flat[key] = coerce(value)

	nested := Unflatten(flat)
	data, err := json.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Save(path, updated)
}

func readFlat(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return Flatten(m), nil
}

// coerce converts a CLI string argument to the closest JSON type.
func coerce(value string) any {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
