package middleware

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

// Options are the raw YAML options of one declared middleware.
type Options map[string]any

// String returns the string at key or def when unset.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", optionError(key, "string", v)
	}
	return s, nil
}

// Int accepts YAML integers and whole floats.
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, optionError(key, "integer", v)
}

func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, optionError(key, "number", v)
}

func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, optionError(key, "boolean", v)
	}
	return b, nil
}

// Strings accepts a single string or a list of strings.
func (o Options) Strings(key string, def []string) ([]string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch s := v.(type) {
	case string:
		return []string{s}, nil
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, optionError(key, "list of strings", v)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, optionError(key, "list of strings", v)
}

// Duration parses Go duration strings such as "10s".
func (o Options) Duration(key string, def time.Duration) (time.Duration, error) {
	s, err := o.String(key, "")
	if err != nil {
		return 0, err
	}
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryConfig, "invalid duration option").
			WithContext("option", key).
			Build()
	}
	return d, nil
}

func optionError(key, want string, got any) error {
	return errors.ConfigError(fmt.Sprintf("option %q must be a %s", key, want)).
		WithContext("option", key).
		WithContext("value", fmt.Sprintf("%v", got)).
		Build()
}
