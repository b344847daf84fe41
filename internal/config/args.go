package config

import (
	"fmt"
	"os"
	"strings"
)

// Args are the trigger arguments supplied alongside a write batch.
type Args map[string]string

// ParseArgs accepts a map or a "k=v,k2=v2" string. Anything else yields empty Args.
func ParseArgs(raw any) Args {
	args := Args{}

	switch v := raw.(type) {
	case nil:
	case Args:
		for k, val := range v {
			args[k] = val
		}
	case map[string]string:
		for k, val := range v {
			args[k] = val
		}
	case map[string]any:
		for k, val := range v {
			if val == nil {
				continue
			}
			args[k] = fmt.Sprint(val)
		}
	case string:
		for _, pair := range strings.Split(v, ",") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			args[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	return args
}

// Merge returns a copy of base overlaid with a. Keys in a win.
func (a Args) Merge(base Args) Args {
	out := make(Args, len(a)+len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Get returns a non-empty argument value.
func (a Args) Get(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Resolve looks up key in the arguments, then envKey in the environment, then returns fallback.
func (a Args) Resolve(key, envKey, fallback string) string {
	if v, ok := a.Get(key); ok {
		return v
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
	}
	return fallback
}
