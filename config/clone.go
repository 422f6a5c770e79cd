// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/clone.go
// Summary: Clone helpers for config maps.

package config

// Clone copies the config one section deep. Values inside a section are
// shared; the maps themselves are not.
func Clone(cfg Config) Config {
	if cfg == nil {
		return nil
	}
	clone := make(Config, len(cfg))
	for name, raw := range cfg {
		switch v := raw.(type) {
		case map[string]interface{}:
			clone[name] = copySection(v)
		case Section:
			clone[name] = copySection(v)
		default:
			clone[name] = v
		}
	}
	return clone
}

func copySection[M ~map[string]interface{}](section M) Section {
	out := make(Section, len(section))
	for key, value := range section {
		out[key] = value
	}
	return out
}
