// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for system and connection configuration files.

package config

func applySystemDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	cfg.RegisterDefaults("", Section{
		"verbose": false,
	})
	cfg.RegisterDefaults("display", Section{
		"renderer": "auto",
		"tick_ms":  16,
	})
	cfg.RegisterDefaults("security", Section{
		"trust_policy": "tofu",
	})
	cfg.RegisterDefaults("frames", Section{
		"retention_limit": 128,
	})
}

func applyConnectionDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	// Empty strings mean "inherit the system setting".
	cfg.RegisterDefaults("display", Section{
		"renderer": "",
	})
	cfg.RegisterDefaults("security", Section{
		"trust_policy": "",
	})
	cfg.RegisterDefaults("input", Section{
		"coalesce_pointer_moves": true,
	})
}

func defaultSystemConfig() Config {
	cfg := make(Config)
	applySystemDefaults(cfg)
	return cfg
}

func defaultConnectionConfig() Config {
	cfg := make(Config)
	applyConnectionDefaults(cfg)
	return cfg
}
