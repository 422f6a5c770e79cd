// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/migrate.go
// Summary: One-shot migration from the legacy single-file connection list.

package config

import (
	"encoding/json"
	"os"
)

// migrateConnectionFromLegacy pulls one connection's settings out of the old
// connections.json (a flat map keyed by connection id) into cfg. Returns true
// when an entry was found. The legacy file is left in place so the remaining
// connections can migrate lazily.
func migrateConnectionFromLegacy(id string, cfg Config) (bool, error) {
	path, err := legacyConfigPath()
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	var legacy map[string]map[string]interface{}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return false, err
	}
	entry, ok := legacy[id]
	if !ok {
		return false, nil
	}
	for key, value := range entry {
		cfg[key] = value
	}
	return true, nil
}
