// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/store.go
// Summary: Load, reload, and migration logic for the config store.

package config

import "log"

func loadSystemLocked() error {
	path, err := systemConfigPath()
	if err != nil {
		log.Printf("Config: Failed to resolve system config path: %v", err)
		system = make(Config)
		applySystemDefaults(system)
		return err
	}

	cfg, exists, readErr := readConfig(path)
	if readErr != nil {
		log.Printf("Config: Failed to read system config %s: %v", path, readErr)
		cfg = make(Config)
	}

	if exists && len(cfg) == 0 {
		cfg = defaultSystemConfig()
		if err := writeConfig(path, cfg); err != nil {
			log.Printf("Config: Failed to write default system config: %v", err)
			if readErr == nil {
				readErr = err
			}
		}
	}

	if !exists {
		cfg = defaultSystemConfig()
		if err := writeConfig(path, cfg); err != nil {
			log.Printf("Config: Failed to write default system config: %v", err)
			if readErr == nil {
				readErr = err
			}
		}
	} else {
		applySystemDefaults(cfg)
	}

	system = cfg
	if readErr == nil && exists {
		log.Printf("Config: Loaded system config from %s", path)
	}
	return readErr
}

func loadConnectionLocked(id string) (Config, error) {
	path, err := connectionConfigPath(id)
	if err != nil {
		return nil, err
	}

	cfg, exists, readErr := readConfig(path)
	if readErr != nil {
		log.Printf("Config: Failed to read connection config %s: %v", path, readErr)
		cfg = make(Config)
	}

	if !exists {
		cfg = make(Config)
		migrated, migrateErr := migrateConnectionFromLegacy(id, cfg)
		if migrateErr != nil {
			log.Printf("Config: Legacy connection migration error: %v", migrateErr)
			if readErr == nil {
				readErr = migrateErr
			}
		}
		if !migrated {
			cfg = defaultConnectionConfig()
			migrated = true
		}
		applyConnectionDefaults(cfg)
		if migrated {
			if err := writeConfig(path, cfg); err != nil {
				log.Printf("Config: Failed to write migrated connection config: %v", err)
				if readErr == nil {
					readErr = err
				}
			}
		}
	} else {
		applyConnectionDefaults(cfg)
	}

	if readErr == nil && exists {
		log.Printf("Config: Loaded connection %q config from %s", id, path)
	}
	return cfg, readErr
}
