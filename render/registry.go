// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/registry.go
// Summary: Backend registry and preference resolution with silent fallback.

package render

import (
	"fmt"
	"sync"
)

// Factory creates a backend instance for the given options.
type Factory func(opts Options) (Renderer, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for "auto" selection (first constructible wins).
	backendPriority = []string{NameCell, NameDirect}
)

// Register registers a backend factory under the given name. Typically
// called from init() in the backend files; a duplicate name replaces the
// earlier registration.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry. Useful for tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// New constructs the named backend.
func New(name string, opts Options) (Renderer, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendUnknown, name)
	}
	return factory(opts)
}

// Resolve turns a configured preference into a live renderer. The preference
// is either Auto or an explicit backend name. When the preferred backend
// cannot be constructed the direct backend is used instead without raising
// an error; the returned name reports which backend is actually live so the
// caller can surface requested-vs-actual to the operator.
func Resolve(pref string, opts Options) (Renderer, string, error) {
	if pref == "" || pref == Auto {
		registryMu.RLock()
		order := append([]string(nil), backendPriority...)
		registryMu.RUnlock()
		for _, name := range order {
			if r, err := New(name, opts); err == nil {
				return r, name, nil
			}
		}
		return nil, "", ErrBackendUnavailable
	}

	r, err := New(pref, opts)
	if err == nil {
		return r, pref, nil
	}
	if pref != NameDirect {
		if r, fallbackErr := New(NameDirect, opts); fallbackErr == nil {
			return r, NameDirect, nil
		}
	}
	return nil, "", err
}
