// Package store is the persistence collaborator boundary. The engine
// never touches storage directly: all reads happen once at
// initialization via GetInitialData, and every write goes through
// Save. A failing store degrades to an error surfaced to the caller;
// in-memory caches are never corrupted by it.
package store

import (
	"context"

	"formflow/backend/internal/matcher"
	"formflow/backend/internal/models"
)

// Durable blob keys.
const (
	KeyProfile   = "profile"
	KeyMacros    = "macros"
	KeyMappings  = "mappings"
	KeyWhitelist = "whitelist"
	KeySettings  = "settings"
)

// InitialData is everything the engine loads at startup.
type InitialData struct {
	Profile   models.Profile              `json:"profile"`
	Macros    map[string]models.MacroData `json:"macros"`
	Mappings  matcher.Mappings            `json:"mappings"`
	Whitelist []string                    `json:"whitelist"`
	Settings  models.Settings             `json:"settings"`
}

// Store durably persists key -> JSON blobs.
type Store interface {
	Save(ctx context.Context, key string, value interface{}) error
	GetInitialData(ctx context.Context) (InitialData, error)
}

// EmptyInitialData returns the shape used when nothing is stored.
// Settings stay zero-valued so the engine can tell "never saved" from
// a stored configuration and apply its own defaults.
func EmptyInitialData() InitialData {
	return InitialData{
		Profile:  models.Profile{},
		Macros:   make(map[string]models.MacroData),
		Mappings: matcher.Mappings{},
	}
}
