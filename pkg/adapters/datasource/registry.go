package datasource

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter for UI discovery.
type AdapterInfo struct {
	Type        EngineKind `json:"type"`         // "postgresql", "mysql", "sqlserver"
	DisplayName string     `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string     `json:"description"`
	DefaultPort int        `json:"default_port"`
}

// AdapterRegistration contains info + the constructor for one engine.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory func(desc ConnectionDescriptor, logger *zap.Logger) (Adapter, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[EngineKind]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
// Used by API endpoint to tell UI which database types are available.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the factory for an engine.
// Returns nil if the engine is not registered.
func GetFactory(kind EngineKind) func(desc ConnectionDescriptor, logger *zap.Logger) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[kind]; ok {
		return reg.Factory
	}
	return nil
}
