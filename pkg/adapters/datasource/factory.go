package datasource

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnsupportedEngine is returned when no adapter is registered for a kind.
var ErrUnsupportedEngine = errors.New("unsupported database type")

// AdapterFactory creates adapters. The manager uses one of these so tests
// can substitute mock adapters.
type AdapterFactory interface {
	NewAdapter(desc ConnectionDescriptor) (Adapter, error)

	// ListTypes returns info for all adapter types this factory can build.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewAdapterFactory returns a factory that uses the global registry.
func NewAdapterFactory(logger *zap.Logger) AdapterFactory {
	return &registryFactory{logger: logger}
}

func (f *registryFactory) NewAdapter(desc ConnectionDescriptor) (Adapter, error) {
	factory := GetFactory(desc.Type)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s (not compiled in)", ErrUnsupportedEngine, desc.Type)
	}
	return factory(desc, f.logger.With(zap.String("engine", string(desc.Type)), zap.String("connection_id", desc.ID)))
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}
