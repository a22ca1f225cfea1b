package datasource

import (
	"time"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

// Observer receives manager events. pkg/metrics provides the Prometheus
// implementation.
type Observer interface {
	// ConnectAttempt is called once per Connect with its final error, if any.
	ConnectAttempt(engine EngineKind, err error)
	// ConnectionsChanged reports the number of registered connections.
	ConnectionsChanged(active int)
	// QueryCompleted is called for every ExecuteQuery; kind is empty on success.
	QueryCompleted(engine EngineKind, duration time.Duration, kind apperrors.Kind)
}

type noopObserver struct{}

func (noopObserver) ConnectAttempt(EngineKind, error)                         {}
func (noopObserver) ConnectionsChanged(int)                                   {}
func (noopObserver) QueryCompleted(EngineKind, time.Duration, apperrors.Kind) {}
