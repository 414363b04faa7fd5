package urlq

import (
	"time"

	"github.com/urlq-dev/urlq/pkg/adapter"
)

// Observer receives engine lifecycle events. Implementations must be fast
// and must not call back into the engine; they run on the commit path.
type Observer interface {
	// FlushCommitted fires after a flush navigated, with the keys whose
	// raw values changed and the time spent committing.
	FlushCommitted(mode adapter.HistoryMode, keys []string, elapsed time.Duration)

	// ParseFailure fires when a raw value is rejected by its parser on a
	// non-strict read.
	ParseFailure(key string, err error)

	// ExternalNavigation fires after a genuinely external navigation
	// (back/forward or out-of-band) was reconciled.
	ExternalNavigation(keys []string)
}

type multiObserver []Observer

// CombineObservers fans events out to several observers in order.
func CombineObservers(obs ...Observer) Observer {
	return multiObserver(obs)
}

func (m multiObserver) FlushCommitted(mode adapter.HistoryMode, keys []string, elapsed time.Duration) {
	for _, o := range m {
		o.FlushCommitted(mode, keys, elapsed)
	}
}

func (m multiObserver) ParseFailure(key string, err error) {
	for _, o := range m {
		o.ParseFailure(key, err)
	}
}

func (m multiObserver) ExternalNavigation(keys []string) {
	for _, o := range m {
		o.ExternalNavigation(keys)
	}
}
