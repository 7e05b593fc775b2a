// Package core implements tools shared by the ledger services, like the
// event feed used by the execution service to publish transaction results.
package core

import "sync"

// Event is the notification sent to the observers of the execution service
// for each processed transaction.
type Event struct {
	// Contract is the name of the contract that processed the transaction.
	Contract string

	// TxID is the identifier of the processed transaction.
	TxID []byte

	// Accepted is true when the transaction has been applied to the store.
	Accepted bool

	// Message holds the refusal reason when the transaction is not accepted.
	Message string
}

// Observer is the interface to implement to watch transaction events.
type Observer interface {
	NotifyCallback(event Event)
}

// Watcher fans transaction events out to its registered observers.
type Watcher struct {
	sync.RWMutex

	observers map[Observer]struct{}
}

// NewWatcher creates a new empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{
		observers: make(map[Observer]struct{}),
	}
}

// Add registers the observer so that it will be notified of upcoming events.
// Adding the same observer twice has no effect.
func (w *Watcher) Add(observer Observer) {
	w.Lock()
	w.observers[observer] = struct{}{}
	w.Unlock()
}

// Remove unregisters the observer, which stops it from receiving events.
func (w *Watcher) Remove(observer Observer) {
	w.Lock()
	delete(w.observers, observer)
	w.Unlock()
}

// Notify delivers the event to the observers one after the other.
func (w *Watcher) Notify(event Event) {
	w.RLock()
	defer w.RUnlock()

	for obs := range w.observers {
		obs.NotifyCallback(event)
	}
}
